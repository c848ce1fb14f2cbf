package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/spreadfeed/internal/decode"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
	"github.com/sawpanic/spreadfeed/internal/registry"
	"github.com/sawpanic/spreadfeed/internal/subscription"
	"github.com/sawpanic/spreadfeed/internal/transport"
)

// KeepaliveSilence is how long venue B may go without any frame sent or
// received before the client proactively pings.
const KeepaliveSilence = 20 * time.Second

// KeepaliveReceiveTimeout bounds each Recv poll so the keep-alive check
// re-runs at least this often even with no inbound traffic.
const KeepaliveReceiveTimeout = 5 * time.Second

// bybitSubscribeRequest is venue B's outbound subscribe envelope:
// {"op":"subscribe","args":[...]}.
type bybitSubscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

var bybitPingFrame = []byte(`{"op":"ping"}`)

// BybitClient implements Client for venue B. It owns a delta-merge cache
// mapping instrument ID to the latest complete quote, since venue B
// emits partial ticker updates that must be merged against the last full
// picture before being handed to the tracker (see spec.md §4.6: "Do not
// collapse the delta cache into the tracker").
type BybitClient struct {
	tr      *transport.Transport
	ledger  *subscription.Ledger
	reg     *registry.Registry
	aliases *AliasTable
	breaker *gobreaker.CircuitBreaker

	deltaCache map[uint32]*marketdata.Quote
}

// NewBybitClient constructs a client bound to the given streaming URL.
func NewBybitClient(url string, reg *registry.Registry, aliases *AliasTable) *BybitClient {
	return &BybitClient{
		tr:      transport.New(url),
		ledger:  subscription.New(subscription.DefaultMaxRetries),
		reg:     reg,
		aliases: aliases,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "bybit-connect",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		deltaCache: make(map[uint32]*marketdata.Quote),
	}
}

func (c *BybitClient) Venue() marketdata.Venue { return marketdata.VenueB }

func (c *BybitClient) IsConnected() bool       { return c.tr.IsConnected() }
func (c *BybitClient) LastActivity() time.Time { return time.Now().Add(-c.tr.IdleDuration()) }

func (c *BybitClient) Connect(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.tr.Connect(ctx)
	})
	return err
}

func (c *BybitClient) SubscribeTrades(ids []uint32) error {
	c.ledger.Request(ids, subscription.Trade)
	return c.flushBatches(subscription.Trade, "publicTrade.")
}

func (c *BybitClient) SubscribeQuotes(ids []uint32) error {
	c.ledger.Request(ids, subscription.Quote)
	return c.flushBatches(subscription.Quote, "tickers.")
}

func (c *BybitClient) flushBatches(kind subscription.Kind, topicPrefix string) error {
	for _, batch := range c.ledger.Batches(kind) {
		topics := make([]string, 0, len(batch))
		for _, id := range batch {
			name, ok := c.reg.Name(id)
			if !ok {
				continue
			}
			topics = append(topics, topicPrefix+c.aliases.ToVenue(name))
		}
		if len(topics) == 0 {
			continue
		}

		req := bybitSubscribeRequest{Op: "subscribe", Args: topics}
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("venue: marshal bybit subscribe: %w", err)
		}
		if err := c.tr.Send(payload); err != nil {
			return fmt.Errorf("venue: send bybit subscribe: %w", err)
		}
		for _, id := range batch {
			c.ledger.Confirm([]uint32{id}, kind)
		}
	}
	return nil
}

// NextMessage polls for the next frame, interleaving the venue-B
// application-level keep-alive: if no frame has crossed the wire for
// KeepaliveSilence, a ping is sent before the next receive attempt. Each
// receive is bounded by KeepaliveReceiveTimeout so the silence check
// re-runs often even on a quiet connection.
func (c *BybitClient) NextMessage(ctx context.Context) (UnifiedMessage, bool) {
	if c.tr.IdleDuration() >= KeepaliveSilence {
		_ = c.tr.SendPing(bybitPingFrame)
	}
	_ = c.tr.SetReadDeadline(KeepaliveReceiveTimeout)

	msg, err := c.tr.Recv()
	if err != nil {
		if isTimeout(err) {
			return UnifiedMessage{}, false
		}
		return UnifiedMessage{Kind: MsgError, Venue: marketdata.VenueB, ErrKind: ErrConnectionLost, ErrMessage: err.Error()}, true
	}
	if msg == nil {
		return UnifiedMessage{Kind: MsgError, Venue: marketdata.VenueB, ErrKind: ErrConnectionLost, ErrMessage: "peer closed"}, true
	}

	result, ok := decode.DecodeBybit(msg.Data)
	if !ok {
		return UnifiedMessage{}, false
	}

	switch result.Kind {
	case decode.KindTrade:
		id, ok := c.resolve(result.Symbol)
		if !ok {
			return UnifiedMessage{}, false
		}
		result.Trade.InstrumentID = id
		return UnifiedMessage{Kind: MsgTrade, Venue: marketdata.VenueB, Trade: result.Trade}, true
	case decode.KindQuoteDelta:
		id, ok := c.resolve(result.Symbol)
		if !ok {
			return UnifiedMessage{}, false
		}
		merged, ok := c.mergeDelta(id, result.QuoteDelta)
		if !ok {
			return UnifiedMessage{}, false
		}
		return UnifiedMessage{Kind: MsgQuote, Venue: marketdata.VenueB, Quote: merged}, true
	case decode.KindHeartbeat, decode.KindSubscriptionAck:
		return UnifiedMessage{Kind: MsgHeartbeat, Venue: marketdata.VenueB}, true
	default:
		return UnifiedMessage{}, false
	}
}

// mergeDelta applies delta onto the cached last-complete quote for id:
// present fields overwrite, absent fields retain the previous value, and
// the timestamp is replaced only if the delta's is newer. It emits a
// merged quote iff both bid and ask price end up strictly positive.
func (c *BybitClient) mergeDelta(id uint32, delta marketdata.TickerDelta) (marketdata.Quote, bool) {
	cached, exists := c.deltaCache[id]
	if !exists {
		cached = &marketdata.Quote{InstrumentID: id}
		c.deltaCache[id] = cached
	}

	if delta.BidPrice != nil {
		cached.BidPrice = *delta.BidPrice
	}
	if delta.BidSize != nil {
		cached.BidSize = *delta.BidSize
	}
	if delta.AskPrice != nil {
		cached.AskPrice = *delta.AskPrice
	}
	if delta.AskSize != nil {
		cached.AskSize = *delta.AskSize
	}
	if delta.TimestampNs > cached.TimestampNs {
		cached.TimestampNs = delta.TimestampNs
	}

	if !cached.BidPrice.IsPositive() || !cached.AskPrice.IsPositive() {
		return marketdata.Quote{}, false
	}
	return *cached, true
}

func (c *BybitClient) resolve(venueSymbol string) (uint32, bool) {
	canonical := c.aliases.ToCanonical(venueSymbol)
	return c.reg.Lookup(canonical)
}

// isTimeout reports whether err is a network read-deadline expiry, which
// the keep-alive poll loop treats as "nothing to report this tick"
// rather than a connection failure.
func isTimeout(err error) bool {
	type timeoutError interface {
		Timeout() bool
	}
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}
