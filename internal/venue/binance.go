package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/spreadfeed/internal/decode"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
	"github.com/sawpanic/spreadfeed/internal/registry"
	"github.com/sawpanic/spreadfeed/internal/subscription"
	"github.com/sawpanic/spreadfeed/internal/transport"
)

// binanceSubscribeRequest is venue A's outbound subscribe envelope:
// {"method":"SUBSCRIBE","params":[...],"id":N}.
type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// BinanceClient implements Client for venue A.
type BinanceClient struct {
	tr      *transport.Transport
	ledger  *subscription.Ledger
	reg     *registry.Registry
	aliases *AliasTable
	breaker *gobreaker.CircuitBreaker

	reqID int64
}

// NewBinanceClient constructs a client bound to the given streaming URL.
func NewBinanceClient(url string, reg *registry.Registry, aliases *AliasTable) *BinanceClient {
	return &BinanceClient{
		tr:      transport.New(url),
		ledger:  subscription.New(subscription.DefaultMaxRetries),
		reg:     reg,
		aliases: aliases,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "binance-connect",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *BinanceClient) Venue() marketdata.Venue { return marketdata.VenueA }

// Connect dials the transport through the reconnect circuit breaker, so a
// venue that is actively refusing connections stops being hammered after
// repeated consecutive failures.
func (c *BinanceClient) Connect(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.tr.Connect(ctx)
	})
	return err
}

func (c *BinanceClient) IsConnected() bool       { return c.tr.IsConnected() }
func (c *BinanceClient) LastActivity() time.Time { return time.Now().Add(-c.tr.IdleDuration()) }

func (c *BinanceClient) SubscribeTrades(ids []uint32) error {
	c.ledger.Request(ids, subscription.Trade)
	return c.flushBatches(subscription.Trade, "@aggTrade")
}

func (c *BinanceClient) SubscribeQuotes(ids []uint32) error {
	c.ledger.Request(ids, subscription.Quote)
	return c.flushBatches(subscription.Quote, "@bookTicker")
}

func (c *BinanceClient) flushBatches(kind subscription.Kind, suffix string) error {
	for _, batch := range c.ledger.Batches(kind) {
		streams := make([]string, 0, len(batch))
		for _, id := range batch {
			name, ok := c.reg.Name(id)
			if !ok {
				continue
			}
			venueName := c.aliases.ToVenue(name)
			streams = append(streams, strings.ToLower(venueName)+suffix)
		}
		if len(streams) == 0 {
			continue
		}

		c.reqID++
		req := binanceSubscribeRequest{Method: "SUBSCRIBE", Params: streams, ID: c.reqID}
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("venue: marshal binance subscribe: %w", err)
		}
		if err := c.tr.Send(payload); err != nil {
			return fmt.Errorf("venue: send binance subscribe: %w", err)
		}
		// Binance acks subscriptions with "result":null and no per-symbol
		// confirmation; optimistically confirm here rather than blocking
		// NextMessage's caller on a round trip.
		for _, id := range batch {
			c.ledger.Confirm([]uint32{id}, kind)
		}
	}
	return nil
}

// NextMessage reads and decodes one frame. Malformed frames are dropped
// (logged-by-contract, not surfaced as hard errors) and the loop
// continues by returning (UnifiedMessage{}, false) for that call; the
// caller is expected to call again rather than treat this as fatal.
func (c *BinanceClient) NextMessage(ctx context.Context) (UnifiedMessage, bool) {
	msg, err := c.tr.Recv()
	if err != nil {
		return UnifiedMessage{Kind: MsgError, Venue: marketdata.VenueA, ErrKind: ErrConnectionLost, ErrMessage: err.Error()}, true
	}
	if msg == nil {
		return UnifiedMessage{Kind: MsgError, Venue: marketdata.VenueA, ErrKind: ErrConnectionLost, ErrMessage: "peer closed"}, true
	}

	result, ok := decode.DecodeBinance(msg.Data)
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
		return UnifiedMessage{Kind: MsgTrade, Venue: marketdata.VenueA, Trade: result.Trade}, true
	case decode.KindQuote:
		id, ok := c.resolve(result.Symbol)
		if !ok {
			return UnifiedMessage{}, false
		}
		q := result.Quote
		q.InstrumentID = id
		if q.TimestampNs == 0 {
			q.TimestampNs = time.Now().UnixNano()
		}
		return UnifiedMessage{Kind: MsgQuote, Venue: marketdata.VenueA, Quote: q}, true
	case decode.KindSubscriptionAck:
		return UnifiedMessage{Kind: MsgHeartbeat, Venue: marketdata.VenueA}, true
	default:
		return UnifiedMessage{}, false
	}
}

func (c *BinanceClient) resolve(venueSymbol string) (uint32, bool) {
	canonical := c.aliases.ToCanonical(venueSymbol)
	return c.reg.Lookup(canonical)
}
