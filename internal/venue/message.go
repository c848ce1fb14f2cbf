// Package venue binds a Transport, a Decoder, and a Subscription Ledger
// into one client per upstream exchange, handling venue-specific framing,
// aliasing, keep-alive, and (for venues with partial ticker updates)
// delta merging.
package venue

import (
	"context"
	"time"

	"github.com/sawpanic/spreadfeed/internal/marketdata"
)

// MessageKind tags a UnifiedMessage's payload.
type MessageKind uint8

const (
	MsgHeartbeat MessageKind = iota
	MsgTrade
	MsgQuote
	MsgError
)

// ErrorKind classifies a venue-level error surfaced through NextMessage.
type ErrorKind uint8

const (
	ErrConnectionLost ErrorKind = iota
	ErrParse
	ErrSubscriptionFailed
	ErrUnknownKind
)

// UnifiedMessage is the venue-agnostic record the orchestrator's ingest
// loop publishes to the fan-in queue.
type UnifiedMessage struct {
	Kind       MessageKind
	Venue      marketdata.Venue
	Trade      marketdata.Trade
	Quote      marketdata.Quote
	ErrKind    ErrorKind
	ErrMessage string
}

// Client is the capability set every venue implementation exposes. The
// orchestrator holds one Client per venue and dispatches on the concrete
// type via this interface rather than a venue-tag switch: Go's static
// interface satisfaction is resolved at compile time per call site
// (a single indirect call through the itable), which is the idiomatic Go
// analogue of the source's compile-time monomorphized dispatch — there is
// no idiomatic equivalent of avoiding virtual dispatch entirely without
// generics machinery disproportionate to two concrete implementations.
type Client interface {
	Connect(ctx context.Context) error
	SubscribeTrades(ids []uint32) error
	SubscribeQuotes(ids []uint32) error
	NextMessage(ctx context.Context) (UnifiedMessage, bool)
	IsConnected() bool
	LastActivity() time.Time
	Venue() marketdata.Venue
}
