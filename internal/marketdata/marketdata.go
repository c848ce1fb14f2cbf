// Package marketdata holds the cache-line-sized value types that flow
// between decoders, the venue client, and the tracker: Quote, Trade,
// TickerDelta, and SpreadEvent.
package marketdata

import "github.com/sawpanic/spreadfeed/internal/decimal"

// Venue identifies which upstream exchange a record originated from.
type Venue uint8

const (
	VenueUnknown Venue = iota
	VenueA             // Binance-shaped frames: aggTrade / bookTicker
	VenueB             // Bybit-shaped frames: publicTrade / tickers
)

func (v Venue) String() string {
	switch v {
	case VenueA:
		return "venueA"
	case VenueB:
		return "venueB"
	default:
		return "unknown"
	}
}

// Side is the aggressor side of a trade.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Quote is a complete best-bid/best-offer snapshot for one instrument on
// one venue.
type Quote struct {
	InstrumentID uint32
	BidPrice     decimal.Decimal
	BidSize      decimal.Decimal
	AskPrice     decimal.Decimal
	AskSize      decimal.Decimal
	TimestampNs  int64
}

// Valid reports whether the quote satisfies the core invariant: bid below
// ask, both strictly positive.
func (q Quote) Valid() bool {
	return q.BidPrice.IsPositive() && q.AskPrice.IsPositive() && q.BidPrice.LessThan(q.AskPrice)
}

// Trade is a single executed trade.
type Trade struct {
	InstrumentID  uint32
	Price         decimal.Decimal
	Size          decimal.Decimal
	TimestampNs   int64
	AggressorSide Side
	BuyerIsMaker  bool
}

// TickerDelta is the optional-per-field analogue of Quote, used for
// venues that emit partial ticker updates. A nil *decimal.Decimal field
// means the venue frame omitted that key.
type TickerDelta struct {
	InstrumentID uint32
	BidPrice     *decimal.Decimal
	BidSize      *decimal.Decimal
	AskPrice     *decimal.Decimal
	AskSize      *decimal.Decimal
	TimestampNs  int64
}

// SpreadEvent captures one directional cross-venue spread computation.
type SpreadEvent struct {
	InstrumentID uint32
	Spread       decimal.Decimal
	Long         Venue
	Short        Venue
	TimestampNs  int64
}
