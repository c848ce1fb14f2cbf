package decode

import "github.com/sawpanic/spreadfeed/internal/marketdata"

// Kind tags what a decoded frame turned out to be.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTrade
	KindQuote
	KindQuoteDelta
	KindSubscriptionAck
	KindHeartbeat
)

// Result is the tagged-variant output of decoding one venue frame. Exactly
// one of Trade/Quote/QuoteDelta is populated, matching Kind. Symbol is the
// venue's own spelling of the instrument name (pre-alias); InstrumentID on
// the nested record is left unresolved (at its zero value) — resolving
// Symbol to an ID, through the per-venue alias table, is the venue
// client's job, not the decoder's.
type Result struct {
	Kind       Kind
	Symbol     string
	Trade      marketdata.Trade
	Quote      marketdata.Quote
	QuoteDelta marketdata.TickerDelta
}
