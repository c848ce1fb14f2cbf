package decode

import (
	"github.com/sawpanic/spreadfeed/internal/decimal"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
)

// Bybit-shaped frame discriminators. Probe order is fixed; the first
// positive match wins. These are fragile byte-pattern probes carried over
// from the source implementation verbatim; re-validate against current
// venue documentation before relying on them in production (see open
// question #2 in DESIGN.md).
const (
	bybitPublicTradeMarker = "publicTrade"
	bybitTickersMarker     = "tickers"
	bybitPongMarker        = `"op":"pong"`
	bybitAckMarker         = `"success":true`
)

// DecodeBybit lifts one venue-B frame into a Result.
func DecodeBybit(data []byte) (Result, bool) {
	switch {
	case contains(data, bybitPublicTradeMarker):
		return decodeBybitTrade(data)
	case contains(data, bybitTickersMarker):
		return decodeBybitTicker(data)
	case contains(data, bybitPongMarker):
		return Result{Kind: KindHeartbeat}, true
	case contains(data, bybitAckMarker):
		return Result{Kind: KindSubscriptionAck}, true
	default:
		return Result{}, false
	}
}

// decodeBybitTrade locates the "data":[...] array and extracts fields from
// its first object only (public trade frames may batch several trades per
// frame; only the first is surfaced, matching the source's behavior).
func decodeBybitTrade(data []byte) (Result, bool) {
	obj, ok := firstObjectInArrayField(data, "data")
	if !ok {
		return Result{}, false
	}

	symbol, ok := findField(obj, "s")
	if !ok {
		return Result{}, false
	}
	priceTok, ok := findField(obj, "p")
	if !ok {
		return Result{}, false
	}
	sizeTok, ok := findField(obj, "v")
	if !ok {
		return Result{}, false
	}
	tsTok, ok := findField(obj, "T")
	if !ok {
		return Result{}, false
	}

	price, ok := decimal.ParseBytes(priceTok)
	if !ok {
		return Result{}, false
	}
	size, ok := decimal.ParseBytes(sizeTok)
	if !ok {
		return Result{}, false
	}
	ts, ok := parseTimestampMs(tsTok)
	if !ok {
		return Result{}, false
	}

	side := marketdata.SideBuy
	if sTok, ok := findField(obj, "S"); ok {
		if string(sTok) == "Sell" {
			side = marketdata.SideSell
		}
	}

	return Result{
		Kind:   KindTrade,
		Symbol: string(symbol),
		Trade: marketdata.Trade{
			Price:         price,
			Size:          size,
			TimestampNs:   ts,
			AggressorSide: side,
			BuyerIsMaker:  side == marketdata.SideSell,
		},
	}, true
}

// decodeBybitTicker handles both snapshot (all four quote fields present)
// and delta (any subset present) ticker shapes, always returning a
// QuoteDelta; the venue client's delta-merge cache folds it into the last
// known quote for the instrument.
func decodeBybitTicker(data []byte) (Result, bool) {
	symbol, ok := bybitSymbol(data)
	if !ok {
		return Result{}, false
	}

	delta := marketdata.TickerDelta{}
	if tok, ok := findField(data, "bid1Price"); ok {
		if v, ok := decimal.ParseBytes(tok); ok {
			delta.BidPrice = &v
		}
	}
	if tok, ok := findField(data, "bid1Size"); ok {
		if v, ok := decimal.ParseBytes(tok); ok {
			delta.BidSize = &v
		}
	}
	if tok, ok := findField(data, "ask1Price"); ok {
		if v, ok := decimal.ParseBytes(tok); ok {
			delta.AskPrice = &v
		}
	}
	if tok, ok := findField(data, "ask1Size"); ok {
		if v, ok := decimal.ParseBytes(tok); ok {
			delta.AskSize = &v
		}
	}
	if tok, ok := findField(data, "ts"); ok {
		if ts, ok := parseTimestampMs(tok); ok {
			delta.TimestampNs = ts
		}
	}

	return Result{
		Kind:       KindQuoteDelta,
		Symbol:     symbol,
		QuoteDelta: delta,
	}, true
}

// bybitSymbol resolves the instrument name either from an explicit
// "symbol" field or, failing that, from the pub/sub topic string (the
// portion after the first '.').
func bybitSymbol(data []byte) (string, bool) {
	if tok, ok := findField(data, "symbol"); ok {
		return string(tok), true
	}
	topic, ok := findField(data, "topic")
	if !ok {
		return "", false
	}
	for i, b := range topic {
		if b == '.' {
			return string(topic[i+1:]), true
		}
	}
	return "", false
}

// firstObjectInArrayField locates `"field":[` and returns the byte span of
// the first `{...}` object inside that array, with balanced-brace
// tracking (object values may themselves contain nested braces).
func firstObjectInArrayField(data []byte, field string) ([]byte, bool) {
	idx := indexOfKey(data, field)
	if idx < 0 {
		return nil, false
	}
	pos := idx + len(field) + 2
	for pos < len(data) && isSpace(data[pos]) {
		pos++
	}
	if pos >= len(data) || data[pos] != ':' {
		return nil, false
	}
	pos++
	for pos < len(data) && isSpace(data[pos]) {
		pos++
	}
	if pos >= len(data) || data[pos] != '[' {
		return nil, false
	}
	pos++
	for pos < len(data) && isSpace(data[pos]) {
		pos++
	}
	if pos >= len(data) || data[pos] != '{' {
		return nil, false
	}

	start := pos
	depth := 0
	inString := false
	for ; pos < len(data); pos++ {
		c := data[pos]
		if inString {
			if c == '\\' {
				pos++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[start : pos+1], true
			}
		}
	}
	return nil, false
}
