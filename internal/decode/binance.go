package decode

import (
	"github.com/sawpanic/spreadfeed/internal/decimal"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
)

// Binance-shaped frame discriminators. Probe order is fixed; the first
// positive match wins.
const (
	binanceAggTradeMarker   = "aggTrade"
	binanceBookTickerMarker = "bookTicker"
	binanceAckMarker        = `"result":null`
)

// DecodeBinance lifts one venue-A frame into a Result. It never allocates
// on the success path beyond the symbol string slice, and returns
// (Result{}, false) for any frame missing a required field.
func DecodeBinance(data []byte) (Result, bool) {
	switch {
	case contains(data, binanceAggTradeMarker):
		return decodeBinanceTrade(data)
	case contains(data, binanceBookTickerMarker):
		return decodeBinanceQuote(data)
	case contains(data, binanceAckMarker):
		return Result{Kind: KindSubscriptionAck}, true
	default:
		return Result{}, false
	}
}

func decodeBinanceTrade(data []byte) (Result, bool) {
	symbol, ok := findField(data, "s")
	if !ok {
		return Result{}, false
	}
	priceTok, ok := findField(data, "p")
	if !ok {
		return Result{}, false
	}
	sizeTok, ok := findField(data, "q")
	if !ok {
		return Result{}, false
	}
	tsTok, ok := findField(data, "T")
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

	buyerIsMaker := false
	if mTok, ok := findField(data, "m"); ok {
		if b, ok := parseBool(mTok); ok {
			buyerIsMaker = b
		}
	}

	side := marketdata.SideBuy
	if buyerIsMaker {
		side = marketdata.SideSell
	}

	return Result{
		Kind:   KindTrade,
		Symbol: string(symbol),
		Trade: marketdata.Trade{
			Price:         price,
			Size:          size,
			TimestampNs:   ts,
			AggressorSide: side,
			BuyerIsMaker:  buyerIsMaker,
		},
	}, true
}

func decodeBinanceQuote(data []byte) (Result, bool) {
	symbol, ok := findField(data, "s")
	if !ok {
		return Result{}, false
	}
	bidTok, ok := findField(data, "b")
	if !ok {
		return Result{}, false
	}
	bidSizeTok, ok := findField(data, "B")
	if !ok {
		return Result{}, false
	}
	askTok, ok := findField(data, "a")
	if !ok {
		return Result{}, false
	}
	askSizeTok, ok := findField(data, "A")
	if !ok {
		return Result{}, false
	}

	bid, ok := decimal.ParseBytes(bidTok)
	if !ok {
		return Result{}, false
	}
	bidSize, ok := decimal.ParseBytes(bidSizeTok)
	if !ok {
		return Result{}, false
	}
	ask, ok := decimal.ParseBytes(askTok)
	if !ok {
		return Result{}, false
	}
	askSize, ok := decimal.ParseBytes(askSizeTok)
	if !ok {
		return Result{}, false
	}

	return Result{
		Kind:   KindQuote,
		Symbol: string(symbol),
		Quote: marketdata.Quote{
			BidPrice: bid,
			BidSize:  bidSize,
			AskPrice: ask,
			AskSize:  askSize,
			// bookTicker frames carry no timestamp; the caller stamps one.
			TimestampNs: 0,
		},
	}, true
}
