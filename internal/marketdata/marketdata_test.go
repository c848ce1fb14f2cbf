package marketdata

import (
	"testing"

	"github.com/sawpanic/spreadfeed/internal/decimal"
)

func TestQuoteValid(t *testing.T) {
	bid, _ := decimal.ParseBytes([]byte("99"))
	ask, _ := decimal.ParseBytes([]byte("100"))

	q := Quote{BidPrice: bid, AskPrice: ask}
	if !q.Valid() {
		t.Error("quote with bid < ask, both positive, should be valid")
	}

	inverted := Quote{BidPrice: ask, AskPrice: bid}
	if inverted.Valid() {
		t.Error("quote with bid > ask should be invalid")
	}

	zeroAsk := Quote{BidPrice: bid, AskPrice: decimal.Zero}
	if zeroAsk.Valid() {
		t.Error("quote with non-positive ask should be invalid")
	}
}

func TestVenueString(t *testing.T) {
	cases := map[Venue]string{VenueA: "venueA", VenueB: "venueB", VenueUnknown: "unknown"}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("Venue(%d).String() = %q, want %q", v, got, want)
		}
	}
}

func TestSideString(t *testing.T) {
	cases := map[Side]string{SideBuy: "buy", SideSell: "sell", SideUnknown: "unknown"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Side(%d).String() = %q, want %q", s, got, want)
		}
	}
}
