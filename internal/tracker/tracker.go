// Package tracker implements the per-instrument spread state machine: one
// state slot per instrument ID, merging the latest quote from each of the
// two venues, computing the directional cross-venue spread, feeding the
// rolling window, and counting threshold crossings.
package tracker

import (
	"time"

	"github.com/sawpanic/spreadfeed/internal/decimal"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
	"github.com/sawpanic/spreadfeed/internal/window"
)

// DefaultThreshold is the raw Decimal value a spread must exceed to count
// as a hit: 250_000 raw units (0.0025, i.e. 25 bps), resolved as the
// single source of truth per the source material's two conflicting
// constants (see DESIGN.md's open-question log).
const DefaultThreshold = 250_000

// DefaultWindowDuration is the rolling window's retention span.
const DefaultWindowDuration = 120 * time.Second

// instrumentState is owned exclusively by the tracker's single writer;
// nothing here is internally synchronized.
type instrumentState struct {
	instrumentID  uint32
	lastA         *marketdata.Quote
	lastB         *marketdata.Quote
	history       *window.Window
	hits          uint64
	currentSpread decimal.Decimal
}

// Aggregate is one instrument's snapshot-surface view.
type Aggregate struct {
	InstrumentID  uint32
	CurrentSpread decimal.Decimal
	SpreadRange   decimal.Decimal
	Hits          uint64
	IsValid       bool
}

// Tracker holds one state slot per instrument ID in a dense, pre-allocated
// array sized to maxInstruments, matching the source's "allocate once,
// never reallocate" table design.
type Tracker struct {
	slots          []*instrumentState
	threshold      decimal.Decimal
	windowDuration time.Duration
}

// New constructs a Tracker. maxInstruments bounds the dense slot array;
// threshold is the raw Decimal hit-counter cutoff; windowDuration is the
// rolling window span applied to every instrument's history.
func New(maxInstruments int, threshold decimal.Decimal, windowDuration time.Duration) *Tracker {
	return &Tracker{
		slots:          make([]*instrumentState, maxInstruments),
		threshold:      threshold,
		windowDuration: windowDuration,
	}
}

// Update merges a freshly-decoded quote from venue into instrument id's
// state, returning the resulting SpreadEvent if both venues' quotes are
// now present. now is the monotonic clock reading used to stamp the
// rolling window; id out of bounds returns (nil, false) rather than
// panicking, matching the "impossible but must not crash" capacity
// contract.
func (t *Tracker) Update(now time.Time, id uint32, q marketdata.Quote, venue marketdata.Venue) (*marketdata.SpreadEvent, bool) {
	if int(id) >= len(t.slots) {
		return nil, false
	}

	slot := t.slots[id]
	if slot == nil {
		slot = &instrumentState{
			instrumentID: id,
			history:      window.New(t.windowDuration),
		}
		t.slots[id] = slot
	}

	qCopy := q
	qCopy.InstrumentID = id
	switch venue {
	case marketdata.VenueA:
		slot.lastA = &qCopy
	case marketdata.VenueB:
		slot.lastB = &qCopy
	default:
		return nil, false
	}

	if slot.lastA == nil || slot.lastB == nil {
		return nil, false
	}

	event, ok := calculateSpread(id, *slot.lastA, *slot.lastB)
	if !ok {
		return nil, false
	}

	slot.currentSpread = event.Spread
	slot.history.Push(now, event.Spread)
	if event.Spread.Raw() > t.threshold.Raw() {
		slot.hits++
	}

	return &event, true
}

// calculateSpread implements the directional spread algorithm: compute
// both candidate crossing directions, pick the larger, and tie-break
// toward the venue-A-long candidate on exact ties.
func calculateSpread(id uint32, a, b marketdata.Quote) (marketdata.SpreadEvent, bool) {
	sAB := candidateSpread(b.BidPrice, a.AskPrice)
	sBA := candidateSpread(a.BidPrice, b.AskPrice)

	var spread decimal.Decimal
	var long, short marketdata.Venue
	if sAB.GreaterOrEqual(sBA) {
		spread, long, short = sAB, marketdata.VenueA, marketdata.VenueB
	} else {
		spread, long, short = sBA, marketdata.VenueB, marketdata.VenueA
	}

	ts := a.TimestampNs
	if b.TimestampNs > ts {
		ts = b.TimestampNs
	}

	return marketdata.SpreadEvent{
		InstrumentID: id,
		Spread:       spread,
		Long:         long,
		Short:        short,
		TimestampNs:  ts,
	}, true
}

// candidateSpread computes (bid-ask)/ask, collapsing to zero when ask is
// not strictly positive or the arithmetic fails; a non-positive-ask
// candidate is defined to be strictly less than any positive candidate,
// which the zero collapse achieves naturally against any other candidate
// derived from a valid positive quote.
func candidateSpread(bid, ask decimal.Decimal) decimal.Decimal {
	if !ask.IsPositive() {
		return decimal.Zero
	}
	diff, ok := bid.CheckedSub(ask)
	if !ok {
		return decimal.Zero
	}
	ratio, ok := diff.SafeDiv(ask)
	if !ok {
		return decimal.Zero
	}
	return ratio
}

// Snapshot computes aggregates for every instrument where both venues'
// quotes have been observed at least once. now drives window eviction, so
// this mutates retained window state even though it is a read surface —
// callers are expected to hold the tracker's writer lease while calling
// it (see internal/snapshot).
func (t *Tracker) Snapshot(now time.Time) []Aggregate {
	var out []Aggregate
	for _, slot := range t.slots {
		if slot == nil || slot.lastA == nil || slot.lastB == nil {
			continue
		}

		min, max := slot.history.MinMax(now)
		absMin, ok := min.CheckedAbs()
		if !ok {
			absMin = decimal.Zero
		}
		spreadRange, ok := absMin.CheckedAdd(max)
		if !ok {
			spreadRange = decimal.Zero
		}

		out = append(out, Aggregate{
			InstrumentID:  slot.instrumentID,
			CurrentSpread: slot.currentSpread,
			SpreadRange:   spreadRange,
			Hits:          slot.hits,
			IsValid:       spansZero(min, max),
		})
	}
	return out
}

// spansZero reports whether the window's min and max have differing
// signs (or either is exactly zero while the other is non-zero), i.e.
// the spread genuinely crossed zero at some point in the window rather
// than staying one-sided.
func spansZero(min, max decimal.Decimal) bool {
	if min.IsZero() || max.IsZero() {
		return !(min.IsZero() && max.IsZero())
	}
	return min.IsNegative() != max.IsNegative()
}
