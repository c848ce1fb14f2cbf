// Package snapshot exposes the tracker's per-instrument aggregates to the
// external, read-only query surface, mapping internal Decimal/IsValid
// shapes onto the wire shape that surface expects.
package snapshot

import (
	"sync"
	"time"

	"github.com/sawpanic/spreadfeed/internal/marketdata"
	"github.com/sawpanic/spreadfeed/internal/registry"
	"github.com/sawpanic/spreadfeed/internal/tracker"
)

// Aggregate is the query surface's wire shape for one instrument.
//
//	{ symbol, currentSpread, spreadRange, hits, estHalfLife, isSpreadNA }
type Aggregate struct {
	Symbol        string  `json:"symbol"`
	CurrentSpread float64 `json:"currentSpread"`
	SpreadRange   float64 `json:"spreadRange"`
	Hits          uint64  `json:"hits"`
	EstHalfLife   float64 `json:"estHalfLife"` // always 0, see DESIGN.md open question 3
	IsSpreadNA    bool    `json:"isSpreadNA"`
}

// View binds a Tracker and a Registry behind a single mutex that acts as
// the writer lease spec.md §4.10/§5 calls for: Snapshot mutates window
// state via eviction, so it takes the same exclusive lease the consumer's
// ordinary Update calls take, rather than a reader lease.
type View struct {
	mu  sync.Mutex
	trk *tracker.Tracker
	reg *registry.Registry
}

// NewView constructs a View over an existing Tracker and Registry.
func NewView(trk *tracker.Tracker, reg *registry.Registry) *View {
	return &View{trk: trk, reg: reg}
}

// Update forwards to the underlying Tracker under the writer lease. This
// is the same entry point the orchestrator's single consumer uses so that
// Snapshot calls from the query task never race with live ingestion.
func (v *View) Update(now time.Time, id uint32, q marketdata.Quote, venue marketdata.Venue) (*marketdata.SpreadEvent, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.trk.Update(now, id, q, venue)
}

// Snapshot computes the query surface's aggregates for every instrument
// with both venues present, safe to call from any task.
func (v *View) Snapshot(now time.Time) []Aggregate {
	v.mu.Lock()
	defer v.mu.Unlock()

	raw := v.trk.Snapshot(now)
	out := make([]Aggregate, 0, len(raw))
	for _, a := range raw {
		name, ok := v.reg.Name(a.InstrumentID)
		if !ok {
			continue
		}
		out = append(out, Aggregate{
			Symbol:        name,
			CurrentSpread: a.CurrentSpread.ToFloat64(),
			SpreadRange:   a.SpreadRange.ToFloat64(),
			Hits:          a.Hits,
			EstHalfLife:   0,
			IsSpreadNA:    !a.IsValid,
		})
	}
	return out
}
