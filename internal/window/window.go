// Package window implements the rolling time-window buffer backing each
// instrument's spread history: an ordered deque of (timestamp, value)
// pairs with a cached min/max that is recomputed lazily only when a
// value that could have been the extreme falls out of the window.
//
// Window is not internally synchronized: it is owned exclusively by
// whichever writer holds the tracker's write lease (see internal/tracker),
// matching the "one owner, no per-instrument locking" design.
package window

import (
	"time"

	"github.com/sawpanic/spreadfeed/internal/decimal"
)

type sample struct {
	at    time.Time
	value decimal.Decimal
}

// Window is a fixed-duration rolling buffer of Decimal samples.
type Window struct {
	duration time.Duration
	entries  []sample
	min, max decimal.Decimal
	dirty    bool
}

// New constructs a Window retaining samples no older than duration.
func New(duration time.Duration) *Window {
	return &Window{duration: duration}
}

// Push records value as observed at now. Eviction of stale entries, and
// the consequent min/max bookkeeping, happens here rather than being
// deferred entirely to query time, keeping Push amortized O(1) under
// steady arrival.
func (w *Window) Push(now time.Time, value decimal.Decimal) {
	w.entries = append(w.entries, sample{at: now, value: value})
	w.evict(now)

	switch {
	case len(w.entries) == 1:
		w.min = value
		w.max = value
		w.dirty = false
	case value.LessThan(w.min):
		w.min = value
	case value.GreaterThan(w.max):
		w.max = value
	}
}

// MinMax evicts stale entries, then returns (min, max) over what remains,
// recomputing from scratch only if eviction invalidated a cached extreme.
// Returns (Zero, Zero) when the window is empty.
func (w *Window) MinMax(now time.Time) (decimal.Decimal, decimal.Decimal) {
	w.evict(now)
	if len(w.entries) == 0 {
		return decimal.Zero, decimal.Zero
	}
	if w.dirty {
		w.recalc()
	}
	return w.min, w.max
}

// Len returns the number of entries currently retained, without evicting.
func (w *Window) Len() int {
	return len(w.entries)
}

// Clear discards every retained entry.
func (w *Window) Clear() {
	w.entries = w.entries[:0]
	w.min = decimal.Zero
	w.max = decimal.Zero
	w.dirty = false
}

// evict drops entries older than now-duration from the front. If an
// evicted entry's value equaled the cached min or max, the cache is
// marked dirty so the next query does a full rescan instead of trusting a
// now-possibly-stale extreme.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.entries) && w.entries[i].at.Before(cutoff) {
		if w.entries[i].value.Equal(w.min) || w.entries[i].value.Equal(w.max) {
			w.dirty = true
		}
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}

// recalc does a full scan to recompute min and max. Only called when
// dirty, so its O(k) cost is amortized across the (typically many) pushes
// between evictions of an extreme value.
func (w *Window) recalc() {
	if len(w.entries) == 0 {
		w.min = decimal.Zero
		w.max = decimal.Zero
		w.dirty = false
		return
	}
	min := w.entries[0].value
	max := w.entries[0].value
	for _, e := range w.entries[1:] {
		if e.value.LessThan(min) {
			min = e.value
		}
		if e.value.GreaterThan(max) {
			max = e.value
		}
	}
	w.min = min
	w.max = max
	w.dirty = false
}
