// Package subscription implements the per-venue, per-stream intent-and-
// status ledger: tracking which (instrument, stream kind) pairs are
// wanted, confirmed, retrying, or given up on, and producing batched
// subscribe requests capped at the smaller venue's documented limit.
package subscription

import "sync"

// Kind is the stream a subscription entry concerns.
type Kind uint8

const (
	Trade Kind = iota
	Quote
)

func (k Kind) String() string {
	switch k {
	case Trade:
		return "trade"
	case Quote:
		return "quote"
	default:
		return "unknown"
	}
}

// Status is the lifecycle stage of one ledger entry.
type Status uint8

const (
	Pending Status = iota
	Active
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MaxBatchSize is the fixed subscribe-request batch cap, the smaller of
// the two venues' documented per-message limits.
const MaxBatchSize = 200

// DefaultMaxRetries is how many times an entry may fail before the ledger
// gives up and marks it Failed.
const DefaultMaxRetries = 3

type key struct {
	id   uint32
	kind Kind
}

type entry struct {
	status     Status
	retryCount int
}

// Ledger is the per-venue subscription intent-and-status table.
type Ledger struct {
	mu         sync.Mutex
	entries    map[key]*entry
	maxRetries int
}

// New constructs an empty Ledger. maxRetries <= 0 uses DefaultMaxRetries.
func New(maxRetries int) *Ledger {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Ledger{
		entries:    make(map[key]*entry),
		maxRetries: maxRetries,
	}
}

// Request inserts Pending entries for any (id, kind) pair not already
// present. Already-present keys are left untouched: duplicate subscribe
// requests are idempotent.
func (l *Ledger) Request(ids []uint32, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		k := key{id: id, kind: kind}
		if _, exists := l.entries[k]; !exists {
			l.entries[k] = &entry{status: Pending}
		}
	}
}

// Cancel transitions matching entries to Cancelled.
func (l *Ledger) Cancel(ids []uint32, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		k := key{id: id, kind: kind}
		if e, exists := l.entries[k]; exists {
			e.status = Cancelled
		}
	}
}

// Confirm transitions matching entries to Active and resets their retry
// count, as if the venue had just acknowledged the subscription.
func (l *Ledger) Confirm(ids []uint32, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		k := key{id: id, kind: kind}
		if e, exists := l.entries[k]; exists {
			e.status = Active
			e.retryCount = 0
		}
	}
}

// Fail increments the retry count for one entry. Once the count reaches
// maxRetries the entry is marked Failed; otherwise it is requeued as
// Pending so the next Batches call retries it.
func (l *Ledger) Fail(id uint32, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{id: id, kind: kind}
	e, exists := l.entries[k]
	if !exists {
		return
	}
	e.retryCount++
	if e.retryCount >= l.maxRetries {
		e.status = Failed
	} else {
		e.status = Pending
	}
}

// Batches returns every currently-Pending instrument ID for kind, chunked
// into groups of at most MaxBatchSize. Ordering within and across batches
// is stable for a single call but otherwise unspecified.
func (l *Ledger) Batches(kind Kind) [][]uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []uint32
	for k, e := range l.entries {
		if k.kind == kind && e.status == Pending {
			pending = append(pending, k.id)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var batches [][]uint32
	for i := 0; i < len(pending); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[i:end])
	}
	return batches
}

// IsSubscribed reports whether (id, kind) is Active or Pending.
func (l *Ledger) IsSubscribed(id uint32, kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, exists := l.entries[key{id: id, kind: kind}]
	return exists && (e.status == Active || e.status == Pending)
}

// IsActive reports whether (id, kind) is confirmed Active.
func (l *Ledger) IsActive(id uint32, kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, exists := l.entries[key{id: id, kind: kind}]
	return exists && e.status == Active
}

// GetStatus returns the status of (id, kind), or (Cancelled, false) if no
// such entry was ever requested.
func (l *Ledger) GetStatus(id uint32, kind Kind) (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, exists := l.entries[key{id: id, kind: kind}]
	if !exists {
		return Cancelled, false
	}
	return e.status, true
}

// ActiveCount returns the number of Active entries across all kinds.
func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.status == Active {
			n++
		}
	}
	return n
}

// TotalCount returns the total number of tracked entries across all
// kinds, regardless of status.
func (l *Ledger) TotalCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// PendingCount returns the number of Pending entries across all kinds.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.status == Pending {
			n++
		}
	}
	return n
}

// RetrySymbols returns the IDs of kind-matching entries that are Pending
// with a non-zero retry count, i.e. entries mid-retry rather than never
// yet attempted.
func (l *Ledger) RetrySymbols(kind Kind) []uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []uint32
	for k, e := range l.entries {
		if k.kind == kind && e.status == Pending && e.retryCount > 0 {
			out = append(out, k.id)
		}
	}
	return out
}

// Clear removes every entry from the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[key]*entry)
}
