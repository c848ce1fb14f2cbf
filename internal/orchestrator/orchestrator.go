// Package orchestrator fans the per-venue ingest workers into a single
// consumer that owns all mutable per-instrument tracker state, per the
// "bytes -> Transport -> Decoder -> unified record -> queue -> tracker"
// data flow: one goroutine per venue client publishes UnifiedMessages onto
// a bounded channel; a single goroutine drains it and drives the snapshot
// view's writer lease.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/spreadfeed/internal/snapshot"
	"github.com/sawpanic/spreadfeed/internal/venue"
)

// DefaultQueueCapacity is the bounded MPSC queue's capacity: large enough
// to absorb a burst without unbounded growth, small enough that a stalled
// consumer applies backpressure quickly.
const DefaultQueueCapacity = 1024

// ReconnectBackoff is how long an ingest worker sleeps after a transport
// error before re-entering its connect loop.
const ReconnectBackoff = time.Second

// VenueCounters tracks per-venue message throughput, read concurrently by
// any caller while ingest workers update it.
type VenueCounters struct {
	Trades int64
	Quotes int64
	Errors int64
}

// Orchestrator owns the fan-in queue and the set of venue clients feeding
// it. Run blocks until ctx is cancelled or Shutdown is called.
type Orchestrator struct {
	clients []venue.Client
	view    *snapshot.View
	queue   chan venue.UnifiedMessage

	counters []VenueCounters

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs an Orchestrator over the given clients and the tracker
// view they feed. clients[i] is indexed identically in Counters().
func New(clients []venue.Client, view *snapshot.View, queueCapacity int) *Orchestrator {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Orchestrator{
		clients:  clients,
		view:     view,
		queue:    make(chan venue.UnifiedMessage, queueCapacity),
		counters: make([]VenueCounters, len(clients)),
	}
}

// Counters returns a snapshot of the per-venue message counters, indexed
// the same as the client slice passed to New.
func (o *Orchestrator) Counters() []VenueCounters {
	out := make([]VenueCounters, len(o.counters))
	for i := range o.counters {
		out[i] = VenueCounters{
			Trades: atomic.LoadInt64(&o.counters[i].Trades),
			Quotes: atomic.LoadInt64(&o.counters[i].Quotes),
			Errors: atomic.LoadInt64(&o.counters[i].Errors),
		}
	}
	return out
}

// Run starts one ingest goroutine per venue client plus the single
// consumer, and blocks until ctx is cancelled (or Shutdown is called) and
// the consumer has drained and exited. Cancellation stops every ingest
// goroutine from sending further messages; the consumer also observes the
// cancellation itself, processes whatever is already buffered, and exits
// without waiting for the queue to be closed. Once all ingest goroutines
// have returned, the queue is closed.
func (o *Orchestrator) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	var wg sync.WaitGroup
	for i, c := range o.clients {
		wg.Add(1)
		go func(idx int, client venue.Client) {
			defer wg.Done()
			o.ingest(runCtx, idx, client)
		}(i, c)
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		o.consume(runCtx)
	}()

	wg.Wait()
	close(o.queue)
	<-consumerDone
}

// Shutdown cancels the context Run derived internally, causing every
// ingest goroutine and the consumer to observe cancellation and exit. It
// is a no-op if called before Run or after Run has already returned.
func (o *Orchestrator) Shutdown(_ context.Context) {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ingest drives one venue client's connect/receive loop. It does not call
// SubscribeTrades or SubscribeQuotes, neither on the first connect nor
// after a reconnect.
//
//	Init --connect--> Subscribed --recv--> Subscribed
//	                       |                  |--err--> Backoff --sleep--> Init
//	                       '--close----------------------> Backoff
//
// On any transport error the worker sleeps ReconnectBackoff and re-enters
// Init; the consumer is oblivious to individual reconnections.
func (o *Orchestrator) ingest(ctx context.Context, idx int, client venue.Client) {
	logger := log.With().Str("venue", client.Venue().String()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		connID := uuid.NewString()
		if err := client.Connect(ctx); err != nil {
			atomic.AddInt64(&o.counters[idx].Errors, 1)
			logger.Warn().Str("conn_id", connID).Err(err).Msg("connect failed, backing off")
			if !sleepOrDone(ctx, ReconnectBackoff) {
				return
			}
			continue
		}
		logger.Info().Str("conn_id", connID).Msg("connected")

		if !o.drain(ctx, idx, client) {
			return
		}
		// drain returned because of a transport error or peer close, not
		// context cancellation: back off and reconnect.
		logger.Info().Str("conn_id", connID).Msg("reconnecting")
		if !sleepOrDone(ctx, ReconnectBackoff) {
			return
		}
	}
}

// drain reads messages from client until an error/close message arrives
// or ctx is cancelled. It returns false only when ctx was cancelled.
func (o *Orchestrator) drain(ctx context.Context, idx int, client venue.Client) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		msg, ok := client.NextMessage(ctx)
		if !ok {
			continue
		}

		switch msg.Kind {
		case venue.MsgTrade:
			atomic.AddInt64(&o.counters[idx].Trades, 1)
		case venue.MsgQuote:
			atomic.AddInt64(&o.counters[idx].Quotes, 1)
		case venue.MsgError:
			atomic.AddInt64(&o.counters[idx].Errors, 1)
			return true
		case venue.MsgHeartbeat:
			continue
		}

		select {
		case o.queue <- msg:
		case <-ctx.Done():
			return false
		}
	}
}

// consume is the queue's single reader: it owns every mutation of tracker
// state, eliminating per-instrument locking.
func (o *Orchestrator) consume(ctx context.Context) {
	for {
		select {
		case msg, ok := <-o.queue:
			if !ok {
				return
			}
			if msg.Kind != venue.MsgQuote {
				continue
			}
			o.view.Update(time.Now(), msg.Quote.InstrumentID, msg.Quote, msg.Venue)
		case <-ctx.Done():
			// Drain whatever is already buffered before exiting so a
			// cancellation mid-burst doesn't silently drop queued quotes.
			for {
				select {
				case msg, ok := <-o.queue:
					if !ok {
						return
					}
					if msg.Kind == venue.MsgQuote {
						o.view.Update(time.Now(), msg.Quote.InstrumentID, msg.Quote, msg.Venue)
					}
				default:
					return
				}
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
