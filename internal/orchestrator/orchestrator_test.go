package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/spreadfeed/internal/decimal"
	"github.com/sawpanic/spreadfeed/internal/marketdata"
	"github.com/sawpanic/spreadfeed/internal/registry"
	"github.com/sawpanic/spreadfeed/internal/snapshot"
	"github.com/sawpanic/spreadfeed/internal/tracker"
	"github.com/sawpanic/spreadfeed/internal/venue"
)

// fakeClient plays back a fixed script of UnifiedMessages, then blocks
// until the context passed to NextMessage is cancelled, exercising the
// ingest loop without a real transport.
type fakeClient struct {
	v         marketdata.Venue
	script    []venue.UnifiedMessage
	connected bool
}

func (f *fakeClient) Venue() marketdata.Venue { return f.v }
func (f *fakeClient) Connect(ctx context.Context) error {
	f.connected = true
	return nil
}
func (f *fakeClient) SubscribeTrades(ids []uint32) error { return nil }
func (f *fakeClient) SubscribeQuotes(ids []uint32) error { return nil }
func (f *fakeClient) IsConnected() bool                  { return f.connected }
func (f *fakeClient) LastActivity() time.Time            { return time.Now() }

func (f *fakeClient) NextMessage(ctx context.Context) (venue.UnifiedMessage, bool) {
	if len(f.script) == 0 {
		<-ctx.Done()
		return venue.UnifiedMessage{}, false
	}
	msg := f.script[0]
	f.script = f.script[1:]
	return msg, true
}

func d(s string) decimal.Decimal {
	v, _ := decimal.ParseBytes([]byte(s))
	return v
}

func TestOrchestratorDispatchesQuotesAndCountsTrades(t *testing.T) {
	reg := registry.New(registry.DefaultCapacity)
	if err := reg.Init([]string{"BTCUSDT"}); err != nil {
		t.Fatal(err)
	}
	id, _ := reg.Lookup("BTCUSDT")

	trk := tracker.New(registry.DefaultCapacity, decimal.FromRaw(tracker.DefaultThreshold), tracker.DefaultWindowDuration)
	view := snapshot.NewView(trk, reg)

	quoteA := venue.UnifiedMessage{
		Kind:  venue.MsgQuote,
		Venue: marketdata.VenueA,
		Quote: marketdata.Quote{InstrumentID: id, BidPrice: d("99"), AskPrice: d("100"), TimestampNs: 1},
	}
	quoteB := venue.UnifiedMessage{
		Kind:  venue.MsgQuote,
		Venue: marketdata.VenueB,
		Quote: marketdata.Quote{InstrumentID: id, BidPrice: d("101"), AskPrice: d("102"), TimestampNs: 1},
	}
	trade := venue.UnifiedMessage{Kind: venue.MsgTrade, Venue: marketdata.VenueA}

	clientA := &fakeClient{v: marketdata.VenueA, script: []venue.UnifiedMessage{trade, quoteA}}
	clientB := &fakeClient{v: marketdata.VenueB, script: []venue.UnifiedMessage{quoteB}}

	o := New([]venue.Client{clientA, clientB}, view, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	o.Run(ctx)

	counters := o.Counters()
	if counters[0].Trades != 1 {
		t.Errorf("venue A trades = %d, want 1", counters[0].Trades)
	}
	if counters[0].Quotes != 1 {
		t.Errorf("venue A quotes = %d, want 1", counters[0].Quotes)
	}
	if counters[1].Quotes != 1 {
		t.Errorf("venue B quotes = %d, want 1", counters[1].Quotes)
	}

	snap := view.Snapshot(time.Now())
	if len(snap) != 1 {
		t.Fatalf("Snapshot len = %d, want 1 (both venues quoted)", len(snap))
	}
	if snap[0].Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", snap[0].Symbol)
	}
}

func TestOrchestratorConnectsAndExitsOnCancellation(t *testing.T) {
	reg := registry.New(registry.DefaultCapacity)
	if err := reg.Init([]string{"BTCUSDT"}); err != nil {
		t.Fatal(err)
	}
	trk := tracker.New(registry.DefaultCapacity, decimal.FromRaw(tracker.DefaultThreshold), tracker.DefaultWindowDuration)
	view := snapshot.NewView(trk, reg)

	client := &fakeClient{v: marketdata.VenueA}
	o := New([]venue.Client{client}, view, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	o.Run(ctx)

	if !client.connected {
		t.Error("expected at least one Connect call before cancellation")
	}
}

func TestOrchestratorShutdownStopsRunBeforeContextExpires(t *testing.T) {
	reg := registry.New(registry.DefaultCapacity)
	if err := reg.Init([]string{"BTCUSDT"}); err != nil {
		t.Fatal(err)
	}
	trk := tracker.New(registry.DefaultCapacity, decimal.FromRaw(tracker.DefaultThreshold), tracker.DefaultWindowDuration)
	view := snapshot.NewView(trk, reg)

	client := &fakeClient{v: marketdata.VenueA}
	o := New([]venue.Client{client}, view, 16)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		o.Run(context.Background())
	}()

	// Give the ingest goroutine time to connect before shutting down, so
	// this exercises Shutdown's cancellation path rather than a race with
	// Run's own setup.
	time.Sleep(20 * time.Millisecond)
	o.Shutdown(context.Background())

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}
