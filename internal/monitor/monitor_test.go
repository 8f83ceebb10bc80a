package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/alerts"
	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/registry"
)

type staticPairs struct {
	mu        sync.Mutex
	entries   []registry.Entry
	refresh   func() []registry.Entry
	refreshN  int
	err       error
	refreshed time.Time
}

func (s *staticPairs) Entries() []registry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.Entry(nil), s.entries...)
}

func (s *staticPairs) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *staticPairs) Get(pairID string) (registry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.PairID == pairID {
			return e, true
		}
	}
	return registry.Entry{}, false
}

func (s *staticPairs) NeedsRefresh() bool { return false }

func (s *staticPairs) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshed
}

func (s *staticPairs) Refresh(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshN++
	if s.err != nil {
		return 0, s.err
	}
	s.refreshed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if s.refresh == nil {
		return len(s.entries), nil
	}
	s.entries = s.refresh()
	return len(s.entries), nil
}

type quoteProvider struct {
	mu      sync.Mutex
	quotes  map[string]float64
	block   chan struct{}
	started chan struct{}
	calls   int
}

func (q *quoteProvider) set(id string, yes float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quotes[id] = yes
}

func (q *quoteProvider) SearchMarkets(ctx context.Context, _ string, platforms []markets.Platform) ([]markets.Market, error) {
	q.mu.Lock()
	q.calls++
	block, started := q.block, q.started
	q.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []markets.Market
	for _, p := range platforms {
		for _, ref := range []registry.MarketRef{pmRef, kxRef} {
			yes, ok := q.quotes[ref.MarketID]
			if ref.Platform != p || !ok {
				continue
			}
			out = append(out, markets.Market{Platform: p, MarketID: ref.MarketID, Title: ref.Title, YesPrice: yes})
		}
	}
	return out, nil
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(_ context.Context, _ string, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type memRecorder struct {
	mu     sync.Mutex
	closed []TrackedOpportunity
}

func (m *memRecorder) RecordClosed(_ context.Context, t TrackedOpportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, t)
	return nil
}

var (
	pmRef = registry.MarketRef{Platform: markets.PlatformPolymarket, MarketID: "pm-btc", Title: "Will Bitcoin reach $100k by end of 2025?"}
	kxRef = registry.MarketRef{Platform: markets.PlatformKalshi, MarketID: "KXBTC", Title: "Bitcoin to reach $100k by end of 2025?"}
)

func btcEntry() registry.Entry {
	return registry.Entry{PairID: "pair-btc", MarketA: pmRef, MarketB: kxRef, EquivalenceScore: 0.9}
}

func isActive(m *Monitor, id string) bool {
	for _, got := range m.State().ActiveIDs() {
		if got == id {
			return true
		}
	}
	return false
}

type harness struct {
	mon      *Monitor
	provider *quoteProvider
	sink     *recordingSink
	recorder *memRecorder
	clk      *clock.Fake
	pairs    *staticPairs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	h := &harness{
		provider: &quoteProvider{quotes: map[string]float64{}},
		sink:     &recordingSink{},
		recorder: &memRecorder{},
		clk:      clk,
		pairs:    &staticPairs{entries: []registry.Entry{btcEntry()}},
	}
	mon, err := New(Config{
		Pairs:          h.pairs,
		Provider:       h.provider,
		Dedup:          alerts.NewDeduplicator(alerts.DedupConfig{Cooldown: 30 * time.Minute, ProfitBump: 5, Clock: clk}),
		Sinks:          []alerts.Sink{h.sink},
		Recorder:       h.recorder,
		Clock:          clk,
		Interval:       10 * time.Millisecond,
		AlertThreshold: 0.02,
	})
	require.NoError(t, err)
	h.mon = mon
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestLifecycleOpenUpdateCloseReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)
	require.NoError(t, h.mon.RunOnce(ctx))

	active := h.mon.State().Active()
	require.Len(t, active, 1)
	assert.InDelta(t, 0.15, active[0].PeakProfit, 1e-9)
	assert.True(t, active[0].AlertSent)
	assert.Equal(t, 1, h.sink.count())

	h.clk.Advance(time.Minute)
	h.provider.set("pm-btc", 0.42)
	require.NoError(t, h.mon.RunOnce(ctx))

	active = h.mon.State().Active()
	require.Len(t, active, 1)
	assert.InDelta(t, 0.15, active[0].PeakProfit, 1e-9)
	assert.InDelta(t, 0.13, active[0].CurrentProfit, 1e-9)
	assert.Len(t, active[0].PriceHistory, 2)
	assert.Equal(t, 1, h.sink.count(), "updates do not alert")

	h.clk.Advance(time.Minute)
	h.provider.set("pm-btc", 0.55)
	require.NoError(t, h.mon.RunOnce(ctx))

	assert.Empty(t, h.mon.State().Active())
	hist := h.mon.State().History()
	require.Len(t, hist, 1)
	assert.Equal(t, StatusClosed, hist[0].Status)
	assert.Equal(t, "profit below threshold", hist[0].CloseReason)
	require.Len(t, h.recorder.closed, 1)

	h.clk.Advance(time.Minute)
	h.provider.set("pm-btc", 0.40)
	require.NoError(t, h.mon.RunOnce(ctx))

	active = h.mon.State().Active()
	require.Len(t, active, 1)
	assert.Len(t, active[0].PriceHistory, 1, "reopen starts a fresh record")
	assert.Equal(t, h.clk.Now(), active[0].FirstSeen)
	assert.False(t, active[0].AlertSent, "cooldown suppresses the repeat alert")
	assert.Equal(t, 1, h.sink.count())

	st := h.mon.Status()
	assert.Equal(t, 4, st.ScanCount)
	assert.Equal(t, 2, st.OpportunitiesFound)
	assert.Equal(t, 1, st.AlertsSent)
	assert.Equal(t, 1, st.RegistrySize)
}

func TestProfitBumpReallowsAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.provider.set("pm-btc", 0.45)
	h.provider.set("KXBTC", 0.50)
	require.NoError(t, h.mon.RunOnce(ctx))
	require.Equal(t, 1, h.sink.count())

	h.provider.set("pm-btc", 0.50)
	require.NoError(t, h.mon.RunOnce(ctx))

	h.provider.set("pm-btc", 0.35)
	require.NoError(t, h.mon.RunOnce(ctx))
	assert.Equal(t, 2, h.sink.count(), "a 10pp jump clears the dedup bump")
}

func TestMissingQuoteSkipsPair(t *testing.T) {
	h := newHarness(t)
	h.provider.set("pm-btc", 0.40)

	require.NoError(t, h.mon.RunOnce(context.Background()))
	assert.Empty(t, h.mon.State().Active())
	assert.Zero(t, h.sink.count())
}

func TestRemovedPairsClose(t *testing.T) {
	h := newHarness(t)
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)
	require.NoError(t, h.mon.RunOnce(context.Background()))
	require.True(t, isActive(h.mon, "pair-btc"))

	h.pairs.refresh = func() []registry.Entry { return nil }
	h.mon.refreshRegistry(context.Background(), true)

	assert.False(t, isActive(h.mon, "pair-btc"))
	hist := h.mon.State().History()
	require.Len(t, hist, 1)
	assert.Equal(t, "removed from registry", hist[0].CloseReason)
}

func TestEmptyRegistryRefreshesInline(t *testing.T) {
	h := newHarness(t)
	h.pairs.entries = nil
	h.pairs.refresh = func() []registry.Entry { return []registry.Entry{btcEntry()} }
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)

	require.NoError(t, h.mon.RunOnce(context.Background()))
	assert.Equal(t, 1, h.pairs.refreshN)
	assert.True(t, isActive(h.mon, "pair-btc"))
	assert.False(t, h.mon.Status().RegistryRefreshedAt.IsZero())
}

func TestLoadedEmptyRegistryWaitsForRefreshTicker(t *testing.T) {
	h := newHarness(t)
	h.pairs.entries = nil
	h.pairs.refreshed = h.clk.Now()

	require.NoError(t, h.mon.RunOnce(context.Background()))
	require.NoError(t, h.mon.RunOnce(context.Background()))
	assert.Zero(t, h.pairs.refreshN, "scan ticks do not rematch")
	assert.Zero(t, h.provider.calls)
}

func TestFailedRefreshKeepsActiveRecords(t *testing.T) {
	h := newHarness(t)
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)
	require.NoError(t, h.mon.RunOnce(context.Background()))
	require.True(t, isActive(h.mon, "pair-btc"))

	h.pairs.err = errors.New("fetch kalshi markets: 503")
	h.mon.refreshRegistry(context.Background(), true)

	assert.True(t, isActive(h.mon, "pair-btc"))
	assert.Empty(t, h.mon.State().History())
	assert.Empty(t, h.recorder.closed)
	require.NotEmpty(t, h.mon.Status().Errors)
	assert.Contains(t, h.mon.Status().Errors[0], "registry refresh")

	h.clk.Advance(time.Minute)
	h.provider.set("pm-btc", 0.38)
	require.NoError(t, h.mon.RunOnce(context.Background()))
	active := h.mon.State().Active()
	require.Len(t, active, 1)
	assert.InDelta(t, 0.17, active[0].PeakProfit, 1e-9)
	assert.Len(t, active[0].PriceHistory, 2)
}

func TestRunOnceSkipsWhenBusy(t *testing.T) {
	h := newHarness(t)
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)
	h.provider.block = make(chan struct{})
	h.provider.started = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() { errc <- h.mon.RunOnce(context.Background()) }()
	<-h.provider.started

	assert.ErrorIs(t, h.mon.RunOnce(context.Background()), ErrBusy)

	close(h.provider.block)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, h.mon.Status().ScanCount)
}

func TestStopWaitsForInflightScan(t *testing.T) {
	h := newHarness(t)
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)
	h.provider.block = make(chan struct{})
	h.provider.started = make(chan struct{}, 1)

	require.NoError(t, h.mon.Start(context.Background()))
	assert.ErrorIs(t, h.mon.Start(context.Background()), ErrAlreadyRunning)
	<-h.provider.started

	var stopped atomic.Bool
	go func() {
		h.mon.Stop()
		stopped.Store(true)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.False(t, stopped.Load(), "Stop returned while a scan was running")

	close(h.provider.block)
	require.Eventually(t, stopped.Load, time.Second, 5*time.Millisecond)

	st := h.mon.Status()
	assert.False(t, st.IsRunning)
	assert.Equal(t, 1, st.ScanCount, "the in-flight scan completes")
	assert.True(t, isActive(h.mon, "pair-btc"))
}

func TestStatusErrorsAreBounded(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < maxStatusErrors+10; i++ {
		h.mon.recordError(fmt.Sprintf("err %d", i))
	}
	errs := h.mon.Status().Errors
	require.Len(t, errs, maxStatusErrors)
	assert.Equal(t, "err 10", errs[0])
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Send(context.Context, string, string) error { return errors.New("down") }

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	h.mon.cfg.Sinks = []alerts.Sink{failingSink{}, h.sink}
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)

	require.NoError(t, h.mon.RunOnce(context.Background()))
	assert.Equal(t, 1, h.sink.count())
	assert.NotEmpty(t, h.mon.Status().Errors)
}

func TestUndeliveredAlertIsNotCounted(t *testing.T) {
	h := newHarness(t)
	h.mon.cfg.Sinks = []alerts.Sink{failingSink{}}
	h.provider.set("pm-btc", 0.40)
	h.provider.set("KXBTC", 0.55)

	require.NoError(t, h.mon.RunOnce(context.Background()))
	active := h.mon.State().Active()
	require.Len(t, active, 1)
	assert.False(t, active[0].AlertSent)
	assert.Zero(t, h.mon.Status().AlertsSent)
}
