// Package monitor polls registry pairs for live prices, tracks the lifecycle
// of each opportunity and raises deduplicated alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hetulpatel/crossarb/internal/alerts"
	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/metadata"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/registry"
)

var (
	ErrBusy           = errors.New("monitor: scan already in progress")
	ErrAlreadyRunning = errors.New("monitor: already running")
)

const maxStatusErrors = 50

// PairSource supplies the pairs to watch. *registry.Registry implements it.
type PairSource interface {
	Entries() []registry.Entry
	Get(pairID string) (registry.Entry, bool)
	Size() int
	NeedsRefresh() bool
	LastRefresh() time.Time
	Refresh(ctx context.Context) (int, error)
}

// Recorder receives records as they close.
type Recorder interface {
	RecordClosed(ctx context.Context, t TrackedOpportunity) error
}

type Config struct {
	Pairs    PairSource
	Provider markets.Provider
	Dedup    *alerts.Deduplicator
	Sinks    []alerts.Sink
	Channels []string
	Recorder Recorder
	Clock    clock.Clock
	Metrics  *metrics.Metrics

	Interval        time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	// AlertThreshold is the gross hedge profit, as a fraction, that opens an
	// opportunity.
	AlertThreshold    float64
	HistoryLimit      int
	PriceHistoryLimit int
	SourceTag         string
	Query             string
	// QuoteQueryLimit caps the per-platform title searches for pairs missing
	// from the bulk quote fetch.
	QuoteQueryLimit int
}

// Status is a point-in-time view of the monitor.
type Status struct {
	IsRunning           bool                 `json:"isRunning"`
	LastScan            time.Time            `json:"lastScan"`
	ScanCount           int                  `json:"scanCount"`
	OpportunitiesFound  int                  `json:"opportunitiesFound"`
	AlertsSent          int                  `json:"alertsSent"`
	Errors              []string             `json:"errors"`
	ActiveOpportunities []TrackedOpportunity `json:"activeOpportunities"`
	RegistrySize        int                  `json:"registrySize"`
	RegistryRefreshedAt time.Time            `json:"registryRefreshedAt"`
}

type Monitor struct {
	cfg   Config
	state *State

	busy       atomic.Bool
	refreshing sync.Mutex

	mu                 sync.Mutex
	running            bool
	cancel             context.CancelFunc
	done               chan struct{}
	inflight           sync.WaitGroup
	lastScan           time.Time
	scanCount          int
	opportunitiesFound int
	alertsSent         int
	errs               []string
}

func New(cfg Config) (*Monitor, error) {
	if cfg.Pairs == nil {
		return nil, errors.New("monitor: pair source is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("monitor: provider is required")
	}
	if cfg.Dedup == nil {
		return nil, errors.New("monitor: deduplicator is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 45 * time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 0.02
	}
	if cfg.SourceTag == "" {
		cfg.SourceTag = "arbitrage"
	}
	if cfg.QuoteQueryLimit < 0 {
		cfg.QuoteQueryLimit = 0
	}
	return &Monitor{cfg: cfg, state: NewState(cfg.HistoryLimit, cfg.PriceHistoryLimit)}, nil
}

// State exposes the lifecycle state for inspection.
func (m *Monitor) State() *State { return m.state }

// Start launches the polling loop and the registry refresh loop. Ticks that
// fire while a scan is still running are skipped.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)
	logging.Infof("[monitor] started interval=%s refresh=%s threshold=%.4f", m.cfg.Interval, m.cfg.RefreshInterval, m.cfg.AlertThreshold)
	return nil
}

// Stop cancels future ticks and waits for an in-flight scan to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.inflight.Wait()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	logging.Infof("[monitor] stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	scanTicker := time.NewTicker(m.cfg.Interval)
	defer scanTicker.Stop()
	refreshTicker := time.NewTicker(m.cfg.RefreshInterval)
	defer refreshTicker.Stop()

	// In-flight work outlives Stop so a scan is never cut off halfway.
	workCtx := context.WithoutCancel(ctx)
	m.dispatch(workCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			m.dispatch(workCtx)
		case <-refreshTicker.C:
			m.inflight.Add(1)
			go func() {
				defer m.inflight.Done()
				m.refreshRegistry(workCtx, false)
			}()
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		m.cfg.Metrics.MonitorTick("skipped")
		logging.Debugf("[monitor] tick skipped: previous scan still running")
		return
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer m.busy.Store(false)
		m.scan(ctx)
	}()
}

// RunOnce performs one scan synchronously. It returns ErrBusy when another
// scan is running.
func (m *Monitor) RunOnce(ctx context.Context) error {
	if !m.busy.CompareAndSwap(false, true) {
		m.cfg.Metrics.MonitorTick("skipped")
		return ErrBusy
	}
	defer m.busy.Store(false)
	return m.scan(ctx)
}

func (m *Monitor) refreshRegistry(ctx context.Context, force bool) {
	if !m.refreshing.TryLock() {
		return
	}
	defer m.refreshing.Unlock()
	if !force && !m.cfg.Pairs.NeedsRefresh() {
		return
	}
	if _, err := m.cfg.Pairs.Refresh(ctx); err != nil {
		m.recordError(fmt.Sprintf("registry refresh: %v", err))
		return
	}
	m.closeRemoved()
}

// closeRemoved closes active records whose pair left the registry.
func (m *Monitor) closeRemoved() {
	now := m.cfg.Clock.Now().UTC()
	for _, id := range m.state.ActiveIDs() {
		if _, ok := m.cfg.Pairs.Get(id); !ok {
			if t, ok := m.state.Close(id, "removed from registry", now); ok {
				m.record(t)
			}
		}
	}
	m.cfg.Metrics.SetActive(len(m.state.ActiveIDs()))
}

func (m *Monitor) scan(ctx context.Context) error {
	// Only a registry that never loaded is refreshed inline; later refreshes
	// belong to the refresh ticker.
	if m.cfg.Pairs.Size() == 0 && m.cfg.Pairs.LastRefresh().IsZero() {
		m.refreshRegistry(ctx, true)
	}
	entries := m.cfg.Pairs.Entries()
	now := m.cfg.Clock.Now().UTC()

	quotes := m.newQuoteBook(ctx, entries)
	found := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			m.recordError(fmt.Sprintf("scan aborted: %v", err))
			break
		}
		a, okA := quotes.lookup(ctx, e.MarketA)
		b, okB := quotes.lookup(ctx, e.MarketB)
		if !okA || !okB {
			logging.Debugf("[monitor] quotes missing for %s; skipping this cycle", e.PairID)
			continue
		}
		hedge, err := arb.HedgeFor(e.Pair.OutcomeMapping, a, b)
		if err != nil {
			logging.Debugf("[monitor] %s: %v", e.PairID, err)
			continue
		}
		profit := hedge.GrossProfitPct
		if !hedge.Profitable() || profit < m.cfg.AlertThreshold {
			if t, ok := m.state.Close(e.PairID, "profit below threshold", now); ok {
				logging.Infof("[monitor] closed %s peak=%.4f", t.ID, t.PeakProfit)
				m.record(t)
			}
			continue
		}
		t, opened := m.state.Observe(e, PricePoint{At: now, YesA: hedge.YesA, YesB: hedge.YesB, Profit: profit})
		if opened {
			found++
			logging.Infof("[monitor] opened %s profit=%.4f", t.ID, profit)
			m.alert(ctx, t, a, b, hedge)
		}
	}
	for _, err := range quotes.errs {
		m.recordError(err.Error())
	}

	m.mu.Lock()
	m.lastScan = now
	m.scanCount++
	m.opportunitiesFound += found
	m.mu.Unlock()

	m.cfg.Metrics.MonitorTick("ran")
	m.cfg.Metrics.SetActive(len(m.state.ActiveIDs()))
	return nil
}

func (m *Monitor) alert(ctx context.Context, t TrackedOpportunity, a, b markets.Market, hedge arb.Hedge) {
	if !m.cfg.Dedup.CheckAndRecordAlert(m.cfg.SourceTag, t.ID, t.CurrentProfit*100) {
		m.cfg.Metrics.AlertSuppressed(m.cfg.SourceTag)
		return
	}
	msg := alerts.FormatAlert(alerts.Alert{
		PairID:    t.ID,
		TitleA:    a.Title,
		TitleB:    b.Title,
		PlatformA: string(a.Platform),
		PlatformB: string(b.Platform),
		URLA:      a.URL,
		URLB:      b.URL,
		Action:    describeHedge(hedge, a, b),
		ProfitPct: t.CurrentProfit * 100,
		PeakPct:   t.PeakProfit * 100,
		FirstSeen: t.FirstSeen,
		LastSeen:  t.LastSeen,
	})
	rep := alerts.Broadcast(ctx, m.cfg.Sinks, m.cfg.Channels, msg)
	failed := map[string]bool{}
	for _, f := range rep.Failures {
		failed[f.Sink] = true
		m.cfg.Metrics.AlertFailed(f.Sink)
		m.recordError(f.Error())
	}
	for _, s := range m.cfg.Sinks {
		if !failed[s.Name()] {
			m.cfg.Metrics.AlertSent(s.Name())
		}
	}
	if rep.Sent == 0 {
		return
	}
	m.state.MarkAlerted(t.ID)
	m.mu.Lock()
	m.alertsSent++
	m.mu.Unlock()
}

func describeHedge(h arb.Hedge, a, b markets.Market) string {
	if h.BuyYesOnA {
		return fmt.Sprintf("Buy YES on %s at %.3f + NO-equivalent on %s at %.3f", a.Platform, h.YesA, b.Platform, 1-h.YesB)
	}
	return fmt.Sprintf("Buy YES-equivalent on %s at %.3f + NO on %s at %.3f", b.Platform, h.YesB, a.Platform, 1-h.YesA)
}

func (m *Monitor) record(t TrackedOpportunity) {
	if m.cfg.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.cfg.Recorder.RecordClosed(ctx, t); err != nil {
		m.recordError(fmt.Sprintf("record %s: %v", t.ID, err))
	}
}

func (m *Monitor) recordError(msg string) {
	logging.Warnf("[monitor] %s", msg)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
	if over := len(m.errs) - maxStatusErrors; over > 0 {
		m.errs = append([]string(nil), m.errs[over:]...)
	}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	st := Status{
		IsRunning:          m.running,
		LastScan:           m.lastScan,
		ScanCount:          m.scanCount,
		OpportunitiesFound: m.opportunitiesFound,
		AlertsSent:         m.alertsSent,
		Errors:             append([]string{}, m.errs...),
	}
	m.mu.Unlock()
	st.ActiveOpportunities = m.state.Active()
	st.RegistrySize = m.cfg.Pairs.Size()
	st.RegistryRefreshedAt = m.cfg.Pairs.LastRefresh()
	return st
}

// quoteBook resolves registry legs to live markets: bulk fetch per platform,
// lookup by id, then title substring, then a bounded number of title searches.
type quoteBook struct {
	m        *Monitor
	byID     map[markets.Platform]map[string]markets.Market
	lists    map[markets.Platform][]markets.Market
	searches map[markets.Platform]int
	errs     []error
}

func (m *Monitor) newQuoteBook(ctx context.Context, entries []registry.Entry) *quoteBook {
	q := &quoteBook{
		m:        m,
		byID:     map[markets.Platform]map[string]markets.Market{},
		lists:    map[markets.Platform][]markets.Market{},
		searches: map[markets.Platform]int{},
	}
	seen := map[markets.Platform]bool{}
	for _, e := range entries {
		for _, p := range []markets.Platform{e.MarketA.Platform, e.MarketB.Platform} {
			if seen[p] {
				continue
			}
			seen[p] = true
			q.fetch(ctx, p, m.cfg.Query)
		}
	}
	return q
}

func (q *quoteBook) fetch(ctx context.Context, p markets.Platform, query string) {
	fctx, cancel := context.WithTimeout(ctx, q.m.cfg.FetchTimeout)
	defer cancel()
	list, err := q.m.cfg.Provider.SearchMarkets(fctx, query, []markets.Platform{p})
	if err != nil {
		q.m.cfg.Metrics.ProviderError(string(p))
		q.errs = append(q.errs, fmt.Errorf("quotes %s: %w", p, err))
		return
	}
	if q.byID[p] == nil {
		q.byID[p] = map[string]markets.Market{}
	}
	for _, mk := range list {
		if mk.Platform != p {
			continue
		}
		q.byID[p][mk.MarketID] = mk
		q.lists[p] = append(q.lists[p], mk)
	}
}

func (q *quoteBook) lookup(ctx context.Context, ref registry.MarketRef) (markets.Market, bool) {
	if mk, ok := q.find(ref); ok {
		return mk, true
	}
	if q.searches[ref.Platform] >= q.m.cfg.QuoteQueryLimit {
		return markets.Market{}, false
	}
	q.searches[ref.Platform]++
	q.fetch(ctx, ref.Platform, ref.Title)
	return q.find(ref)
}

func (q *quoteBook) find(ref registry.MarketRef) (markets.Market, bool) {
	if mk, ok := q.byID[ref.Platform][ref.MarketID]; ok {
		return mk, true
	}
	want := metadata.NormalizeTitle(ref.Title)
	if want == "" {
		return markets.Market{}, false
	}
	for _, mk := range q.lists[ref.Platform] {
		got := metadata.NormalizeTitle(mk.Title)
		if got != "" && (strings.Contains(got, want) || strings.Contains(want, got)) {
			return mk, true
		}
	}
	return markets.Market{}, false
}
