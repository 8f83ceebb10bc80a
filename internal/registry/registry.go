// Package registry keeps a periodically refreshed set of pre-matched market
// pairs so the monitor does not rematch on every tick.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/scanner"
)

// MarketRef identifies one leg of a registry entry.
type MarketRef struct {
	Platform markets.Platform `json:"platform"`
	MarketID string           `json:"market_id"`
	Title    string           `json:"title"`
}

func refOf(m markets.Market) MarketRef {
	return MarketRef{Platform: m.Platform, MarketID: m.MarketID, Title: m.Title}
}

type Entry struct {
	PairID           string                      `json:"pair_id"`
	MarketA          MarketRef                   `json:"market_a"`
	MarketB          MarketRef                   `json:"market_b"`
	EquivalenceScore float64                     `json:"equivalence_score"`
	LastUpdated      time.Time                   `json:"last_updated"`
	Pair             matches.ValidatedMarketPair `json:"-"`
}

type Config struct {
	Provider        markets.Provider
	Matcher         matcher.Config
	Query           string
	Platforms       []markets.Platform
	FetchTimeout    time.Duration
	RefreshInterval time.Duration
	Clock           clock.Clock
	Metrics         *metrics.Metrics
}

type Registry struct {
	cfg     Config
	matcher *matcher.Matcher

	mu          sync.RWMutex
	entries     []Entry
	version     uint64
	refreshedAt time.Time
	fingerprint string
}

func New(cfg Config) (*Registry, error) {
	if cfg.Provider == nil {
		return nil, errors.New("registry: provider is required")
	}
	if len(cfg.Platforms) < 2 {
		cfg.Platforms = []markets.Platform{markets.PlatformPolymarket, markets.PlatformKalshi}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Matcher.Clock == nil {
		cfg.Matcher.Clock = cfg.Clock
	}
	return &Registry{cfg: cfg, matcher: matcher.NewMatcher(cfg.Matcher)}, nil
}

// NeedsRefresh reports whether the registry is empty or older than the cadence.
func (r *Registry) NeedsRefresh() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 || r.refreshedAt.IsZero() {
		return true
	}
	return r.cfg.Clock.Now().Sub(r.refreshedAt) >= r.cfg.RefreshInterval
}

// Refresh rematches every platform pair and replaces all entries. A pair of
// platforms with a failed fetch is not rematched; its previous entries carry
// over. When no pair can be rematched the registry is left untouched and the
// fetch errors are returned.
func (r *Registry) Refresh(ctx context.Context) (int, error) {
	lists, errs := scanner.FetchMarkets(ctx, r.cfg.Provider, r.cfg.Query, r.cfg.Platforms, r.cfg.FetchTimeout)
	failed := make(map[markets.Platform]bool, len(errs))
	for _, err := range errs {
		logging.Warnf("[registry] %v", err)
		var fe *scanner.ProviderFetchError
		if errors.As(err, &fe) {
			failed[fe.Platform] = true
		}
	}

	now := r.cfg.Clock.Now().UTC()
	previous := r.Entries()
	best := make(map[string]Entry)
	platforms := r.cfg.Platforms
	rematched, carried := 0, 0
	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			pa, pb := platforms[i], platforms[j]
			if failed[pa] || failed[pb] {
				for _, e := range previous {
					if onPlatforms(e, pa, pb) {
						best[e.PairID] = e
						carried++
					}
				}
				continue
			}
			rematched++
			res, err := r.matcher.MatchMarkets(ctx, lists[pa], lists[pb])
			if err != nil {
				r.cfg.Metrics.RegistryRefreshed(0, false)
				return 0, err
			}
			for _, pair := range res.Pairs {
				e := Entry{
					PairID:           pair.PairID,
					MarketA:          refOf(pair.MarketA),
					MarketB:          refOf(pair.MarketB),
					EquivalenceScore: pair.Equivalence.OverallScore,
					LastUpdated:      now,
					Pair:             pair,
				}
				if prev, ok := best[e.PairID]; !ok || e.EquivalenceScore > prev.EquivalenceScore {
					best[e.PairID] = e
				}
			}
		}
	}
	if rematched == 0 {
		r.cfg.Metrics.RegistryRefreshed(0, false)
		return 0, errors.Join(errs...)
	}
	if carried > 0 {
		logging.Warnf("[registry] carried over %d pairs from platforms that failed to fetch", carried)
	}

	entries := make([]Entry, 0, len(best))
	ids := make([]string, 0, len(best))
	for id, e := range best {
		entries = append(entries, e)
		ids = append(ids, id)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PairID < entries[j].PairID })

	r.mu.Lock()
	r.entries = entries
	r.version++
	r.refreshedAt = now
	r.fingerprint = hashutil.HashSorted(ids...)
	version := r.version
	r.mu.Unlock()

	r.cfg.Metrics.RegistryRefreshed(len(entries), true)
	logging.Infof("[registry] refreshed version=%d pairs=%d fingerprint=%s", version, len(entries), hashutil.Short(r.Fingerprint(), 12))
	return len(entries), nil
}

// Entries returns a copy of the current entries ordered by pair id.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

func (r *Registry) Get(pairID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].PairID >= pairID })
	if i < len(r.entries) && r.entries[i].PairID == pairID {
		return r.entries[i], true
	}
	return Entry{}, false
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Version increments on every successful refresh.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Fingerprint digests the set of pair ids from the last refresh.
func (r *Registry) Fingerprint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingerprint
}

// LastRefresh is the time of the last successful refresh, zero before the first.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

func onPlatforms(e Entry, pa, pb markets.Platform) bool {
	a, b := e.MarketA.Platform, e.MarketB.Platform
	return (a == pa && b == pb) || (a == pb && b == pa)
}
