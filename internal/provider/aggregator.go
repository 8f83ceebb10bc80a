// Package provider fans market searches out to the per-platform clients, each
// behind its own rate limiter and circuit breaker.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
)

// ErrUnknownPlatform is returned for a platform with no registered source.
var ErrUnknownPlatform = errors.New("no source for platform")

// Source searches a single platform.
type Source interface {
	Platform() markets.Platform
	Search(ctx context.Context, query string) ([]markets.Market, error)
}

// Limits configures the guard around one source.
type Limits struct {
	RPS   float64
	Burst int
	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.RPS <= 0 {
		l.RPS = 2
	}
	if l.Burst <= 0 {
		l.Burst = 1
	}
	if l.BreakerFailures == 0 {
		l.BreakerFailures = 3
	}
	if l.BreakerCooldown <= 0 {
		l.BreakerCooldown = 60 * time.Second
	}
	return l
}

type guarded struct {
	src     Source
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Aggregator implements markets.Provider over registered sources.
type Aggregator struct {
	mu      sync.RWMutex
	sources map[markets.Platform]*guarded
}

func NewAggregator() *Aggregator {
	return &Aggregator{sources: make(map[markets.Platform]*guarded)}
}

// Register adds or replaces the source for its platform.
func (a *Aggregator) Register(src Source, limits Limits) {
	limits = limits.withDefaults()
	name := string(src.Platform())
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  limits.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limits.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the platform failing.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warnf("[provider] %s breaker %s -> %s", name, from, to)
		},
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[src.Platform()] = &guarded{
		src:     src,
		limiter: rate.NewLimiter(rate.Limit(limits.RPS), limits.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Platforms lists the registered platforms in sorted order.
func (a *Aggregator) Platforms() []markets.Platform {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]markets.Platform, 0, len(a.sources))
	for p := range a.sources {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SearchMarkets queries each requested platform concurrently. Results from
// platforms that succeeded are returned together with the joined errors of
// the ones that failed.
func (a *Aggregator) SearchMarkets(ctx context.Context, query string, platforms []markets.Platform) ([]markets.Market, error) {
	if len(platforms) == 0 {
		platforms = a.Platforms()
	}
	results := make([][]markets.Market, len(platforms))
	errs := make([]error, len(platforms))

	var g errgroup.Group
	for i, p := range platforms {
		g.Go(func() error {
			results[i], errs[i] = a.search(ctx, p, query)
			return nil
		})
	}
	_ = g.Wait()

	var out []markets.Market
	for _, r := range results {
		out = append(out, r...)
	}
	return out, errors.Join(errs...)
}

func (a *Aggregator) search(ctx context.Context, p markets.Platform, query string) ([]markets.Market, error) {
	a.mu.RLock()
	g, ok := a.sources[p]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrUnknownPlatform)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", p, err)
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.src.Search(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	list, _ := res.([]markets.Market)
	return list, nil
}
