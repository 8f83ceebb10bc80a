// Package scanner runs one-shot arbitrage scans: fetch, match, price, filter.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/metrics"
)

// ProviderFetchError reports a platform that could not be fetched. The scan
// continues with an empty list for that platform.
type ProviderFetchError struct {
	Platform markets.Platform
	Err      error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("fetch %s markets: %v", e.Platform, e.Err)
}

func (e *ProviderFetchError) Unwrap() error { return e.Err }

type Options struct {
	Query              string
	Platforms          []markets.Platform
	MinConfidenceGrade matches.Grade
	MaxOpportunities   int
	FetchTimeout       time.Duration
}

// Result is the JSON-serializable outcome of one scan.
type Result struct {
	Success             bool                          `json:"success"`
	Timestamp           time.Time                     `json:"timestamp"`
	DurationMs          int64                         `json:"duration"`
	MarketsScanned      map[markets.Platform]int      `json:"marketsScanned"`
	TotalMarkets        int                           `json:"totalMarkets"`
	PairsEvaluated      int                           `json:"pairsEvaluated"`
	PairsValidated      int                           `json:"pairsValidated"`
	AvgEquivalenceScore float64                       `json:"avgEquivalenceScore"`
	Opportunities       []*matches.Opportunity        `json:"opportunities"`
	FilteredCount       int                           `json:"filteredCount"`
	Errors              []string                      `json:"errors"`
	Warnings            []string                      `json:"warnings"`
	Pairs               []matches.ValidatedMarketPair `json:"-"`
}

type Config struct {
	Provider   markets.Provider
	Calculator *arb.Calculator
	Matcher    matcher.Config
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	// LowMarketCount and LowEquivalence trigger advisory warnings.
	LowMarketCount int
	LowEquivalence float64
}

type Scanner struct {
	cfg     Config
	matcher *matcher.Matcher
}

func New(cfg Config) (*Scanner, error) {
	if cfg.Provider == nil {
		return nil, errors.New("scanner: provider is required")
	}
	if cfg.Calculator == nil {
		return nil, errors.New("scanner: calculator is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Matcher.Clock == nil {
		cfg.Matcher.Clock = cfg.Clock
	}
	return &Scanner{cfg: cfg, matcher: matcher.NewMatcher(cfg.Matcher)}, nil
}

// ScanForArbitrage runs a full scan. It never returns an error: failures are
// reported through Result.Errors and Result.Warnings.
func (s *Scanner) ScanForArbitrage(ctx context.Context, opts Options) Result {
	start := s.cfg.Clock.Now()
	res := Result{
		Timestamp:      start.UTC(),
		MarketsScanned: map[markets.Platform]int{},
		Opportunities:  []*matches.Opportunity{},
		Errors:         []string{},
		Warnings:       []string{},
	}
	opts = normalizeOptions(opts)

	lists, fetched := s.fetchAll(ctx, opts, &res)
	res.Success = fetched > 0

	pairs := s.matchAll(ctx, opts.Platforms, lists, &res)
	res.Pairs = pairs
	res.PairsValidated = len(pairs)
	res.AvgEquivalenceScore = matcher.GetMatchingStats(pairs).AvgEquivalence

	opps := s.calculate(pairs, &res)
	res.Opportunities, res.FilteredCount = filter(opps, opts.MinConfidenceGrade, opts.MaxOpportunities)

	s.advise(&res)
	elapsed := s.cfg.Clock.Now().Sub(start)
	res.DurationMs = elapsed.Milliseconds()
	s.cfg.Metrics.ObserveScan("oneshot", elapsed, len(res.Opportunities), res.Success)
	logging.Infof("[scanner] markets=%d pairs=%d/%d opportunities=%d filtered=%d duration=%s",
		res.TotalMarkets, res.PairsValidated, res.PairsEvaluated, len(res.Opportunities), res.FilteredCount, elapsed)
	return res
}

func normalizeOptions(opts Options) Options {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []markets.Platform{markets.PlatformPolymarket, markets.PlatformKalshi}
	}
	if opts.MinConfidenceGrade == "" {
		opts.MinConfidenceGrade = matches.GradeC
	}
	if opts.MaxOpportunities <= 0 {
		opts.MaxOpportunities = 20
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return opts
}

// FetchMarkets queries every platform concurrently, each under its own
// timeout. A failing or slow platform yields an empty list and a
// *ProviderFetchError; it never cancels the others.
func FetchMarkets(ctx context.Context, provider markets.Provider, query string, platforms []markets.Platform, timeout time.Duration) (map[markets.Platform][]markets.Market, []error) {
	lists := make(map[markets.Platform][]markets.Market, len(platforms))
	var errs []error
	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range platforms {
		p := p
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			list, err := provider.SearchMarkets(fctx, query, []markets.Platform{p})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &ProviderFetchError{Platform: p, Err: err})
				lists[p] = nil
				return nil
			}
			lists[p] = onPlatform(list, p)
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return lists, errs
}

func (s *Scanner) fetchAll(ctx context.Context, opts Options, res *Result) (map[markets.Platform][]markets.Market, int) {
	lists, errs := FetchMarkets(ctx, s.cfg.Provider, opts.Query, opts.Platforms, opts.FetchTimeout)
	for _, err := range errs {
		logging.Warnf("[scanner] %v", err)
		var ferr *ProviderFetchError
		if errors.As(err, &ferr) {
			s.cfg.Metrics.ProviderError(string(ferr.Platform))
		}
		res.Errors = append(res.Errors, err.Error())
	}
	for _, p := range opts.Platforms {
		n := len(lists[p])
		res.MarketsScanned[p] = n
		res.TotalMarkets += n
		if n == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no markets returned from %s", p))
		}
	}
	return lists, len(opts.Platforms) - len(errs)
}

func onPlatform(list []markets.Market, p markets.Platform) []markets.Market {
	out := list[:0:0]
	for _, m := range list {
		if m.Platform == p {
			out = append(out, m)
		}
	}
	return out
}

// matchAll runs the matcher over every unordered platform pair.
func (s *Scanner) matchAll(ctx context.Context, platforms []markets.Platform, lists map[markets.Platform][]markets.Market, res *Result) []matches.ValidatedMarketPair {
	var pairs []matches.ValidatedMarketPair
	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			a, b := platforms[i], platforms[j]
			out, err := s.matcher.MatchMarkets(ctx, lists[a], lists[b])
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("match %s/%s: %v", a, b, err))
				continue
			}
			res.PairsEvaluated += out.Evaluated
			for _, merr := range out.Errors {
				res.Warnings = append(res.Warnings, merr.Error())
			}
			pairs = append(pairs, out.Pairs...)
		}
	}
	return pairs
}

func (s *Scanner) calculate(pairs []matches.ValidatedMarketPair, res *Result) []*matches.Opportunity {
	var out []*matches.Opportunity
	for _, pair := range pairs {
		opp, err := s.cfg.Calculator.Analyze(pair, arb.PricesFromPair(pair))
		if err != nil {
			logging.Warnf("[scanner] skip pair: %v", err)
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if opp != nil {
			out = append(out, opp)
		}
	}
	return out
}

// filter keeps opportunities at or above the grade, best net profit first, and
// reports how many were dropped by grade or truncation.
func filter(opps []*matches.Opportunity, minGrade matches.Grade, limit int) ([]*matches.Opportunity, int) {
	kept := make([]*matches.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.Confidence.Grade.AtLeast(minGrade) {
			kept = append(kept, o)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].NetProfitPct != kept[j].NetProfitPct {
			return kept[i].NetProfitPct > kept[j].NetProfitPct
		}
		return kept[i].PairID < kept[j].PairID
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, len(opps) - len(kept)
}

func (s *Scanner) advise(res *Result) {
	lowCount := s.cfg.LowMarketCount
	if lowCount <= 0 {
		lowCount = 10
	}
	lowEq := s.cfg.LowEquivalence
	if lowEq <= 0 {
		lowEq = 0.85
	}
	if res.TotalMarkets < lowCount {
		res.Warnings = append(res.Warnings, fmt.Sprintf("low market count: %d markets scanned", res.TotalMarkets))
	}
	if res.PairsValidated == 0 {
		res.Warnings = append(res.Warnings, "no validated market pairs found")
	} else if res.AvgEquivalenceScore < lowEq {
		res.Warnings = append(res.Warnings, fmt.Sprintf("low average equivalence score %.2f", res.AvgEquivalenceScore))
	}
	critical := 0
	for _, opp := range res.Opportunities {
		if opp.Risk.HasCritical() {
			critical++
		}
	}
	if critical > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d opportunities carry critical risk flags", critical, len(res.Opportunities)))
	}
}
