// Package matcher pairs equivalent markets listed on two platforms.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/equivalence"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/metadata"
)

// ErrMalformedMarket marks a market that cannot be matched (missing id or title).
var ErrMalformedMarket = errors.New("malformed market")

type Config struct {
	MinEquivalenceScore float64
	MinTitleSimilarity  float64
	// HardDateCapDays prunes pairs whose event dates are further apart than
	// this before scoring. Zero disables the filter.
	HardDateCapDays float64
	Workers         int
	Scorer          equivalence.Config
	Clock           clock.Clock
	Logger          *Logger
}

type Matcher struct {
	cfg    Config
	scorer *equivalence.Scorer
}

// Result holds validated pairs in input order plus per-call counters.
type Result struct {
	Pairs     []matches.ValidatedMarketPair
	Evaluated int
	Pruned    int
	Rejected  int
	Skipped   int
	Errors    []error
}

func NewMatcher(cfg Config) *Matcher {
	if cfg.MinEquivalenceScore <= 0 {
		cfg.MinEquivalenceScore = 0.80
	}
	if cfg.MinTitleSimilarity <= 0 {
		cfg.MinTitleSimilarity = 0.70
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Matcher{cfg: cfg, scorer: equivalence.NewScorer(cfg.Scorer)}
}

type candidate struct {
	market markets.Market
	meta   metadata.MarketMetadata
}

type row struct {
	pairs    []matches.ValidatedMarketPair
	pruned   int
	rejected int
}

// MatchMarkets scores every pair in the cross product of listA and listB.
// Metadata is extracted once per market; cheap hard filters run before
// scoring. Output order follows listA then listB regardless of worker count.
func (m *Matcher) MatchMarkets(ctx context.Context, listA, listB []markets.Market) (Result, error) {
	var res Result
	extractor := metadata.NewExtractor()
	as := m.prepare(extractor, listA, &res)
	bs := m.prepare(extractor, listB, &res)
	res.Evaluated = len(as) * len(bs)
	if len(as) == 0 || len(bs) == 0 {
		return res, nil
	}

	matchedAt := m.cfg.Clock.Now().UTC()
	rows := make([]row, len(as))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := range as {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = m.scoreRow(as[i], bs, matchedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("match markets: %w", err)
	}

	for _, r := range rows {
		res.Pairs = append(res.Pairs, r.pairs...)
		res.Pruned += r.pruned
		res.Rejected += r.rejected
	}
	if m.cfg.Logger.Enabled() {
		for i := range res.Pairs {
			m.cfg.Logger.LogMatch(&res.Pairs[i], m.cfg.MinEquivalenceScore)
		}
	}
	logging.Debugf("[matcher] evaluated=%d pruned=%d rejected=%d matched=%d skipped=%d",
		res.Evaluated, res.Pruned, res.Rejected, len(res.Pairs), res.Skipped)
	return res, nil
}

func (m *Matcher) prepare(extractor *metadata.Extractor, list []markets.Market, res *Result) []candidate {
	out := make([]candidate, 0, len(list))
	for _, mk := range list {
		if !mk.Valid() {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Errorf("%w: platform=%q id=%q", ErrMalformedMarket, mk.Platform, mk.MarketID))
			continue
		}
		out = append(out, candidate{market: mk, meta: extractor.Extract(mk)})
	}
	return out
}

func (m *Matcher) scoreRow(a candidate, bs []candidate, matchedAt time.Time) row {
	var r row
	for _, b := range bs {
		if a.market.Key() == b.market.Key() {
			r.pruned++
			continue
		}
		if m.hardFiltered(a.meta, b.meta) {
			r.pruned++
			continue
		}
		score := m.scorer.Score(a.meta, b.meta)
		if !m.accept(score) {
			r.rejected++
			continue
		}
		r.pairs = append(r.pairs, matches.NewValidatedPair(a.market, b.market, a.meta, b.meta, score, matchedAt))
	}
	return r
}

func (m *Matcher) hardFiltered(a, b metadata.MarketMetadata) bool {
	if a.Category != b.Category {
		return true
	}
	if m.cfg.HardDateCapDays > 0 {
		if drift, ok := equivalence.DateDriftDays(a, b); ok && drift > m.cfg.HardDateCapDays {
			return true
		}
	}
	return false
}

func (m *Matcher) accept(s equivalence.Score) bool {
	return s.OverallScore >= m.cfg.MinEquivalenceScore &&
		s.TitleSimilarity >= m.cfg.MinTitleSimilarity &&
		s.Qualified()
}

// Stats summarises a set of validated pairs.
type Stats struct {
	Count          int     `json:"count"`
	AvgEquivalence float64 `json:"avg_equivalence"`
}

func GetMatchingStats(pairs []matches.ValidatedMarketPair) Stats {
	if len(pairs) == 0 {
		return Stats{}
	}
	sum := 0.0
	for _, p := range pairs {
		sum += p.Equivalence.OverallScore
	}
	return Stats{Count: len(pairs), AvgEquivalence: sum / float64(len(pairs))}
}
