package equivalence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/metadata"
)

func meta(platform markets.Platform, id, title string) metadata.MarketMetadata {
	return metadata.Extract(markets.Market{Platform: platform, MarketID: id, Title: title})
}

func TestScoreSameEventPasses(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "pm-btc", "Will Bitcoin reach $100k by end of 2025?")
	b := meta(markets.PlatformKalshi, "KXBTC", "Bitcoin to reach $100k by end of 2025?")

	score := s.Score(a, b)
	assert.Empty(t, score.Disqualifiers)
	assert.GreaterOrEqual(t, score.TitleSimilarity, 0.70)
	assert.InDelta(t, 1.0, score.EntityOverlap, 1e-9)
	assert.InDelta(t, 1.0, score.DateAlignment, 1e-9)
	assert.Equal(t, 1.0, score.CategoryMatch)
	assert.Greater(t, score.OverallScore, 0.80)
	assert.False(t, score.OutcomeMapping.IsInverted)
	assert.Equal(t, "yes", score.OutcomeMapping.AToB["yes"])
}

func TestScoreIsSymmetric(t *testing.T) {
	s := NewScorer(DefaultConfig())
	titles := []string{
		"Will Bitcoin reach $100k by end of 2025?",
		"Bitcoin to reach $100k by end of 2025?",
		"Will Trump win the 2024 presidential election?",
		"Will Harris win the 2024 presidential election?",
		"Will the Fed cut rates in March 2026?",
		"Will the Fed not cut rates in March 2026?",
		"Will it rain tomorrow?",
	}
	for i, ta := range titles {
		for j, tb := range titles {
			a := meta(markets.PlatformPolymarket, "a", ta)
			b := meta(markets.PlatformKalshi, "b", tb)
			ab, ba := s.Score(a, b), s.Score(b, a)
			assert.Equal(t, ab.OverallScore, ba.OverallScore, "%d/%d", i, j)
			assert.Equal(t, ab.TitleSimilarity, ba.TitleSimilarity)
			assert.Equal(t, ab.EntityOverlap, ba.EntityOverlap)
			assert.Equal(t, ab.DateAlignment, ba.DateAlignment)
			assert.Equal(t, ab.CategoryMatch, ba.CategoryMatch)
			assert.Equal(t, ab.OutcomeAlignment, ba.OutcomeAlignment)
			assert.Equal(t, ab.Validations, ba.Validations)
			assert.Equal(t, ab.Disqualifiers, ba.Disqualifiers)
			assert.Equal(t, ab.Warnings, ba.Warnings)
			assert.Equal(t, ab.OutcomeMapping.IsInverted, ba.OutcomeMapping.IsInverted)
		}
	}
}

func TestCategoryMismatchStaysBelowThreshold(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will Bitcoin reach $100k by end of 2025?")
	b := a
	b.Platform = markets.PlatformKalshi
	b.MarketID = "b"
	b.Category = metadata.CategoryPolitics

	score := s.Score(a, b)
	assert.Less(t, score.OverallScore, 0.80)
	require.NotEmpty(t, score.Disqualifiers)
	assert.Equal(t, "category mismatch: crypto vs politics", score.Disqualifiers[0])
}

func TestDifferentPeopleAreDisqualified(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will Trump win the 2024 presidential election?")
	b := meta(markets.PlatformKalshi, "b", "Will Harris win the 2024 presidential election?")

	score := s.Score(a, b)
	assert.False(t, score.Validations.SameCoreEvent)
	assert.False(t, score.Validations.EntitiesMatch)
	assert.Len(t, score.Disqualifiers, 2)
	assert.Less(t, score.OverallScore, 0.30)
}

func TestNegatedTitleInvertsMapping(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will the Fed cut rates in March 2026?")
	b := meta(markets.PlatformKalshi, "b", "Will the Fed not cut rates in March 2026?")

	score := s.Score(a, b)
	assert.True(t, score.OutcomeMapping.IsInverted)
	assert.Equal(t, "no", score.OutcomeMapping.AToB["yes"])
	assert.Equal(t, "yes", score.OutcomeMapping.BToA["no"])
	assert.Equal(t, 1.0, score.OutcomeAlignment)
}

func TestDateAlignmentDecaysLinearly(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will Bitcoin reach $100k by end of 2025?")
	b := a
	b.Platform, b.MarketID = markets.PlatformKalshi, "b"

	b.EventDate = a.EventDate.Add(84 * time.Hour)
	score := s.Score(a, b)
	assert.InDelta(t, 0.5, score.DateAlignment, 1e-9)
	assert.True(t, score.Validations.SameTimeframe)

	b.EventDate = a.EventDate.Add(10 * 24 * time.Hour)
	score = s.Score(a, b)
	assert.Equal(t, 0.0, score.DateAlignment)
	assert.False(t, score.Validations.SameTimeframe)
	assert.NotEmpty(t, score.Disqualifiers)
}

func TestNeutralDefaultsWhenSignalsMissing(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will it rain tomorrow?")
	b := meta(markets.PlatformKalshi, "b", "Will it rain tomorrow?")

	score := s.Score(a, b)
	assert.Equal(t, 0.5, score.DateAlignment)
	assert.Equal(t, 0.5, score.EntityOverlap)
	assert.Equal(t, 1.0, score.TitleSimilarity)
	assert.Len(t, score.Warnings, 2)
	assert.Empty(t, score.Disqualifiers)
}

func TestResolutionSourceConflict(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := meta(markets.PlatformPolymarket, "a", "Will Bitcoin reach $100k by end of 2025?")
	b := a
	b.Platform, b.MarketID = markets.PlatformKalshi, "b"
	a.ResolutionSource = "Coinbase BTC/USD spot"
	b.ResolutionSource = "Binance BTCUSDT"

	score := s.Score(a, b)
	assert.False(t, score.Validations.NoResolutionConflict)
	assert.Contains(t, score.Disqualifiers, "resolution sources or dates conflict")
}

func TestMultiOutcomeAlignment(t *testing.T) {
	a := metadata.MarketMetadata{OutcomeType: metadata.OutcomeMulti, Outcomes: []string{"trump", "harris", "other"}}
	b := metadata.MarketMetadata{OutcomeType: metadata.OutcomeMulti, Outcomes: []string{"trump", "harris", "other", "kennedy"}}
	score, mapping := outcomeAlignment(a, b)
	assert.InDelta(t, 0.75*0.75, score, 1e-9)
	assert.Len(t, mapping.AToB, 3)

	binary := metadata.MarketMetadata{OutcomeType: metadata.OutcomeBinary, Outcomes: []string{"yes", "no"}}
	score, _ = outcomeAlignment(a, binary)
	assert.Zero(t, score)
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("Hello, World!", "hello world"))
	assert.Equal(t, 0.0, TitleSimilarity("", "hello"))
	assert.Equal(t, TitleSimilarity("abc def", "def ghi"), TitleSimilarity("def ghi", "abc def"))
	assert.Less(t, TitleSimilarity("Will Bitcoin hit 100k", "Lakers win the NBA finals"), 0.3)
}
