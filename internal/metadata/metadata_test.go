package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/markets"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractCryptoDeadline(t *testing.T) {
	md := Extract(markets.Market{
		Platform: markets.PlatformPolymarket,
		MarketID: "pm-1",
		Title:    "Will Bitcoin reach $100k by end of 2025?",
	})

	assert.Equal(t, CategoryCrypto, md.Category)
	assert.Equal(t, "bitcoin", md.Subcategory)
	assert.Equal(t, OutcomeBinary, md.OutcomeType)
	assert.Equal(t, []string{"yes", "no"}, md.Outcomes)
	assert.Equal(t, []string{"bitcoin"}, md.Entities.Organizations)
	assert.Empty(t, md.Entities.People)

	require.Len(t, md.Entities.Dates, 1)
	assert.Equal(t, DateDeadline, md.Entities.Dates[0].Kind)
	assert.Equal(t, day(2025, time.December, 31), md.Entities.Dates[0].Date)
	assert.Equal(t, day(2025, time.December, 31), md.EventDate)

	require.Len(t, md.Entities.Amounts, 1)
	assert.Equal(t, "usd", md.Entities.Amounts[0].Unit)
	assert.InDelta(t, 100000, md.Entities.Amounts[0].Value, 1e-9)
}

func TestExtractDates(t *testing.T) {
	cases := []struct {
		title string
		kind  DateKind
		date  time.Time
	}{
		{"Will the Fed cut rates in March 2026?", DateRange, day(2026, time.March, 31)},
		{"GDP growth above 3% in Q3 2025?", DateRange, day(2025, time.September, 30)},
		{"Will SpaceX launch Starship on June 5, 2026?", DateEvent, day(2026, time.June, 5)},
		{"Will Trump be impeached before 2026?", DateDeadline, day(2025, time.December, 31)},
		{"Ceasefire signed by 2026-01-15?", DateDeadline, day(2026, time.January, 15)},
		{"Recession by March 2026?", DateDeadline, day(2026, time.March, 31)},
		{"Who wins the 2028 presidential election?", DateRange, day(2028, time.December, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			refs, _ := extractDates(tc.title)
			require.Len(t, refs, 1)
			assert.Equal(t, tc.kind, refs[0].Kind)
			assert.Equal(t, tc.date, refs[0].Date)
		})
	}
}

func TestExtractFallsBackToCloseTime(t *testing.T) {
	closeAt := time.Date(2026, time.May, 1, 17, 0, 0, 0, time.UTC)
	md := Extract(markets.Market{Platform: markets.PlatformKalshi, MarketID: "K", Title: "Will it snow in Denver?", CloseTime: closeAt})
	assert.Equal(t, closeAt, md.EventDate)
	assert.Equal(t, closeAt, md.ResolutionDate)
}

func TestClassifyTieBreakIsDeterministic(t *testing.T) {
	// tesla (tech) and stock (economics) score one point each
	cat, _ := classify(NormalizeTitle("Will Tesla stock hit $500?"), "")
	assert.Equal(t, CategoryTech, cat)

	cat, sub := classify(NormalizeTitle("Will the SEC approve a Bitcoin ETF?"), "")
	assert.Equal(t, CategoryCrypto, cat)
	assert.Equal(t, "regulation", sub)

	cat, _ = classify(NormalizeTitle("Will Harris win the election?"), "")
	assert.Equal(t, CategoryPolitics, cat)

	cat, _ = classify(NormalizeTitle("Something unrelated"), "")
	assert.Equal(t, CategoryOther, cat)
}

func TestEntitiesAndNegation(t *testing.T) {
	md := Extract(markets.Market{
		Platform: markets.PlatformKalshi,
		MarketID: "K-1",
		Title:    "Will Gavin Newsom run for president in 2028?",
	})
	assert.Equal(t, []string{"newsom"}, md.Entities.People)
	assert.Equal(t, CategoryPolitics, md.Category)
	assert.False(t, md.Negated)

	neg := Extract(markets.Market{Platform: markets.PlatformKalshi, MarketID: "K-2", Title: "Will Trump not be impeached in 2026?"})
	assert.True(t, neg.Negated)
	assert.Equal(t, []string{"trump"}, neg.Entities.People)
	assert.Equal(t, []string{"impeachment"}, neg.Entities.Events)
}

func TestAmountUnits(t *testing.T) {
	amts := extractAmounts("will the fed cut by 25 bps and will cpi exceed 3.5% with $1.2 billion raised")
	require.Len(t, amts, 3)
	keys := []string{AmountKey(amts[0]), AmountKey(amts[1]), AmountKey(amts[2])}
	assert.Equal(t, []string{"bps:25", "pct:3.5", "usd:1200000000"}, keys)
}

func TestOutcomeShape(t *testing.T) {
	labels, kind := outcomeShape([]string{"Trump", "Harris", "Other"})
	assert.Equal(t, OutcomeMulti, kind)
	assert.Equal(t, []string{"trump", "harris", "other"}, labels)

	_, kind = outcomeShape([]string{"Yes", "No"})
	assert.Equal(t, OutcomeBinary, kind)
}

func TestExtractorMemoizes(t *testing.T) {
	e := NewExtractor()
	m := markets.Market{Platform: markets.PlatformPolymarket, MarketID: "1", Title: "Will ETH flip BTC?"}
	first := e.Extract(m)
	second := e.Extract(m)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, e.Len())
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "wont the s p 500 close above 6 000", NormalizeTitle("  Won't the S&P 500 close above 6,000?! "))
	assert.Equal(t, []string{"a", "b"}, Tokens("A -- b"))
}
