package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/monitor"
	"github.com/hetulpatel/crossarb/internal/registry"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateTables(context.Background()))
	return s
}

func TestUpsertMarketsReplacesSnapshot(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	m := markets.Market{
		Platform: markets.PlatformKalshi,
		MarketID: "KXBTC",
		Title:    "Bitcoin above $100k?",
		YesPrice: 0.41,
		Orderbooks: map[markets.Side]markets.Orderbook{
			markets.SideYes: {Asks: []markets.OrderbookLevel{{Price: 0.42, Quantity: 100}}},
		},
	}
	require.NoError(t, s.UpsertMarkets(ctx, []markets.Market{m}))
	m.YesPrice = 0.45
	require.NoError(t, s.UpsertMarkets(ctx, []markets.Market{m, {Platform: markets.PlatformPolymarket, MarketID: "pm", Title: "x"}}))

	n, err := s.CountMarkets(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.CountMarkets(ctx, markets.PlatformKalshi)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var price float64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT yes_price FROM markets WHERE market_id = 'KXBTC'`).Scan(&price))
	assert.InDelta(t, 0.45, price, 1e-12)
}

func TestOpportunitiesRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	pair := &matches.ValidatedMarketPair{
		PairID:  "p1",
		MarketA: markets.Market{Platform: markets.PlatformPolymarket, MarketID: "pm-1"},
		MarketB: markets.Market{Platform: markets.PlatformKalshi, MarketID: "KX-1"},
	}
	opps := []matches.Opportunity{
		{ID: "o1", PairID: "p1", Pair: pair, Timestamp: base, NetProfitPct: 0.03, GrossProfitPct: 0.05,
			Confidence: matches.Confidence{Score: 82, Grade: matches.GradeB}},
		{ID: "o2", PairID: "p1", Pair: pair, Timestamp: base.Add(time.Minute), NetProfitPct: 0.04, GrossProfitPct: 0.06},
	}
	require.NoError(t, s.InsertOpportunities(ctx, opps))
	require.NoError(t, s.InsertOpportunities(ctx, opps[:1]), "duplicate ids are ignored")

	got, err := s.RecentOpportunities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, "o1", got[1].ID)
	assert.Equal(t, matches.GradeB, got[1].Confidence.Grade)
	require.NotNil(t, got[1].Pair)
	assert.Equal(t, "pm-1", got[1].Pair.MarketA.MarketID)
}

func TestOpportunitiesDedupByMarketPair(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	a := markets.Market{Platform: markets.PlatformPolymarket, MarketID: "pm-1"}
	b := markets.Market{Platform: markets.PlatformKalshi, MarketID: "KX-1"}

	require.NoError(t, s.InsertOpportunities(ctx, []matches.Opportunity{
		{ID: "o1", PairID: "p1", Pair: &matches.ValidatedMarketPair{PairID: "p1", MarketA: a, MarketB: b}, Timestamp: at},
	}))
	require.NoError(t, s.InsertOpportunities(ctx, []matches.Opportunity{
		{ID: "o2", PairID: "p1", Pair: &matches.ValidatedMarketPair{PairID: "p1", MarketA: b, MarketB: a}, Timestamp: at},
		{ID: "o3", PairID: "p1", Pair: &matches.ValidatedMarketPair{PairID: "p1", MarketA: a, MarketB: b}, Timestamp: at.Add(time.Second)},
	}))

	got, err := s.RecentOpportunities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o3", got[0].ID)
	assert.Equal(t, "o1", got[1].ID)

	var digest string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT market_digest FROM arb_opportunities WHERE id = 'o1'`).Scan(&digest))
	assert.Equal(t, matches.MarketKeyDigest(b, a), digest)
}

func TestRecordClosed(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	first := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	var rec monitor.Recorder = s
	tracked := monitor.TrackedOpportunity{
		ID:            "pair-1",
		MarketA:       registry.MarketRef{Platform: markets.PlatformPolymarket, MarketID: "pm-1", Title: "A"},
		MarketB:       registry.MarketRef{Platform: markets.PlatformKalshi, MarketID: "KX-1", Title: "B"},
		FirstSeen:     first,
		LastSeen:      first.Add(2 * time.Minute),
		PeakProfit:    0.06,
		CurrentProfit: 0.01,
		AlertSent:     true,
		PriceHistory:  []monitor.PricePoint{{At: first, YesA: 0.4, YesB: 0.46, Profit: 0.06}},
		ClosedAt:      first.Add(3 * time.Minute),
		CloseReason:   "profit below threshold",
	}
	require.NoError(t, rec.RecordClosed(ctx, tracked))

	reopened := tracked
	reopened.FirstSeen = first.Add(time.Hour)
	reopened.ClosedAt = first.Add(2 * time.Hour)
	reopened.AlertSent = false
	require.NoError(t, rec.RecordClosed(ctx, reopened))

	got, err := s.ClosedOpportunities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, reopened.FirstSeen, got[0].FirstSeen)
	assert.False(t, got[0].AlertSent)

	old := got[1]
	assert.Equal(t, monitor.StatusClosed, old.Status)
	assert.Equal(t, "pm-1", old.MarketA.MarketID)
	assert.True(t, old.AlertSent)
	assert.InDelta(t, 0.06, old.PeakProfit, 1e-12)
	require.Len(t, old.PriceHistory, 1)
	assert.Equal(t, first, old.PriceHistory[0].At)
}

func TestClearAndDrop(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertMarkets(ctx, []markets.Market{{Platform: markets.PlatformKalshi, MarketID: "a", Title: "a"}}))
	require.NoError(t, s.ClearTables(ctx))
	n, err := s.CountMarkets(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DropTables(ctx))
	_, err = s.CountMarkets(ctx, "")
	assert.Error(t, err)
}
