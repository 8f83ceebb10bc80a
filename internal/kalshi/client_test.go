package kalshi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/markets"
)

const page1 = `{"cursor":"next","events":[{"event_ticker":"KXBTC-25","series_ticker":"KXBTC","title":"Bitcoin price at year end","category":"Crypto",
 "settlement_sources":[{"name":"CF Benchmarks","url":"https://cfbenchmarks.com"}],
 "markets":[{"ticker":"KXBTC-25-100K","title":"Bitcoin above $100k on Dec 31, 2025?","status":"active","yes_bid":40,"yes_ask":44,"no_bid":56,"no_ask":60,
   "volume":5000,"liquidity":1250000,"close_time":"2025-12-31T23:59:00Z","rules_primary":"If Bitcoin is above 100000, resolves Yes."},
  {"ticker":"KXBTC-25-OLD","title":"settled","status":"settled"}]}]}`

const page2 = `{"cursor":"","events":[{"event_ticker":"PRES","series_ticker":"PRES","title":"Who will be president?",
 "markets":[{"ticker":"PRES-28-JV","title":"Will  become president?","status":"active","last_price":31,
   "rules_primary":"If JD Vance becomes president, then the market resolves Yes."}]}]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("with_nested_markets"))
		if r.URL.Query().Get("cursor") == "next" {
			w.Write([]byte(page2))
			return
		}
		w.Write([]byte(page1))
	})
	mux.HandleFunc("/markets/KXBTC-25-100K/orderbook", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderbook":{"yes":[[40,100],[39,200]],"no":[[56,150]]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchFollowsCursor(t *testing.T) {
	srv := newServer(t)
	c := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/markets", Timeout: time.Second})

	got, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	btc := got[0]
	assert.Equal(t, markets.PlatformKalshi, btc.Platform)
	assert.Equal(t, "KXBTC-25-100K", btc.MarketID)
	assert.InDelta(t, 0.42, btc.YesPrice, 1e-12)
	assert.InDelta(t, 0.44, btc.Price.YesAsk, 1e-12)
	assert.InDelta(t, 12500, btc.Liquidity, 1e-9)
	assert.Equal(t, "CF Benchmarks", btc.ResolutionSource)
	assert.Equal(t, "https://kalshi.com/markets/kxbtc", btc.URL)
	assert.Empty(t, btc.Orderbooks)

	pres := got[1]
	assert.Equal(t, "Will JD Vance become president?", pres.Title)
	assert.InDelta(t, 0.31, pres.YesPrice, 1e-12)
}

func TestSearchFiltersAndAttachesBooks(t *testing.T) {
	srv := newServer(t)
	c := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/markets", WithBooks: true})

	got, err := c.Search(context.Background(), "bitcoin 100k")
	require.NoError(t, err)
	require.Len(t, got, 1)

	yes := got[0].Orderbooks[markets.SideYes]
	require.Len(t, yes.Asks, 1)
	assert.InDelta(t, 0.44, yes.Asks[0].Price, 1e-12)
	assert.InDelta(t, 150, yes.Asks[0].Quantity, 1e-12)
	no := got[0].Orderbooks[markets.SideNo]
	require.Len(t, no.Asks, 2)
	assert.InDelta(t, 0.60, no.Asks[0].Price, 1e-12)
}

func TestDeriveKalshiQuestion(t *testing.T) {
	m := &market{Title: "Bitcoin above $100k?"}
	assert.Equal(t, "Bitcoin above $100k?", deriveKalshiQuestion("", m))

	m = &market{Title: "Will  win the 2028 election?", Ticker: "PRES-28-GN", RulesPrimary: "If Gavin Newsom wins the 2028 election, resolves Yes."}
	assert.Equal(t, "Will Gavin Newsom win the 2028 election?", deriveKalshiQuestion("", m))

	m = &market{Title: "Winner?", RulesPrimary: "If Chiefs beats Eagles then Yes"}
	assert.Equal(t, "Winner? (Chiefs)", deriveKalshiQuestion("", m))
}
