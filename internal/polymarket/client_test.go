package polymarket

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

const eventsFixture = `[
  {
    "id": "100", "slug": "btc-100k", "title": "Bitcoin price", "closed": false, "endDate": "2025-12-31T00:00:00Z",
    "markets": [
      {"id": "m1", "question": "Will Bitcoin reach $100k by end of 2025?", "active": true, "closed": false,
       "outcomes": "[\"Yes\",\"No\"]", "outcomePrices": "[\"0.42\",\"0.58\"]",
       "bestBid": 0.41, "bestAsk": 0.43, "volumeNum": 125000, "liquidityNum": 9000,
       "clobTokenIds": "[\"tok-yes\",\"tok-no\"]"},
      {"id": "m2", "question": "Will Ethereum reach $10k by end of 2025?", "active": true, "closed": false,
       "outcomePrices": "[\"0.10\",\"0.90\"]"},
      {"id": "m3", "question": "Will Bitcoin reach $200k?", "active": false, "closed": true}
    ]
  },
  {"id": "200", "title": "Closed event", "closed": true, "markets": [{"id": "m4", "question": "x", "active": true}]}
]`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		if r.URL.Query().Get("offset") != "0" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(eventsFixture))
	})
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "tok-no" {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"bids":[{"price":"0.41","size":"100"}],"asks":[{"price":"0.43","size":"250"},{"price":"0.44","size":"500"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchNormalizesMarkets(t *testing.T) {
	srv := newServer(t)
	c := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/book", Timeout: time.Second, PageLimit: 50})

	got, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	m := got[0]
	assert.Equal(t, markets.PlatformPolymarket, m.Platform)
	assert.Equal(t, "m1", m.MarketID)
	assert.InDelta(t, 0.42, m.YesPrice, 1e-12)
	assert.InDelta(t, 0.58, m.NoPrice, 1e-12)
	assert.InDelta(t, 0.43, m.Price.YesAsk, 1e-12)
	assert.InDelta(t, 0.59, m.Price.NoAsk, 1e-12)
	assert.Equal(t, []string{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, "https://polymarket.com/event/btc-100k", m.URL)
	assert.Equal(t, 2025, m.CloseTime.Year())
	assert.Empty(t, m.Orderbooks, "books are opt-in")
}

func TestSearchFiltersByQuery(t *testing.T) {
	srv := newServer(t)
	c := NewClient(Config{BaseURL: srv.URL + "/events", PageLimit: 50})

	got, err := c.Search(context.Background(), "ethereum 10k")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].MarketID)
}

func TestSearchAttachesBooks(t *testing.T) {
	srv := newServer(t)
	c := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/book", PageLimit: 50, WithBooks: true})

	got, err := c.Search(context.Background(), "bitcoin 100k")
	require.NoError(t, err)
	require.Len(t, got, 1)
	yes, ok := got[0].Orderbooks[markets.SideYes]
	require.True(t, ok)
	assert.Len(t, yes.Asks, 2)
	_, ok = got[0].Orderbooks[markets.SideNo]
	assert.False(t, ok, "a failed book fetch leaves the side empty")
}

func TestSearchFailsWhenFirstPageFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestIsPlaceholderMarket(t *testing.T) {
	assert.True(t, isPlaceholderMarket(&market{Question: "Will Person A win?"}))
	assert.True(t, isPlaceholderMarket(&market{Question: "Will the Lakers win?", Description: "This placeholder may be updated"}))
	assert.False(t, isPlaceholderMarket(&market{Question: "Will Bitcoin reach $100k?"}))
}
