package markets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlatforms(t *testing.T) {
	got := ParsePlatforms(" Polymarket, kalshi,,polymarket ")
	assert.Equal(t, []Platform{PlatformPolymarket, PlatformKalshi}, got)
	assert.Empty(t, ParsePlatforms(""))
}

func TestQuoteFallbacks(t *testing.T) {
	m := Market{YesPrice: 0.42}
	assert.InDelta(t, 0.42, m.Mid(SideYes), 1e-9)
	assert.InDelta(t, 0.58, m.Mid(SideNo), 1e-9)
	assert.Zero(t, m.Ask(SideYes))

	m.Price = PriceSnapshot{YesBid: 0.40, NoBid: 0.55}
	assert.InDelta(t, 0.45, m.Ask(SideYes), 1e-9)
	assert.InDelta(t, 0.60, m.Ask(SideNo), 1e-9)
	assert.InDelta(t, 0.40, m.Bid(SideYes), 1e-9)

	m.Orderbooks = map[Side]Orderbook{
		SideYes: {
			Asks: []OrderbookLevel{{Price: 0.47, Quantity: 10}, {Price: 0.44, Quantity: 5}},
			Bids: []OrderbookLevel{{Price: 0.38, Quantity: 3}, {Price: 0.41, Quantity: 2}},
		},
	}
	assert.InDelta(t, 0.44, m.Ask(SideYes), 1e-9)
	assert.InDelta(t, 0.41, m.Bid(SideYes), 1e-9)
	assert.InDelta(t, 15, m.Book(SideYes).AskDepth(), 1e-9)
	assert.InDelta(t, 0.44*5+0.47*10, m.Book(SideYes).AskNotional(), 1e-9)
}

func TestValid(t *testing.T) {
	assert.True(t, Market{Platform: PlatformKalshi, MarketID: "X", Title: "t"}.Valid())
	assert.False(t, Market{Platform: PlatformKalshi, MarketID: " ", Title: "t"}.Valid())
	assert.False(t, Market{MarketID: "X", Title: "t"}.Valid())
}
