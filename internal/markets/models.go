package markets

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Platform identifies the venue a market is listed on.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformKalshi     Platform = "kalshi"
	PlatformManifold   Platform = "manifold"
	PlatformLimitless  Platform = "limitless"
)

// ParsePlatforms turns a comma separated list into platforms, dropping blanks and duplicates.
func ParsePlatforms(raw string) []Platform {
	seen := make(map[Platform]bool)
	var out []Platform
	for _, part := range strings.Split(raw, ",") {
		p := Platform(strings.ToLower(strings.TrimSpace(part)))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Side is one of the two binary outcome tokens.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Provider is implemented by market data sources. Implementations must tolerate
// empty results and return per-platform identifiers untouched.
type Provider interface {
	SearchMarkets(ctx context.Context, query string, platforms []Platform) ([]Market, error)
}

// Market is a normalized market record from any platform.
type Market struct {
	Platform         Platform           `json:"platform"`
	MarketID         string             `json:"market_id"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	Category         string             `json:"category,omitempty"`
	YesPrice         float64            `json:"yes_price"`
	NoPrice          float64            `json:"no_price,omitempty"`
	Volume           float64            `json:"volume"`
	Liquidity        float64            `json:"liquidity"`
	URL              string             `json:"url,omitempty"`
	CloseTime        time.Time          `json:"close_time,omitempty"`
	ResolutionSource string             `json:"resolution_source,omitempty"`
	Outcomes         []string           `json:"outcomes,omitempty"`
	Price            PriceSnapshot      `json:"price"`
	Orderbooks       map[Side]Orderbook `json:"orderbooks,omitempty"`
}

// PriceSnapshot captures top-of-book values for YES/NO. Zero means unknown.
type PriceSnapshot struct {
	YesBid float64 `json:"yes_bid"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid"`
	NoAsk  float64 `json:"no_ask"`
}

// Orderbook stores depth levels for one side.
type Orderbook struct {
	Bids []OrderbookLevel `json:"bids,omitempty"`
	Asks []OrderbookLevel `json:"asks,omitempty"`
}

// OrderbookLevel is a single price/quantity pair, price in [0,1], quantity in contracts.
type OrderbookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Key is the platform-qualified identifier of the market.
func (m Market) Key() string {
	return string(m.Platform) + ":" + m.MarketID
}

// Valid reports whether the record carries the minimum needed for matching.
func (m Market) Valid() bool {
	return m.Platform != "" && strings.TrimSpace(m.MarketID) != "" && strings.TrimSpace(m.Title) != ""
}

// Book returns the order book for side, sorted asks ascending and bids descending.
func (m Market) Book(side Side) Orderbook {
	ob, ok := m.Orderbooks[side]
	if !ok {
		return Orderbook{}
	}
	out := Orderbook{
		Bids: append([]OrderbookLevel(nil), ob.Bids...),
		Asks: append([]OrderbookLevel(nil), ob.Asks...),
	}
	sort.Slice(out.Asks, func(i, j int) bool { return out.Asks[i].Price < out.Asks[j].Price })
	sort.Slice(out.Bids, func(i, j int) bool { return out.Bids[i].Price > out.Bids[j].Price })
	return out
}

// Mid returns the best estimate of the side's fair price: the quoted price when
// present, otherwise the midpoint of the top of book.
func (m Market) Mid(side Side) float64 {
	if side == SideYes {
		if m.YesPrice > 0 {
			return m.YesPrice
		}
		if m.NoPrice > 0 {
			return 1 - m.NoPrice
		}
	} else {
		if m.NoPrice > 0 {
			return m.NoPrice
		}
		if m.YesPrice > 0 {
			return 1 - m.YesPrice
		}
	}
	bid, ask := m.Bid(side), m.Ask(side)
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case ask > 0:
		return ask
	default:
		return bid
	}
}

// Ask returns the best ask for side, preferring the book over the snapshot.
func (m Market) Ask(side Side) float64 {
	if book := m.Book(side); len(book.Asks) > 0 {
		return book.Asks[0].Price
	}
	if side == SideYes {
		if m.Price.YesAsk > 0 {
			return m.Price.YesAsk
		}
		if m.Price.NoBid > 0 {
			return 1 - m.Price.NoBid
		}
		return 0
	}
	if m.Price.NoAsk > 0 {
		return m.Price.NoAsk
	}
	if m.Price.YesBid > 0 {
		return 1 - m.Price.YesBid
	}
	return 0
}

// Bid returns the best bid for side, preferring the book over the snapshot.
func (m Market) Bid(side Side) float64 {
	if book := m.Book(side); len(book.Bids) > 0 {
		return book.Bids[0].Price
	}
	if side == SideYes {
		if m.Price.YesBid > 0 {
			return m.Price.YesBid
		}
		if m.Price.NoAsk > 0 {
			return 1 - m.Price.NoAsk
		}
		return 0
	}
	if m.Price.NoBid > 0 {
		return m.Price.NoBid
	}
	if m.Price.YesAsk > 0 {
		return 1 - m.Price.YesAsk
	}
	return 0
}

// AskDepth returns the total contracts resting on the ask side.
func (ob Orderbook) AskDepth() float64 {
	var total float64
	for _, lvl := range ob.Asks {
		total += lvl.Quantity
	}
	return total
}

// AskNotional returns the USD value resting on the ask side.
func (ob Orderbook) AskNotional() float64 {
	var total float64
	for _, lvl := range ob.Asks {
		total += lvl.Quantity * lvl.Price
	}
	return total
}
