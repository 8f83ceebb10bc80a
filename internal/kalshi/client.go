// Package kalshi searches open Kalshi markets through the Trade API.
package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/httpx"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
)

const (
	defaultBaseURL   = "https://api.elections.kalshi.com/trade-api/v2/events"
	defaultBookURL   = "https://api.elections.kalshi.com/trade-api/v2/markets"
	defaultMarketURL = "https://kalshi.com/markets/"
	maxPages         = 10
)

type Client struct {
	baseURL   string
	bookURL   string
	http      *httpx.Client
	pageLimit int
	withBooks bool
}

type Config struct {
	BaseURL   string
	BookURL   string
	Timeout   time.Duration
	PageLimit int
	WithBooks bool
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	book := cfg.BookURL
	if book == "" {
		book = defaultBookURL
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 100
	}
	if limit > 200 {
		limit = 200 // API limit
	}
	return &Client{
		baseURL:   base,
		bookURL:   book,
		http:      httpx.New("kalshi", cfg.Timeout),
		pageLimit: limit,
		withBooks: cfg.WithBooks,
	}
}

func (c *Client) Platform() markets.Platform { return markets.PlatformKalshi }

// Search follows the events cursor and returns active markets whose question
// or event title contains every word of query.
func (c *Client) Search(ctx context.Context, query string) ([]markets.Market, error) {
	terms := strings.Fields(strings.ToLower(query))
	var (
		out    []markets.Market
		cursor string
	)
	for page := 0; page < maxPages; page++ {
		resp, err := c.listEvents(ctx, c.pageLimit, cursor)
		if err != nil {
			if page > 0 {
				logging.Warnf("[kalshi] stopping at page %d: %v", page, err)
				break
			}
			return nil, fmt.Errorf("list kalshi events: %w", err)
		}
		for _, ev := range resp.Events {
			for i := range ev.Markets {
				m := &ev.Markets[i]
				if m.Status != "active" && m.Status != "open" {
					continue
				}
				question := deriveKalshiQuestion(ev.Title, m)
				if !matchesTerms(terms, question, ev.Title) {
					continue
				}
				out = append(out, c.normalizeMarket(ctx, ev, m, question))
			}
		}
		cursor = resp.Cursor
		if cursor == "" {
			break
		}
	}
	logging.Debugf("[kalshi] search %q returned %d markets", query, len(out))
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, limit int, cursor string) (*eventsResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", "open")
	q.Set("with_nested_markets", "true")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	var out eventsResponse
	if err := c.http.GetJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) fetchOrderbooks(ctx context.Context, ticker string) (map[markets.Side]markets.Orderbook, error) {
	u := fmt.Sprintf("%s/%s/orderbook?depth=10", strings.TrimRight(c.bookURL, "/"), url.PathEscape(ticker))
	var out orderbookResponse
	if err := c.http.GetJSON(ctx, u, &out); err != nil {
		return nil, err
	}

	// Kalshi only publishes bids; an ask on one side is a bid on the other.
	yesBids := convertLevels(out.Orderbook.Yes)
	noBids := convertLevels(out.Orderbook.No)
	return map[markets.Side]markets.Orderbook{
		markets.SideYes: {Bids: yesBids, Asks: deriveAsksFromOpposite(noBids)},
		markets.SideNo:  {Bids: noBids, Asks: deriveAsksFromOpposite(yesBids)},
	}, nil
}

func (c *Client) normalizeMarket(ctx context.Context, ev event, m *market, question string) markets.Market {
	out := markets.Market{
		Platform:         markets.PlatformKalshi,
		MarketID:         m.Ticker,
		Title:            question,
		Description:      strings.TrimSpace(m.RulesPrimary + "\n" + m.RulesSecondary),
		Category:         ev.Category,
		Volume:           float64(m.Volume),
		Liquidity:        centsToFloat(m.Liquidity),
		CloseTime:        parseTime(m.CloseTime),
		ResolutionSource: strings.Join(ev.SettlementSources(), ", "),
		Price: markets.PriceSnapshot{
			YesBid: centsToFloat(m.YesBid),
			YesAsk: centsToFloat(m.YesAsk),
			NoBid:  centsToFloat(m.NoBid),
			NoAsk:  centsToFloat(m.NoAsk),
		},
		Outcomes: []string{"Yes", "No"},
	}
	switch {
	case m.YesBid > 0 && m.YesAsk > 0:
		out.YesPrice = centsToFloat(m.YesBid+m.YesAsk) / 2
	case m.LastPrice > 0:
		out.YesPrice = centsToFloat(m.LastPrice)
	}
	if ev.SeriesTicker != "" {
		out.URL = defaultMarketURL + strings.ToLower(ev.SeriesTicker)
	}

	if c.withBooks {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if books, err := c.fetchOrderbooks(ctx, m.Ticker); err == nil {
			out.Orderbooks = books
		} else {
			logging.Debugf("[kalshi] orderbook %s: %v", m.Ticker, err)
		}
	}
	return out
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func matchesTerms(terms []string, texts ...string) bool {
	if len(terms) == 0 {
		return true
	}
	hay := strings.ToLower(strings.Join(texts, " "))
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

func convertLevels(levels [][]int64) []markets.OrderbookLevel {
	out := make([]markets.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		out = append(out, markets.OrderbookLevel{Price: centsToFloat(lvl[0]), Quantity: float64(lvl[1])})
	}
	return out
}

func deriveAsksFromOpposite(oppositeBids []markets.OrderbookLevel) []markets.OrderbookLevel {
	if len(oppositeBids) == 0 {
		return nil
	}
	asks := make([]markets.OrderbookLevel, 0, len(oppositeBids))
	for _, lvl := range oppositeBids {
		price := 1 - lvl.Price
		if price < 0 {
			price = 0
		}
		if price > 1 {
			price = 1
		}
		asks = append(asks, markets.OrderbookLevel{Price: price, Quantity: lvl.Quantity})
	}
	return asks
}

func deriveKalshiQuestion(eventTitle string, m *market) string {
	base := m.Title

	alias := extractEntityFromRules(m.RulesPrimary)
	if alias == "" {
		alias = extractEntityFromTitle(eventTitle)
	}
	if alias == "" && strings.Contains(base, "  ") {
		alias = extractEntityFromTitle(base)
	}
	if alias == "" && strings.Contains(base, "  ") {
		if parts := strings.Split(m.Ticker, "-"); len(parts) > 0 {
			alias = parts[len(parts)-1]
		}
	}
	if alias == "" {
		return base
	}
	if strings.Contains(strings.ToLower(base), strings.ToLower(alias)) {
		return base
	}
	// "Will  become ..." leaves a double space where the entity goes.
	if strings.Contains(base, "  ") {
		return strings.Replace(base, "  ", " "+alias+" ", 1)
	}
	return fmt.Sprintf("%s (%s)", base, alias)
}

func extractEntityFromRules(rule string) string {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return ""
	}
	lower := strings.ToLower(rule)
	if !strings.HasPrefix(lower, "if ") {
		return ""
	}
	trimmed := strings.TrimSpace(rule[3:])
	lowerTrimmed := strings.ToLower(trimmed)
	keywords := []string{" becomes", " is ", " wins", " will ", " reaches", " secures", " scores", " resigns", " retires", " defeats", " beats", " finishes", " captures", " takes", " makes", " receives", " gets "}
	pos := -1
	for _, kw := range keywords {
		if idx := strings.Index(lowerTrimmed, kw); idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
		}
	}
	if pos == -1 {
		if idx := strings.Index(lowerTrimmed, ","); idx != -1 {
			pos = idx
		} else if idx := strings.Index(lowerTrimmed, " then"); idx != -1 {
			pos = idx
		} else {
			pos = len(trimmed)
		}
	}
	alias := strings.TrimSpace(trimmed[:pos])
	return strings.Trim(alias, `"'`)
}

func extractEntityFromTitle(title string) string {
	title = strings.TrimSpace(title)
	lower := strings.ToLower(title)
	if !strings.HasPrefix(lower, "will ") {
		return ""
	}
	title = title[5:]
	lower = strings.ToLower(title)

	endIdx := strings.Index(lower, " become")
	if endIdx == -1 {
		endIdx = strings.Index(lower, " be ")
	}
	if endIdx == -1 {
		return ""
	}
	alias := strings.TrimSpace(title[:endIdx])
	return strings.Trim(alias, `"'`)
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	Ticker       string   `json:"event_ticker"`
	SeriesTicker string   `json:"series_ticker"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Sources      []source `json:"settlement_sources"`
	Markets      []market `json:"markets"`
}

func (e event) SettlementSources() []string {
	out := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		if s.Name != "" {
			out = append(out, s.Name)
		}
	}
	return out
}

type source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type market struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	YesAsk         int64  `json:"yes_ask"`
	YesBid         int64  `json:"yes_bid"`
	NoAsk          int64  `json:"no_ask"`
	NoBid          int64  `json:"no_bid"`
	LastPrice      int64  `json:"last_price"`
	Volume         int64  `json:"volume"`
	Liquidity      int64  `json:"liquidity"`
	RulesPrimary   string `json:"rules_primary"`
	RulesSecondary string `json:"rules_secondary"`
	CloseTime      string `json:"close_time"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][]int64 `json:"yes"`
		No  [][]int64 `json:"no"`
	} `json:"orderbook"`
}
