// Package polymarket searches open Polymarket markets through the Gamma API,
// optionally enriched with CLOB order books.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/httpx"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
)

const (
	defaultBaseURL   = "https://gamma-api.polymarket.com/events"
	defaultBookURL   = "https://clob.polymarket.com/book"
	defaultMarketURL = "https://polymarket.com/event/"
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
	// WithBooks fetches the CLOB book of both outcome tokens per market.
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
	return &Client{
		baseURL:   base,
		bookURL:   book,
		http:      httpx.New("polymarket", cfg.Timeout),
		pageLimit: limit,
		withBooks: cfg.WithBooks,
	}
}

func (c *Client) Platform() markets.Platform { return markets.PlatformPolymarket }

// Search pages through open events and returns the active binary markets
// whose question or event title contains every word of query. An empty query
// returns everything.
func (c *Client) Search(ctx context.Context, query string) ([]markets.Market, error) {
	terms := queryTerms(query)
	var out []markets.Market
	for page := 0; page < maxPages; page++ {
		events, err := c.listEvents(ctx, c.pageLimit, page*c.pageLimit)
		if err != nil {
			if page > 0 {
				logging.Warnf("[polymarket] stopping at page %d: %v", page, err)
				break
			}
			return nil, fmt.Errorf("polymarket list events: %w", err)
		}
		for i := range events {
			ev := &events[i]
			if ev.Closed {
				continue
			}
			for j := range ev.Markets {
				m := &ev.Markets[j]
				if m.Closed || !m.Active || isPlaceholderMarket(m) {
					continue
				}
				if !matchesTerms(terms, m.Question, ev.Title) {
					continue
				}
				out = append(out, c.normalizeMarket(ctx, ev, m))
			}
		}
		if len(events) < c.pageLimit {
			break
		}
	}
	logging.Debugf("[polymarket] search %q returned %d markets", query, len(out))
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, limit, offset int) ([]event, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("closed", "false")
	q.Set("active", "true")
	u.RawQuery = q.Encode()

	var events []event
	if err := c.http.GetJSON(ctx, u.String(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) fetchOrderbook(ctx context.Context, tokenID string) (markets.Orderbook, error) {
	u, err := url.Parse(c.bookURL)
	if err != nil {
		return markets.Orderbook{}, err
	}
	q := u.Query()
	q.Set("token_id", tokenID)
	u.RawQuery = q.Encode()

	var book clobBook
	if err := c.http.GetJSON(ctx, u.String(), &book); err != nil {
		return markets.Orderbook{}, err
	}
	return convertClobBook(book), nil
}

func (c *Client) normalizeMarket(ctx context.Context, ev *event, m *market) markets.Market {
	out := markets.Market{
		Platform:         markets.PlatformPolymarket,
		MarketID:         m.ID,
		Title:            m.Question,
		Description:      firstNonEmpty(m.Description, ev.Description),
		Category:         ev.Category,
		Volume:           m.VolumeNum,
		Liquidity:        m.LiquidityNum,
		CloseTime:        parseTime(firstNonEmpty(m.EndDate, ev.EndDate)),
		ResolutionSource: firstNonEmpty(m.ResolutionSource, ev.ResolutionSource),
		Outcomes:         parseStringList(m.Outcomes),
	}
	if slug := firstNonEmpty(ev.Slug, m.Slug); slug != "" {
		out.URL = defaultMarketURL + slug
	}

	prices := parseStringList(m.OutcomePrices)
	if len(prices) > 0 {
		out.YesPrice = parseDecimal(prices[0])
	}
	if len(prices) > 1 {
		out.NoPrice = parseDecimal(prices[1])
	}
	if m.BestBid > 0 || m.BestAsk > 0 {
		out.Price = markets.PriceSnapshot{YesBid: m.BestBid, YesAsk: m.BestAsk}
		if m.BestAsk > 0 {
			out.Price.NoBid = 1 - m.BestAsk
		}
		if m.BestBid > 0 {
			out.Price.NoAsk = 1 - m.BestBid
		}
	}

	if c.withBooks {
		c.attachBooks(ctx, &out, parseStringList(m.ClobTokenIds))
	}
	return out
}

// attachBooks fetches the YES and NO token books. A failed fetch leaves the
// side without a book.
func (c *Client) attachBooks(ctx context.Context, out *markets.Market, tokenIDs []string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for i, side := range []markets.Side{markets.SideYes, markets.SideNo} {
		if i >= len(tokenIDs) || tokenIDs[i] == "" {
			continue
		}
		book, err := c.fetchOrderbook(ctx, tokenIDs[i])
		if err != nil {
			logging.Debugf("[polymarket] book %s: %v", tokenIDs[i], err)
			continue
		}
		if out.Orderbooks == nil {
			out.Orderbooks = make(map[markets.Side]markets.Orderbook)
		}
		out.Orderbooks[side] = book
	}
}

func convertClobBook(b clobBook) markets.Orderbook {
	out := markets.Orderbook{}
	for _, lvl := range b.Bids {
		out.Bids = append(out.Bids, markets.OrderbookLevel{Price: parseDecimal(lvl.Price), Quantity: parseDecimal(lvl.Size)})
	}
	for _, lvl := range b.Asks {
		out.Asks = append(out.Asks, markets.OrderbookLevel{Price: parseDecimal(lvl.Price), Quantity: parseDecimal(lvl.Size)})
	}
	return out
}

// parseStringList decodes Gamma's JSON-in-a-string list fields.
func parseStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func parseDecimal(val string) float64 {
	f, _ := strconv.ParseFloat(val, 64)
	return f
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return ts
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
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

var placeholderQuestionRe = regexp.MustCompile(`(?i)^will\s+\w+\s+[a-z]\b`)

func isPlaceholderMarket(m *market) bool {
	q := strings.TrimSpace(m.Question)
	if placeholderQuestionRe.MatchString(q) {
		return true
	}
	desc := strings.ToLower(m.Description)
	return strings.Contains(desc, "may be updated to replace") || strings.Contains(desc, "placeholder")
}

type event struct {
	ID               string   `json:"id"`
	Slug             string   `json:"slug"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ResolutionSource string   `json:"resolutionSource"`
	Closed           bool     `json:"closed"`
	Category         string   `json:"category"`
	EndDate          string   `json:"endDate"`
	Markets          []market `json:"markets"`
}

type market struct {
	ID               string  `json:"id"`
	Slug             string  `json:"slug"`
	Question         string  `json:"question"`
	Description      string  `json:"description"`
	ResolutionSource string  `json:"resolutionSource"`
	Outcomes         string  `json:"outcomes"`
	OutcomePrices    string  `json:"outcomePrices"`
	BestBid          float64 `json:"bestBid"`
	BestAsk          float64 `json:"bestAsk"`
	VolumeNum        float64 `json:"volumeNum"`
	LiquidityNum     float64 `json:"liquidityNum"`
	ClobTokenIds     string  `json:"clobTokenIds"`
	EndDate          string  `json:"endDate"`
	Active           bool    `json:"active"`
	Closed           bool    `json:"closed"`
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
