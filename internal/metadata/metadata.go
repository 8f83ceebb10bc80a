// Package metadata derives structured, comparable metadata from raw market records.
// Extraction is a pure function of the market, so results can be memoized per
// market within one matching pass.
package metadata

import (
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/markets"
)

type Category string

const (
	CategoryPolitics      Category = "politics"
	CategoryEconomics     Category = "economics"
	CategoryCrypto        Category = "crypto"
	CategorySports        Category = "sports"
	CategoryTech          Category = "tech"
	CategoryEntertainment Category = "entertainment"
	CategoryScience       Category = "science"
	CategoryOther         Category = "other"
)

type OutcomeType string

const (
	OutcomeBinary OutcomeType = "binary"
	OutcomeMulti  OutcomeType = "multi"
)

type DateKind string

const (
	DateDeadline DateKind = "deadline"
	DateEvent    DateKind = "event"
	DateRange    DateKind = "range"
)

// DateRef is a normalized date expression found in market text.
type DateRef struct {
	Kind DateKind  `json:"kind"`
	Date time.Time `json:"date"`
	Text string    `json:"text"`
}

// Amount is a numeric threshold with its unit (usd, pct, bps, count).
type Amount struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Text  string  `json:"text"`
}

// Entities holds canonical lower-case entity names.
type Entities struct {
	People        []string  `json:"people,omitempty"`
	Organizations []string  `json:"organizations,omitempty"`
	Locations     []string  `json:"locations,omitempty"`
	Dates         []DateRef `json:"dates,omitempty"`
	Amounts       []Amount  `json:"amounts,omitempty"`
	Events        []string  `json:"events,omitempty"`
}

// MarketMetadata is the structured view of a market used for equivalence scoring.
type MarketMetadata struct {
	Platform         markets.Platform `json:"platform"`
	MarketID         string           `json:"market_id"`
	Title            string           `json:"title"`
	EventDate        time.Time        `json:"event_date,omitempty"`
	ResolutionDate   time.Time        `json:"resolution_date,omitempty"`
	ResolutionSource string           `json:"resolution_source,omitempty"`
	OutcomeType      OutcomeType      `json:"outcome_type"`
	Outcomes         []string         `json:"outcomes"`
	Category         Category         `json:"category"`
	Subcategory      string           `json:"subcategory,omitempty"`
	Entities         Entities         `json:"entities"`
	Negated          bool             `json:"negated,omitempty"`
}

// HasEventDate reports whether an event date could be determined.
func (m MarketMetadata) HasEventDate() bool { return !m.EventDate.IsZero() }

// Extract derives metadata from a market. It performs no I/O and reads no clock.
func Extract(m markets.Market) MarketMetadata {
	text := m.Title
	if m.Description != "" {
		text = m.Title + ". " + m.Description
	}
	norm := NormalizeTitle(m.Title)

	dates, masked := extractDates(m.Title)
	category, sub := classify(norm, m.Category)

	md := MarketMetadata{
		Platform:         m.Platform,
		MarketID:         m.MarketID,
		Title:            m.Title,
		ResolutionDate:   m.CloseTime.UTC(),
		ResolutionSource: strings.TrimSpace(m.ResolutionSource),
		Category:         category,
		Subcategory:      sub,
		Negated:          isNegated(norm),
	}
	if m.CloseTime.IsZero() {
		md.ResolutionDate = time.Time{}
	}
	md.Outcomes, md.OutcomeType = outcomeShape(m.Outcomes)
	md.Entities = extractEntities(m.Title)
	md.Entities.Dates = dates
	md.Entities.Amounts = extractAmounts(masked)
	if md.ResolutionSource == "" {
		md.ResolutionSource = resolutionHint(text)
	}
	md.EventDate = eventDate(dates, md.ResolutionDate)
	return md
}

// eventDate prefers the most specific date stated in the title and falls back to
// the market's close time.
func eventDate(dates []DateRef, closeTime time.Time) time.Time {
	var best *DateRef
	for i := range dates {
		d := &dates[i]
		if best == nil || rankKind(d.Kind) > rankKind(best.Kind) {
			best = d
		}
	}
	if best != nil {
		return best.Date
	}
	return closeTime
}

func rankKind(k DateKind) int {
	switch k {
	case DateEvent:
		return 3
	case DateDeadline:
		return 2
	default:
		return 1
	}
}

func outcomeShape(raw []string) ([]string, OutcomeType) {
	var labels []string
	for _, o := range raw {
		if l := strings.ToLower(strings.TrimSpace(o)); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return []string{"yes", "no"}, OutcomeBinary
	}
	if len(labels) <= 2 {
		return labels, OutcomeBinary
	}
	return labels, OutcomeMulti
}

type extractorKey struct {
	platform markets.Platform
	id       string
}

// Extractor memoizes Extract per (platform, market id). It is safe for concurrent use.
type Extractor struct {
	mu    sync.Mutex
	cache map[extractorKey]MarketMetadata
}

func NewExtractor() *Extractor {
	return &Extractor{cache: make(map[extractorKey]MarketMetadata)}
}

func (e *Extractor) Extract(m markets.Market) MarketMetadata {
	key := extractorKey{platform: m.Platform, id: m.MarketID}
	e.mu.Lock()
	md, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return md
	}
	md = Extract(m)
	e.mu.Lock()
	e.cache[key] = md
	e.mu.Unlock()
	return md
}

// Len returns the number of memoized markets.
func (e *Extractor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
