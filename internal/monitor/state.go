package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/registry"
)

type Lifecycle string

const (
	StatusActive Lifecycle = "active"
	StatusClosed Lifecycle = "closed"
)

// PricePoint is one observation of an active opportunity. Profit is a fraction.
type PricePoint struct {
	At     time.Time `json:"at"`
	YesA   float64   `json:"yes_a"`
	YesB   float64   `json:"yes_b"`
	Profit float64   `json:"profit"`
}

// TrackedOpportunity is the lifecycle record of one pair while it stays
// profitable. ID equals the pair id.
type TrackedOpportunity struct {
	ID            string             `json:"id"`
	MarketA       registry.MarketRef `json:"market_a"`
	MarketB       registry.MarketRef `json:"market_b"`
	FirstSeen     time.Time          `json:"first_seen"`
	LastSeen      time.Time          `json:"last_seen"`
	PeakProfit    float64            `json:"peak_profit"`
	CurrentProfit float64            `json:"current_profit"`
	Status        Lifecycle          `json:"status"`
	PriceHistory  []PricePoint       `json:"price_history"`
	AlertSent     bool               `json:"alert_sent"`
	ClosedAt      time.Time          `json:"closed_at,omitempty"`
	CloseReason   string             `json:"close_reason,omitempty"`
}

func (t TrackedOpportunity) clone() TrackedOpportunity {
	t.PriceHistory = append([]PricePoint(nil), t.PriceHistory...)
	return t
}

// State owns the active map and the closed-history ring. It is safe for
// concurrent use.
type State struct {
	mu                sync.Mutex
	active            map[string]*TrackedOpportunity
	history           []TrackedOpportunity
	historyLimit      int
	priceHistoryLimit int
}

func NewState(historyLimit, priceHistoryLimit int) *State {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	if priceHistoryLimit <= 0 {
		priceHistoryLimit = 60
	}
	return &State{
		active:            make(map[string]*TrackedOpportunity),
		historyLimit:      historyLimit,
		priceHistoryLimit: priceHistoryLimit,
	}
}

// Observe applies one profitable observation. It returns the record and true
// when the pair was not active before (unseen to active). A pair that closed
// earlier starts a fresh record.
func (s *State) Observe(entry registry.Entry, pt PricePoint) (TrackedOpportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.active[entry.PairID]
	if !ok {
		t = &TrackedOpportunity{
			ID:            entry.PairID,
			MarketA:       entry.MarketA,
			MarketB:       entry.MarketB,
			FirstSeen:     pt.At,
			LastSeen:      pt.At,
			PeakProfit:    pt.Profit,
			CurrentProfit: pt.Profit,
			Status:        StatusActive,
			PriceHistory:  []PricePoint{pt},
		}
		s.active[entry.PairID] = t
		return t.clone(), true
	}
	t.LastSeen = pt.At
	t.CurrentProfit = pt.Profit
	if pt.Profit > t.PeakProfit {
		t.PeakProfit = pt.Profit
	}
	t.PriceHistory = append(t.PriceHistory, pt)
	if over := len(t.PriceHistory) - s.priceHistoryLimit; over > 0 {
		t.PriceHistory = append([]PricePoint(nil), t.PriceHistory[over:]...)
	}
	return t.clone(), false
}

// MarkAlerted flags the active record as alerted.
func (s *State) MarkAlerted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[id]; ok {
		t.AlertSent = true
	}
}

// Close moves an active record into history, evicting the oldest closed
// record beyond the limit.
func (s *State) Close(id, reason string, at time.Time) (TrackedOpportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.active[id]
	if !ok {
		return TrackedOpportunity{}, false
	}
	delete(s.active, id)
	t.Status = StatusClosed
	t.ClosedAt = at
	t.CloseReason = reason
	s.history = append(s.history, *t)
	if over := len(s.history) - s.historyLimit; over > 0 {
		s.history = append([]TrackedOpportunity(nil), s.history[over:]...)
	}
	return t.clone(), true
}

// ActiveIDs returns the ids of active records in sorted order.
func (s *State) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Active returns copies of active records, most profitable first.
func (s *State) Active() []TrackedOpportunity {
	s.mu.Lock()
	out := make([]TrackedOpportunity, 0, len(s.active))
	for _, t := range s.active {
		out = append(out, t.clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentProfit != out[j].CurrentProfit {
			return out[i].CurrentProfit > out[j].CurrentProfit
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// History returns closed records, oldest first.
func (s *State) History() []TrackedOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedOpportunity, len(s.history))
	for i, t := range s.history {
		out[i] = t.clone()
	}
	return out
}
