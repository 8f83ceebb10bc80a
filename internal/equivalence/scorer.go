// Package equivalence decides how likely two markets on different platforms
// describe the same real-world event with aligned outcomes.
package equivalence

import (
	"fmt"
	"math"
	"sort"

	"github.com/hetulpatel/crossarb/internal/metadata"
)

// Weights combine the five dimensions into the overall score.
type Weights struct {
	Title    float64 `mapstructure:"title" json:"title"`
	Entity   float64 `mapstructure:"entity" json:"entity"`
	Date     float64 `mapstructure:"date" json:"date"`
	Category float64 `mapstructure:"category" json:"category"`
	Outcome  float64 `mapstructure:"outcome" json:"outcome"`
}

func DefaultWeights() Weights {
	return Weights{Title: 0.35, Entity: 0.25, Date: 0.20, Category: 0.10, Outcome: 0.10}
}

func (w Weights) sum() float64 {
	return w.Title + w.Entity + w.Date + w.Category + w.Outcome
}

type Config struct {
	Weights          Weights
	MaxDateDriftDays float64
	// CoreTitleFloor is the title similarity below which two markets cannot be
	// the same core event regardless of other signals.
	CoreTitleFloor float64
	// MaxResolutionGapDays bounds how far apart the platforms' resolution dates may be.
	MaxResolutionGapDays float64
	// DisqualifierPenalty multiplies the overall score once per disqualifier.
	DisqualifierPenalty float64
}

func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		MaxDateDriftDays:     7,
		CoreTitleFloor:       0.30,
		MaxResolutionGapDays: 30,
		DisqualifierPenalty:  0.5,
	}
}

type Validations struct {
	SameCoreEvent        bool `json:"same_core_event"`
	SameTimeframe        bool `json:"same_timeframe"`
	SameOutcomeStructure bool `json:"same_outcome_structure"`
	NoResolutionConflict bool `json:"no_resolution_conflict"`
	EntitiesMatch        bool `json:"entities_match"`
}

// OutcomeMapping translates outcome labels between the two markets.
type OutcomeMapping struct {
	AToB       map[string]string `json:"a_to_b"`
	BToA       map[string]string `json:"b_to_a"`
	IsInverted bool              `json:"is_inverted"`
}

// Score is the result of comparing two markets. Every numeric dimension is in [0,1].
type Score struct {
	OverallScore     float64        `json:"overall_score"`
	TitleSimilarity  float64        `json:"title_similarity"`
	EntityOverlap    float64        `json:"entity_overlap"`
	DateAlignment    float64        `json:"date_alignment"`
	CategoryMatch    float64        `json:"category_match"`
	OutcomeAlignment float64        `json:"outcome_alignment"`
	Validations      Validations    `json:"validations"`
	Warnings         []string       `json:"warnings,omitempty"`
	Disqualifiers    []string       `json:"disqualifiers,omitempty"`
	OutcomeMapping   OutcomeMapping `json:"outcome_mapping"`
}

// Qualified reports whether the score carries no disqualifiers.
func (s Score) Qualified() bool { return len(s.Disqualifiers) == 0 }

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Weights.sum() <= 0 {
		cfg.Weights = def.Weights
	}
	if cfg.MaxDateDriftDays <= 0 {
		cfg.MaxDateDriftDays = def.MaxDateDriftDays
	}
	if cfg.CoreTitleFloor <= 0 {
		cfg.CoreTitleFloor = def.CoreTitleFloor
	}
	if cfg.MaxResolutionGapDays <= 0 {
		cfg.MaxResolutionGapDays = def.MaxResolutionGapDays
	}
	if cfg.DisqualifierPenalty <= 0 || cfg.DisqualifierPenalty >= 1 {
		cfg.DisqualifierPenalty = def.DisqualifierPenalty
	}
	return &Scorer{cfg: cfg}
}

// Score compares two markets using metadata only; prices never influence it.
// Every dimension and message is independent of argument order.
func (s *Scorer) Score(a, b metadata.MarketMetadata) Score {
	var out Score
	out.TitleSimilarity = TitleSimilarity(a.Title, b.Title)

	var entityKnown bool
	out.EntityOverlap, entityKnown = entityOverlap(a, b)
	if !entityKnown {
		out.Warnings = append(out.Warnings, "no entities extracted from either market")
	}

	drift, dateKnown := dateDriftDays(a, b)
	if dateKnown {
		out.DateAlignment = math.Max(0, 1-drift/s.cfg.MaxDateDriftDays)
	} else {
		out.DateAlignment = 0.5
		out.Warnings = append(out.Warnings, "event date unknown for at least one market")
	}

	if a.Category == b.Category {
		out.CategoryMatch = 1
	}
	out.OutcomeAlignment, out.OutcomeMapping = outcomeAlignment(a, b)

	w := s.cfg.Weights
	overall := (w.Title*out.TitleSimilarity +
		w.Entity*out.EntityOverlap +
		w.Date*out.DateAlignment +
		w.Category*out.CategoryMatch +
		w.Outcome*out.OutcomeAlignment) / w.sum()

	out.Validations = Validations{
		SameCoreEvent:        s.sameCoreEvent(a, b, out.TitleSimilarity),
		SameTimeframe:        !dateKnown || drift <= s.cfg.MaxDateDriftDays,
		SameOutcomeStructure: a.OutcomeType == b.OutcomeType && len(a.Outcomes) == len(b.Outcomes),
		NoResolutionConflict: s.noResolutionConflict(a, b),
		EntitiesMatch:        entitiesMatch(a, b),
	}

	if out.CategoryMatch == 0 {
		out.Disqualifiers = append(out.Disqualifiers, fmt.Sprintf("category mismatch: %s", sortedPair(string(a.Category), string(b.Category))))
	}
	v := out.Validations
	if !v.SameCoreEvent {
		out.Disqualifiers = append(out.Disqualifiers, "markets do not describe the same core event")
	}
	if !v.SameTimeframe {
		out.Disqualifiers = append(out.Disqualifiers, fmt.Sprintf("event dates drift %.1f days (max %.0f)", drift, s.cfg.MaxDateDriftDays))
	}
	if !v.SameOutcomeStructure {
		out.Disqualifiers = append(out.Disqualifiers, fmt.Sprintf("outcome structures differ: %s", sortedPair(
			fmt.Sprintf("%s/%d", a.OutcomeType, len(a.Outcomes)),
			fmt.Sprintf("%s/%d", b.OutcomeType, len(b.Outcomes)),
		)))
	}
	if !v.NoResolutionConflict {
		out.Disqualifiers = append(out.Disqualifiers, "resolution sources or dates conflict")
	}
	if !v.EntitiesMatch {
		out.Disqualifiers = append(out.Disqualifiers, "entities contradict each other")
	}

	for range out.Disqualifiers {
		overall *= s.cfg.DisqualifierPenalty
	}
	out.OverallScore = clamp01(overall)
	return out
}

func (s *Scorer) sameCoreEvent(a, b metadata.MarketMetadata, titleSim float64) bool {
	if titleSim < s.cfg.CoreTitleFloor {
		return false
	}
	if disjoint(a.Entities.Events, b.Entities.Events) {
		return false
	}
	return !disjoint(a.Entities.People, b.Entities.People)
}

func (s *Scorer) noResolutionConflict(a, b metadata.MarketMetadata) bool {
	if disjoint(metadata.ResolutionAuthorities(a.ResolutionSource), metadata.ResolutionAuthorities(b.ResolutionSource)) {
		return false
	}
	if a.ResolutionDate.IsZero() || b.ResolutionDate.IsZero() {
		return true
	}
	gap := math.Abs(a.ResolutionDate.Sub(b.ResolutionDate).Hours()) / 24
	return gap <= s.cfg.MaxResolutionGapDays
}

func entitiesMatch(a, b metadata.MarketMetadata) bool {
	if disjoint(a.Entities.People, b.Entities.People) ||
		disjoint(a.Entities.Organizations, b.Entities.Organizations) ||
		disjoint(a.Entities.Locations, b.Entities.Locations) {
		return false
	}
	byUnit := func(amts []metadata.Amount) map[string][]string {
		out := make(map[string][]string)
		for _, amt := range amts {
			out[amt.Unit] = append(out[amt.Unit], metadata.AmountKey(amt))
		}
		return out
	}
	ua, ub := byUnit(a.Entities.Amounts), byUnit(b.Entities.Amounts)
	for unit, keys := range ua {
		if disjoint(keys, ub[unit]) {
			return false
		}
	}
	return true
}

func entityOverlap(a, b metadata.MarketMetadata) (float64, bool) {
	sa, sb := entityKeys(a.Entities), entityKeys(b.Entities)
	if len(sa) == 0 && len(sb) == 0 {
		return 0.5, false
	}
	return jaccard(sa, sb), true
}

func entityKeys(e metadata.Entities) map[string]bool {
	keys := make(map[string]bool)
	add := func(kind string, values []string) {
		for _, v := range values {
			keys[kind+":"+v] = true
		}
	}
	add("person", e.People)
	add("org", e.Organizations)
	add("location", e.Locations)
	add("event", e.Events)
	for _, amt := range e.Amounts {
		keys["amount:"+metadata.AmountKey(amt)] = true
	}
	return keys
}

func dateDriftDays(a, b metadata.MarketMetadata) (float64, bool) {
	if !a.HasEventDate() || !b.HasEventDate() {
		return 0, false
	}
	return math.Abs(a.EventDate.Sub(b.EventDate).Hours()) / 24, true
}

// DateDriftDays exposes the event-date distance for cheap pre-filtering.
func DateDriftDays(a, b metadata.MarketMetadata) (float64, bool) {
	return dateDriftDays(a, b)
}

// disjoint reports whether both lists are non-empty and share no element.
func disjoint(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return false
		}
	}
	return true
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func sortedPair(x, y string) string {
	pair := []string{x, y}
	sort.Strings(pair)
	return pair[0] + " vs " + pair[1]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
