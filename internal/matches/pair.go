package matches

import (
	"time"

	"github.com/hetulpatel/crossarb/internal/equivalence"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/metadata"
)

// ValidatedMarketPair is a cross-platform match that cleared every matching
// threshold. It is not mutated after the matcher returns it.
type ValidatedMarketPair struct {
	PairID         string                     `json:"pair_id"`
	MarketA        markets.Market             `json:"market_a"`
	MarketB        markets.Market             `json:"market_b"`
	MetadataA      metadata.MarketMetadata    `json:"metadata_a"`
	MetadataB      metadata.MarketMetadata    `json:"metadata_b"`
	Equivalence    equivalence.Score          `json:"equivalence"`
	OutcomeMapping equivalence.OutcomeMapping `json:"outcome_mapping"`
	MatchedAt      time.Time                  `json:"matched_at"`
}

// NewValidatedPair assembles a pair and derives its id.
func NewValidatedPair(a, b markets.Market, ma, mb metadata.MarketMetadata, score equivalence.Score, matchedAt time.Time) ValidatedMarketPair {
	return ValidatedMarketPair{
		PairID:         PairID(a, b),
		MarketA:        a,
		MarketB:        b,
		MetadataA:      ma,
		MetadataB:      mb,
		Equivalence:    score,
		OutcomeMapping: score.OutcomeMapping,
		MatchedAt:      matchedAt,
	}
}
