package matches

import (
	"math"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/markets"
)

type StrategyType string

const (
	StrategyCrossPlatformSpread StrategyType = "CROSS_PLATFORM_SPREAD"
	StrategySyntheticConversion StrategyType = "SYNTHETIC_CONVERSION"
	StrategyImpliedOddsMismatch StrategyType = "IMPLIED_ODDS_MISMATCH"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

type ExecutablePrice struct {
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
	Depth float64 `json:"depth"`
}

// Leg is one side of a hedge. Prices, fees and slippage are per contract in [0,1].
type Leg struct {
	Platform          markets.Platform `json:"platform"`
	MarketID          string           `json:"market_id"`
	Title             string           `json:"title"`
	URL               string           `json:"url,omitempty"`
	Side              markets.Side     `json:"side"`
	Action            Action           `json:"action"`
	TargetPrice       float64          `json:"target_price"`
	ExecutablePrice   ExecutablePrice  `json:"executable_price"`
	Fees              float64          `json:"fees"`
	EstimatedSlippage float64          `json:"estimated_slippage"`
	AvailableUSD      float64          `json:"available_usd"`
}

type Strategy struct {
	Type             StrategyType `json:"type"`
	Legs             []Leg        `json:"legs"`
	GuaranteedReturn float64      `json:"guaranteed_return"`
	Description      string       `json:"description"`
}

// Costs are per hedge contract with a $1 payout, the unit of GrossProfitPct.
type Costs struct {
	TradingFees    float64 `json:"trading_fees"`
	Slippage       float64 `json:"slippage"`
	SpreadCost     float64 `json:"spread_cost"`
	SettlementFees float64 `json:"settlement_fees"`
	Total          float64 `json:"total"`
}

type FlagLevel string

const (
	FlagInfo     FlagLevel = "INFO"
	FlagWarning  FlagLevel = "WARNING"
	FlagCritical FlagLevel = "CRITICAL"
)

type Flag struct {
	Level   FlagLevel `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

type Risk struct {
	ExecutionRisk    float64 `json:"execution_risk"`
	MarketRisk       float64 `json:"market_risk"`
	OperationalRisk  float64 `json:"operational_risk"`
	OverallRiskScore float64 `json:"overall_risk_score"`
	IsSafe           bool    `json:"is_safe"`
	Flags            []Flag  `json:"flags,omitempty"`
}

// HasCritical reports whether any CRITICAL flag was raised.
func (r Risk) HasCritical() bool {
	for _, f := range r.Flags {
		if f.Level == FlagCritical {
			return true
		}
	}
	return false
}

// Execution is the sizing plan. LegOrder lists indexes into Strategy.Legs in
// the order they should be traded.
type Execution struct {
	RecommendedSizeUSD float64 `json:"recommended_size_usd"`
	MaxSizeUSD         float64 `json:"max_size_usd"`
	MinSizeUSD         float64 `json:"min_size_usd"`
	LegOrder           []int   `json:"leg_order"`
	EstimatedTimeMs    int     `json:"estimated_time_ms"`
	ExpectedProfitUSD  float64 `json:"expected_profit_usd"`
}

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor maps a 0-100 confidence score onto fixed cut points:
// A 90-100, B 75-89, C 60-74, D 40-59, F 0-39. The score is rounded first.
func GradeFor(score float64) Grade {
	s := math.Round(score)
	switch {
	case s >= 90:
		return GradeA
	case s >= 75:
		return GradeB
	case s >= 60:
		return GradeC
	case s >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Rank orders grades with A highest. Unknown grades rank below F.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 5
	case GradeB:
		return 4
	case GradeC:
		return 3
	case GradeD:
		return 2
	case GradeF:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether g is as good as min.
func (g Grade) AtLeast(min Grade) bool {
	return g.Rank() >= min.Rank()
}

// ParseGrade accepts a letter in either case; anything else is F.
func ParseGrade(raw string) Grade {
	g := Grade(strings.ToUpper(strings.TrimSpace(raw)))
	if g.Rank() == 0 {
		return GradeF
	}
	return g
}

type Confidence struct {
	Match     float64 `json:"match"`
	Price     float64 `json:"price"`
	Execution float64 `json:"execution"`
	Profit    float64 `json:"profit"`
	Score     float64 `json:"score"`
	Grade     Grade   `json:"grade"`
}

// Opportunity is an immutable snapshot produced by one calculation.
type Opportunity struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	PairID         string               `json:"pair_id"`
	Pair           *ValidatedMarketPair `json:"pair"`
	Strategy       Strategy             `json:"strategy"`
	NetProfitPct   float64              `json:"net_profit_pct"`
	GrossProfitPct float64              `json:"gross_profit_pct"`
	TotalCosts     Costs                `json:"total_costs"`
	Risk           Risk                 `json:"risk"`
	Execution      Execution            `json:"execution"`
	Confidence     Confidence           `json:"confidence"`
}
