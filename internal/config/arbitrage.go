package config

// Arbitrage holds matching and profitability thresholds. Percentages are
// fractions (0.02 == 2%).
type Arbitrage struct {
	MinEquivalenceScore float64 `mapstructure:"min_equivalence_score" json:"min_equivalence_score"`
	MinTitleSimilarity  float64 `mapstructure:"min_title_similarity" json:"min_title_similarity"`
	MaxDateDriftDays    float64 `mapstructure:"max_date_drift_days" json:"max_date_drift_days"`
	HardDateCapDays     float64 `mapstructure:"hard_date_cap_days" json:"hard_date_cap_days"`
	MinNetProfitPct     float64 `mapstructure:"min_net_profit_pct" json:"min_net_profit_pct"`
	MinGrossProfitPct   float64 `mapstructure:"min_gross_profit_pct" json:"min_gross_profit_pct"`
	MaxRiskScore        float64 `mapstructure:"max_risk_score" json:"max_risk_score"`
	MaxExecutionRisk    float64 `mapstructure:"max_execution_risk" json:"max_execution_risk"`
	MinLiquidityUSD     float64 `mapstructure:"min_liquidity_usd" json:"min_liquidity_usd"`
	MinVolumeUSD        float64 `mapstructure:"min_volume_usd" json:"min_volume_usd"`
	MaxPositionPct      float64 `mapstructure:"max_position_pct" json:"max_position_pct"`
	DefaultPositionUSD  float64 `mapstructure:"default_position_usd" json:"default_position_usd"`
	MaxPositionUSD      float64 `mapstructure:"max_position_usd" json:"max_position_usd"`
	MinPositionUSD      float64 `mapstructure:"min_position_usd" json:"min_position_usd"`
	MaxExecutionTimeMs  int     `mapstructure:"max_execution_time_ms" json:"max_execution_time_ms"`
	MaxPriceDeviation   float64 `mapstructure:"max_price_deviation" json:"max_price_deviation"`
}

func DefaultArbitrage() Arbitrage {
	return Arbitrage{
		MinEquivalenceScore: 0.80,
		MinTitleSimilarity:  0.70,
		MaxDateDriftDays:    7,
		HardDateCapDays:     30,
		MinNetProfitPct:     0.02,
		MinGrossProfitPct:   0.03,
		MaxRiskScore:        60,
		MaxExecutionRisk:    50,
		MinLiquidityUSD:     500,
		MinVolumeUSD:        1000,
		MaxPositionPct:      0.05,
		DefaultPositionUSD:  100,
		MaxPositionUSD:      1000,
		MinPositionUSD:      10,
		MaxExecutionTimeMs:  5000,
		MaxPriceDeviation:   0.02,
	}
}

// Validate rejects out-of-range and contradictory thresholds.
func (a Arbitrage) Validate() error {
	unit := map[string]float64{
		"arbitrage.min_equivalence_score": a.MinEquivalenceScore,
		"arbitrage.min_title_similarity":  a.MinTitleSimilarity,
		"arbitrage.max_position_pct":      a.MaxPositionPct,
		"arbitrage.max_price_deviation":   a.MaxPriceDeviation,
	}
	for _, field := range []string{
		"arbitrage.min_equivalence_score",
		"arbitrage.min_title_similarity",
		"arbitrage.max_position_pct",
		"arbitrage.max_price_deviation",
	} {
		if v := unit[field]; v <= 0 || v > 1 {
			return invalid(field, "must be in (0,1], got %v", v)
		}
	}
	if a.MinNetProfitPct < 0 || a.MinGrossProfitPct < 0 {
		return invalid("arbitrage.min_net_profit_pct", "profit thresholds must not be negative")
	}
	if a.MinNetProfitPct > a.MinGrossProfitPct {
		return invalid("arbitrage.min_net_profit_pct", "%.4f exceeds min_gross_profit_pct %.4f", a.MinNetProfitPct, a.MinGrossProfitPct)
	}
	if a.MaxDateDriftDays <= 0 {
		return invalid("arbitrage.max_date_drift_days", "must be positive")
	}
	if a.HardDateCapDays < a.MaxDateDriftDays {
		return invalid("arbitrage.hard_date_cap_days", "must be at least max_date_drift_days")
	}
	if a.MaxRiskScore <= 0 || a.MaxRiskScore > 100 || a.MaxExecutionRisk <= 0 || a.MaxExecutionRisk > 100 {
		return invalid("arbitrage.max_risk_score", "risk limits must be in (0,100]")
	}
	if a.MinPositionUSD <= 0 {
		return invalid("arbitrage.min_position_usd", "must be positive")
	}
	if a.DefaultPositionUSD < a.MinPositionUSD || a.DefaultPositionUSD > a.MaxPositionUSD {
		return invalid("arbitrage.default_position_usd", "must lie between min_position_usd and max_position_usd")
	}
	if a.MaxExecutionTimeMs <= 0 {
		return invalid("arbitrage.max_execution_time_ms", "must be positive")
	}
	if a.MinLiquidityUSD < 0 || a.MinVolumeUSD < 0 {
		return invalid("arbitrage.min_liquidity_usd", "liquidity and volume floors must not be negative")
	}
	return nil
}
