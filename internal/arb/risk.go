package arb

import (
	"fmt"
	"math"
	"time"

	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matches"
)

// Quote sanity limits. A top-of-book spread above 5c is barely tradable and a
// penny bid under a few-cent ask is dust.
const (
	maxQuoteSpread     = 0.05
	dustBid            = 0.01
	dustAsk            = 0.03
	longResolutionDays = 180.0
	largePriceGap      = 0.25
	defaultVenueRisk   = 30.0
)

func (c *Calculator) assess(pair matches.ValidatedMarketPair, hedge Hedge, opp *matches.Opportunity, legA, legB *legQuote) matches.Risk {
	t := c.cfg.Thresholds
	var flags []matches.Flag
	add := func(level matches.FlagLevel, code, format string, args ...any) {
		flags = append(flags, matches.Flag{Level: level, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// Execution: liquidity, slippage, timing.
	liquidity := math.Min(legA.available, legB.available)
	liqRisk := 40 * clamp01(1-liquidity/(20*math.Max(t.MinLiquidityUSD, 1)))
	slipRisk := 30 * clamp01(opp.TotalCosts.Slippage/math.Max(t.MaxPriceDeviation, epsilon))
	timeRisk := 30 * clamp01(float64(opp.Execution.EstimatedTimeMs)/float64(max(t.MaxExecutionTimeMs, 1)))
	execRisk := liqRisk + slipRisk + timeRisk

	if liquidity < t.MinLiquidityUSD {
		add(matches.FlagCritical, "LOW_LIQUIDITY", "available liquidity $%.0f below $%.0f", liquidity, t.MinLiquidityUSD)
	}
	for _, leg := range []*legQuote{legA, legB} {
		name := leg.market.Platform
		if leg.market.Volume < t.MinVolumeUSD {
			add(matches.FlagWarning, "LOW_VOLUME", "%s volume $%.0f below $%.0f", name, leg.market.Volume, t.MinVolumeUSD)
		}
		if !leg.hasBook {
			add(matches.FlagWarning, "NO_ORDERBOOK", "%s %s has no order book; slippage unknown", name, leg.side)
		} else if !leg.fill.Complete {
			add(matches.FlagCritical, "THIN_BOOK", "%s %s book cannot fill the recommended size", name, leg.side)
		}
		if leg.bid > epsilon {
			spread := leg.ask - leg.bid
			if spread > maxQuoteSpread {
				add(matches.FlagWarning, "WIDE_SPREAD", "%s %s spread %.3f", name, leg.side, spread)
			}
			if leg.bid <= dustBid && leg.ask >= dustAsk {
				add(matches.FlagCritical, "DUST_QUOTE", "%s %s quote is dust (bid %.3f ask %.3f)", name, leg.side, leg.bid, leg.ask)
			}
		}
	}
	if opp.Execution.RecommendedSizeUSD < t.MinPositionUSD {
		add(matches.FlagCritical, "BELOW_MIN_SIZE", "recommended size $%.2f below minimum $%.2f", opp.Execution.RecommendedSizeUSD, t.MinPositionUSD)
	}
	if opp.Execution.EstimatedTimeMs > t.MaxExecutionTimeMs {
		add(matches.FlagWarning, "SLOW_EXECUTION", "estimated %dms exceeds %dms", opp.Execution.EstimatedTimeMs, t.MaxExecutionTimeMs)
	}

	// Market: time to resolution, match quality, price disagreement.
	now := c.cfg.Clock.Now()
	resolution := earliest(pair.MetadataA.ResolutionDate, pair.MetadataB.ResolutionDate)
	resRisk := 20.0
	if !resolution.IsZero() {
		days := resolution.Sub(now).Hours() / 24
		resRisk = 40 * clamp01(days/365)
		switch {
		case days < 0:
			add(matches.FlagCritical, "PAST_RESOLUTION", "resolution date %s has passed", resolution.Format("2006-01-02"))
		case days > longResolutionDays:
			add(matches.FlagWarning, "LONG_RESOLUTION", "resolves in %.0f days; capital locked", days)
		}
	} else {
		add(matches.FlagInfo, "UNKNOWN_RESOLUTION", "resolution date unknown")
	}
	corrRisk := 40 * clamp01(1-pair.Equivalence.OverallScore)
	gap := math.Abs(hedge.YesA - hedge.YesB)
	volRisk := 20 * clamp01(gap/largePriceGap)
	if gap > largePriceGap {
		add(matches.FlagWarning, "LARGE_PRICE_GAP", "platforms disagree by %.2f; verify the match", gap)
	}
	if ra, rb := pair.MetadataA.ResolutionDate, pair.MetadataB.ResolutionDate; !ra.IsZero() && !rb.IsZero() {
		if drift := math.Abs(ra.Sub(rb).Hours() / 24); drift > t.MaxDateDriftDays {
			add(matches.FlagWarning, "RESOLUTION_MISMATCH", "resolution dates differ by %.1f days", drift)
		}
	}
	marketRisk := resRisk + corrRisk + volRisk

	// Operational: platform reliability and settlement.
	opRisk := (c.venueRisk(legA.market.Platform) + c.venueRisk(legB.market.Platform)) / 2
	if opp.TotalCosts.SettlementFees > 0 {
		opRisk += 5
	}
	if pair.OutcomeMapping.IsInverted {
		opRisk += 10
		add(matches.FlagInfo, "INVERTED_OUTCOMES", "outcome polarity is inverted between platforms")
	}
	opRisk = math.Min(100, opRisk)

	for _, w := range pair.Equivalence.Warnings {
		add(matches.FlagInfo, "MATCH_WARNING", "%s", w)
	}

	overall := 0.5*execRisk + 0.3*marketRisk + 0.2*opRisk
	return matches.Risk{
		ExecutionRisk:    execRisk,
		MarketRisk:       marketRisk,
		OperationalRisk:  opRisk,
		OverallRiskScore: overall,
		IsSafe:           overall <= t.MaxRiskScore && execRisk <= t.MaxExecutionRisk,
		Flags:            flags,
	}
}

func (c *Calculator) venueRisk(p markets.Platform) float64 {
	if r, ok := c.cfg.OperationalRisk[p]; ok {
		return r
	}
	return defaultVenueRisk
}

// confidence combines match, price, execution and profit confidence into a
// 0-100 score. Each CRITICAL flag costs 15 points.
func (c *Calculator) confidence(pair matches.ValidatedMarketPair, opp *matches.Opportunity, legA, legB *legQuote) matches.Confidence {
	match := 100 * clamp01(pair.Equivalence.OverallScore)

	price := 100 * (1 - clamp01(opp.TotalCosts.SpreadCost/0.10))
	for _, leg := range []*legQuote{legA, legB} {
		if !leg.hasBook {
			price *= 0.9
		}
	}

	execution := 100 - clamp01(opp.Risk.ExecutionRisk/100)*100

	profit := 0.0
	if opp.NetProfitPct > 0 && opp.GrossProfitPct > 0 {
		profit = 100 * clamp01(opp.NetProfitPct/opp.GrossProfitPct)
	}

	score := 0.35*match + 0.20*price + 0.25*execution + 0.20*profit
	for _, f := range opp.Risk.Flags {
		if f.Level == matches.FlagCritical {
			score -= 15
		}
	}
	score = math.Max(0, math.Min(100, score))
	return matches.Confidence{
		Match:     match,
		Price:     price,
		Execution: execution,
		Profit:    profit,
		Score:     score,
		Grade:     matches.GradeFor(score),
	}
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
