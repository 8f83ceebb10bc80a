package arb

import (
	"github.com/hetulpatel/crossarb/internal/equivalence"
	"github.com/hetulpatel/crossarb/internal/markets"
)

// Hedge is the cheaper of the two cross-platform hedges for aligned YES prices.
type Hedge struct {
	YesA           float64
	YesB           float64
	Cost           float64
	GrossProfitPct float64
	// BuyYesOnA is true for YES@A + NO@B and false for YES@B + NO@A.
	BuyYesOnA bool
}

// Profitable reports whether the guaranteed payout exceeds the cost.
func (h Hedge) Profitable() bool { return h.Cost < 1-epsilon }

// ComputeHedge prices both hedges. Payout is always one unit.
func ComputeHedge(yesA, yesB float64) Hedge {
	cost1 := yesA + (1 - yesB)
	cost2 := yesB + (1 - yesA)
	h := Hedge{YesA: yesA, YesB: yesB, Cost: cost1, BuyYesOnA: true}
	if cost2 < cost1 {
		h.Cost = cost2
		h.BuyYesOnA = false
	}
	h.GrossProfitPct = 1 - h.Cost
	return h
}

// AlignedYes returns the YES prices of a and b with b's polarity translated
// into a's outcome space.
func AlignedYes(mapping equivalence.OutcomeMapping, a, b markets.Market) (float64, float64, error) {
	yesA := a.Mid(markets.SideYes)
	yesB := b.Mid(markets.SideYes)
	if !validPrice(yesA) {
		return 0, 0, missingPrice(a)
	}
	if !validPrice(yesB) {
		return 0, 0, missingPrice(b)
	}
	if mapping.IsInverted {
		yesB = 1 - yesB
	}
	return yesA, yesB, nil
}

// HedgeFor is the shared entry point used by both the calculator and the
// monitor.
func HedgeFor(mapping equivalence.OutcomeMapping, a, b markets.Market) (Hedge, error) {
	yesA, yesB, err := AlignedYes(mapping, a, b)
	if err != nil {
		return Hedge{}, err
	}
	return ComputeHedge(yesA, yesB), nil
}

// physicalSide maps an aligned side on market B to the token actually traded.
func physicalSide(aligned markets.Side, inverted bool) markets.Side {
	if inverted {
		return aligned.Opposite()
	}
	return aligned
}

func validPrice(p float64) bool {
	return p > epsilon && p < 1-epsilon
}
