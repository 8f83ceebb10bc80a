package arb

import (
	"math"
	"sort"

	"github.com/hetulpatel/crossarb/internal/config"
)

// FeeSchedule prices taker fees for one platform.
type FeeSchedule struct {
	Model          string
	TakerRate      float64
	Coefficient    float64
	SettlementRate float64
	Tiers          []config.FeeTier
}

func ScheduleFromVenue(v config.Venue) FeeSchedule {
	tiers := append([]config.FeeTier(nil), v.VolumeTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinVolumeUSD < tiers[j].MinVolumeUSD })
	return FeeSchedule{
		Model:          v.FeeModel,
		TakerRate:      v.TakerFeeRate,
		Coefficient:    v.ParabolicCoefficient,
		SettlementRate: v.SettlementFeeRate,
		Tiers:          tiers,
	}
}

// PerContract returns the fee for buying one contract at price, before rounding.
func (f FeeSchedule) PerContract(price, volumeUSD float64) float64 {
	var raw float64
	switch f.Model {
	case config.FeeModelParabolic:
		coeff := f.Coefficient
		if coeff <= 0 {
			coeff = 0.07
		}
		raw = coeff * price * (1 - price)
	default:
		raw = f.TakerRate * price
	}
	return raw * (1 - f.discount(volumeUSD))
}

// OrderFee returns the fee for a whole order. Parabolic venues charge whole
// cents, rounded up.
func (f FeeSchedule) OrderFee(contracts, price, volumeUSD float64) float64 {
	raw := contracts * f.PerContract(price, volumeUSD)
	if f.Model == config.FeeModelParabolic {
		return math.Ceil(raw*100-epsilon) / 100
	}
	return raw
}

// discount picks the highest tier the market's volume reaches.
func (f FeeSchedule) discount(volumeUSD float64) float64 {
	d := 0.0
	for _, t := range f.Tiers {
		if volumeUSD >= t.MinVolumeUSD {
			d = t.Discount
		}
	}
	return math.Max(0, math.Min(1, d))
}
