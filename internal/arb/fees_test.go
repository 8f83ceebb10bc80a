package arb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/markets"
)

func TestParabolicFeeRoundsUpToCents(t *testing.T) {
	f := FeeSchedule{Model: config.FeeModelParabolic, Coefficient: 0.07}
	assert.InDelta(t, 0.0175, f.PerContract(0.5, 0), 1e-12)
	assert.InDelta(t, 0.18, f.OrderFee(10, 0.5, 0), 1e-12)
	assert.InDelta(t, 1.75, f.OrderFee(100, 0.5, 0), 1e-12)
	assert.InDelta(t, 0.01, f.OrderFee(1, 0.05, 0), 1e-12)
}

func TestFlatFeeWithVolumeTiers(t *testing.T) {
	f := ScheduleFromVenue(config.Venue{
		FeeModel:     config.FeeModelFlat,
		TakerFeeRate: 0.02,
		VolumeTiers: []config.FeeTier{
			{MinVolumeUSD: 100000, Discount: 0.5},
			{MinVolumeUSD: 10000, Discount: 0.25},
		},
	})
	assert.InDelta(t, 0.01, f.PerContract(0.5, 0), 1e-12)
	assert.InDelta(t, 0.0075, f.PerContract(0.5, 20000), 1e-12)
	assert.InDelta(t, 0.005, f.PerContract(0.5, 200000), 1e-12)
	assert.InDelta(t, 0.5, f.OrderFee(100, 0.5, 200000), 1e-12)
}

func TestWalkAsks(t *testing.T) {
	levels := []markets.OrderbookLevel{
		{Price: 0.55, Quantity: 10},
		{Price: 0.50, Quantity: 10},
		{Price: 0.52, Quantity: 0},
	}
	f := walkAsks(levels, 15, 0.02)
	assert.True(t, f.Complete)
	assert.InDelta(t, 0.50, f.BestAsk, 1e-12)
	assert.InDelta(t, (10*0.50+5*0.55)/15, f.AvgPrice, 1e-12)

	f = walkAsks(levels, 30, 0.02)
	assert.False(t, f.Complete)
	assert.InDelta(t, (10*0.50+10*0.55+10*0.57)/30, f.AvgPrice, 1e-12)

	assert.Equal(t, fill{}, walkAsks(nil, 10, 0.02))
	assert.Len(t, levels, 3)
	assert.Equal(t, 10.0, levels[0].Quantity, "walk must not mutate the caller's book")
}

func TestDepthWithin(t *testing.T) {
	levels := []markets.OrderbookLevel{
		{Price: 0.40, Quantity: 100},
		{Price: 0.42, Quantity: 50},
		{Price: 0.43, Quantity: 75},
	}
	assert.InDelta(t, 150, depthWithin(levels, 0.02), 1e-9)
	assert.InDelta(t, 225, depthWithin(levels, 0.05), 1e-9)
	assert.Zero(t, depthWithin(nil, 0.02))
}
