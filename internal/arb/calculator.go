// Package arb prices cross-platform hedges for validated market pairs.
package arb

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matches"
)

type Config struct {
	Thresholds config.Arbitrage
	Fees       map[markets.Platform]FeeSchedule
	// OperationalRisk is the 0-100 reliability/settlement risk of each platform.
	OperationalRisk map[markets.Platform]float64
	Clock           clock.Clock
	NewID           func() string
}

// ConfigFromSettings builds calculator settings from loaded configuration.
func ConfigFromSettings(cfg *config.Config) Config {
	out := Config{
		Thresholds:      cfg.Arbitrage,
		Fees:            make(map[markets.Platform]FeeSchedule, len(cfg.Platforms)),
		OperationalRisk: make(map[markets.Platform]float64, len(cfg.Platforms)),
	}
	for name, venue := range cfg.Platforms {
		p := markets.Platform(name)
		out.Fees[p] = ScheduleFromVenue(venue)
		out.OperationalRisk[p] = venue.OperationalRisk
	}
	return out
}

// Prices carries the live market records used for one calculation. Both
// records must refer to the pair's markets.
type Prices struct {
	A markets.Market
	B markets.Market
}

// PricesFromPair uses the quotes captured when the pair was matched.
func PricesFromPair(pair matches.ValidatedMarketPair) Prices {
	return Prices{A: pair.MarketA, B: pair.MarketB}
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Fees == nil {
		cfg.Fees = map[markets.Platform]FeeSchedule{}
	}
	if cfg.OperationalRisk == nil {
		cfg.OperationalRisk = map[markets.Platform]float64{}
	}
	return &Calculator{cfg: cfg}
}

// Thresholds returns the acceptance thresholds in use.
func (c *Calculator) Thresholds() config.Arbitrage { return c.cfg.Thresholds }

// legQuote is the working state of one leg during a calculation.
type legQuote struct {
	market     markets.Market
	side       markets.Side
	target     float64
	bid        float64
	ask        float64
	book       markets.Orderbook
	hasBook    bool
	available  float64
	depthLimit float64
	fill       fill
}

func newLegQuote(m markets.Market, side markets.Side, target, deviation float64) legQuote {
	q := legQuote{
		market: m,
		side:   side,
		target: target,
		bid:    m.Bid(side),
		ask:    m.Ask(side),
		book:   m.Book(side),
	}
	if q.ask <= epsilon {
		q.ask = target
	}
	q.hasBook = len(q.book.Asks) > 0
	q.available = m.Liquidity
	if q.available <= 0 && q.hasBook {
		q.available = q.book.AskNotional()
	}
	q.depthLimit = math.Inf(1)
	if q.hasBook {
		q.depthLimit = depthWithin(q.book.Asks, deviation)
	}
	return q
}

// Analyze prices the pair at the given quotes. It returns nil without error
// when no hedge clears the profit thresholds, and a *CalculationError when a
// quote is missing.
func (c *Calculator) Analyze(pair matches.ValidatedMarketPair, prices Prices) (*matches.Opportunity, error) {
	opp, err := c.Evaluate(pair, prices)
	if err != nil || opp == nil {
		return nil, err
	}
	t := c.cfg.Thresholds
	if opp.NetProfitPct < t.MinNetProfitPct-epsilon || opp.GrossProfitPct < t.MinGrossProfitPct-epsilon {
		return nil, nil
	}
	return opp, nil
}

// Evaluate builds the full opportunity for the cheaper hedge without applying
// the profit thresholds. It returns nil when neither hedge costs less than the
// payout.
func (c *Calculator) Evaluate(pair matches.ValidatedMarketPair, prices Prices) (*matches.Opportunity, error) {
	hedge, err := HedgeFor(pair.OutcomeMapping, prices.A, prices.B)
	if err != nil {
		return nil, &CalculationError{PairID: pair.PairID, Err: err}
	}
	if !hedge.Profitable() {
		return nil, nil
	}

	t := c.cfg.Thresholds
	inverted := pair.OutcomeMapping.IsInverted
	var legA, legB legQuote
	if hedge.BuyYesOnA {
		legA = newLegQuote(prices.A, markets.SideYes, hedge.YesA, t.MaxPriceDeviation)
		legB = newLegQuote(prices.B, physicalSide(markets.SideNo, inverted), 1-hedge.YesB, t.MaxPriceDeviation)
	} else {
		legA = newLegQuote(prices.A, markets.SideNo, 1-hedge.YesA, t.MaxPriceDeviation)
		legB = newLegQuote(prices.B, physicalSide(markets.SideYes, inverted), hedge.YesB, t.MaxPriceDeviation)
	}

	exec := c.plan(hedge, &legA, &legB)
	costs := c.costs(hedge, exec, &legA, &legB)
	net := hedge.GrossProfitPct - costs.Total

	legs := []matches.Leg{c.leg(legA, exec), c.leg(legB, exec)}
	exec.ExpectedProfitUSD = 0
	if hedge.Cost > epsilon {
		exec.ExpectedProfitUSD = exec.RecommendedSizeUSD / hedge.Cost * net
	}
	if legB.available < legA.available {
		exec.LegOrder = []int{1, 0}
	} else {
		exec.LegOrder = []int{0, 1}
	}

	opp := &matches.Opportunity{
		ID:             c.cfg.NewID(),
		Timestamp:      c.cfg.Clock.Now().UTC(),
		PairID:         pair.PairID,
		Pair:           &pair,
		NetProfitPct:   net,
		GrossProfitPct: hedge.GrossProfitPct,
		TotalCosts:     costs,
		Execution:      exec,
		Strategy: matches.Strategy{
			Type:             matches.StrategyCrossPlatformSpread,
			Legs:             legs,
			GuaranteedReturn: hedge.GrossProfitPct,
			Description:      describe(legs),
		},
	}
	opp.Risk = c.assess(pair, hedge, opp, &legA, &legB)
	opp.Confidence = c.confidence(pair, opp, &legA, &legB)
	return opp, nil
}

// plan sizes the position. Contracts are bought in equal quantity on both legs,
// so one hedge contract costs hedge.Cost dollars.
func (c *Calculator) plan(hedge Hedge, legA, legB *legQuote) matches.Execution {
	t := c.cfg.Thresholds
	liquidity := math.Min(legA.available, legB.available)
	depthUSD := math.Min(legA.depthLimit, legB.depthLimit) * hedge.Cost

	recommended := math.Min(t.DefaultPositionUSD, t.MaxPositionPct*liquidity)
	recommended = math.Min(recommended, depthUSD)
	recommended = math.Max(0, math.Min(recommended, t.MaxPositionUSD))

	maxSize := math.Min(t.MaxPositionUSD, t.MaxPositionPct*liquidity)
	maxSize = math.Max(0, math.Min(maxSize, depthUSD))

	contracts := 0.0
	if hedge.Cost > epsilon {
		contracts = recommended / hedge.Cost
	}
	for _, leg := range []*legQuote{legA, legB} {
		if leg.hasBook {
			leg.fill = walkAsks(leg.book.Asks, contracts, t.MaxPriceDeviation)
		} else {
			leg.fill = fill{Contracts: contracts, AvgPrice: leg.ask, BestAsk: leg.ask, Levels: 1, Complete: true}
		}
	}

	return matches.Execution{
		RecommendedSizeUSD: recommended,
		MaxSizeUSD:         maxSize,
		MinSizeUSD:         t.MinPositionUSD,
		EstimatedTimeMs:    legLatencyMs(legA) + legLatencyMs(legB),
	}
}

// costs are per hedge contract, the same unit as the gross profit.
func (c *Calculator) costs(hedge Hedge, exec matches.Execution, legA, legB *legQuote) matches.Costs {
	var out matches.Costs
	settlement := 0.0
	for _, leg := range []*legQuote{legA, legB} {
		sched := c.schedule(leg.market.Platform)
		out.TradingFees += c.legFee(sched, leg)
		if leg.fill.BestAsk > epsilon {
			out.Slippage += math.Max(0, leg.fill.AvgPrice-leg.fill.BestAsk)
		}
		out.SpreadCost += math.Max(0, leg.ask-leg.target)
		settlement = math.Max(settlement, sched.SettlementRate)
	}
	// Exactly one leg pays out, so settlement is charged once at the worse rate.
	out.SettlementFees = settlement
	out.Total = out.TradingFees + out.Slippage + out.SpreadCost + out.SettlementFees
	return out
}

func (c *Calculator) legFee(sched FeeSchedule, leg *legQuote) float64 {
	price := leg.ask
	if leg.fill.Contracts <= epsilon {
		return sched.PerContract(price, leg.market.Volume)
	}
	return sched.OrderFee(leg.fill.Contracts, price, leg.market.Volume) / leg.fill.Contracts
}

func (c *Calculator) schedule(p markets.Platform) FeeSchedule {
	if s, ok := c.cfg.Fees[p]; ok {
		return s
	}
	return FeeSchedule{Model: config.FeeModelFlat}
}

func (c *Calculator) leg(q legQuote, exec matches.Execution) matches.Leg {
	depth := 0.0
	if q.hasBook {
		depth = q.book.AskDepth()
	}
	leg := matches.Leg{
		Platform:    q.market.Platform,
		MarketID:    q.market.MarketID,
		Title:       q.market.Title,
		URL:         q.market.URL,
		Side:        q.side,
		Action:      matches.ActionBuy,
		TargetPrice: q.target,
		ExecutablePrice: matches.ExecutablePrice{
			Bid:   q.bid,
			Ask:   q.ask,
			Depth: depth,
		},
		Fees:         c.legFee(c.schedule(q.market.Platform), &q),
		AvailableUSD: q.available,
	}
	if q.fill.BestAsk > epsilon {
		leg.EstimatedSlippage = math.Max(0, q.fill.AvgPrice-q.fill.BestAsk)
	}
	return leg
}

func describe(legs []matches.Leg) string {
	if len(legs) != 2 {
		return ""
	}
	return fmt.Sprintf("Buy %s on %s at %.3f, buy %s on %s at %.3f",
		legs[0].Side, legs[0].Platform, legs[0].ExecutablePrice.Ask,
		legs[1].Side, legs[1].Platform, legs[1].ExecutablePrice.Ask)
}

// legLatencyMs estimates order round trip per platform plus extra time for
// every additional book level walked.
func legLatencyMs(leg *legQuote) int {
	base := 1500
	switch leg.market.Platform {
	case markets.PlatformKalshi:
		base = 800
	case markets.PlatformPolymarket:
		base = 1200
	}
	if leg.fill.Levels > 1 {
		base += 250 * (leg.fill.Levels - 1)
	}
	return base
}
