package arb

import (
	"math"
	"sort"

	"github.com/hetulpatel/crossarb/internal/markets"
)

const epsilon = 1e-9

type askIterator struct {
	levels []markets.OrderbookLevel
	idx    int
	walked int
}

func newAskIterator(levels []markets.OrderbookLevel) *askIterator {
	copied := make([]markets.OrderbookLevel, len(levels))
	copy(copied, levels)
	sort.Slice(copied, func(i, j int) bool {
		return copied[i].Price < copied[j].Price
	})
	return &askIterator{levels: copied}
}

func (it *askIterator) peekQty() float64 {
	for it.idx < len(it.levels) {
		if qty := it.levels[it.idx].Quantity; qty > epsilon {
			return qty
		}
		it.idx++
	}
	return 0
}

func (it *askIterator) peekPrice() float64 {
	for it.idx < len(it.levels) {
		if qty := it.levels[it.idx].Quantity; qty > epsilon {
			return it.levels[it.idx].Price
		}
		it.idx++
	}
	return 0
}

// take consumes up to q contracts from the current level and returns the
// filled quantity and its cost.
func (it *askIterator) take(q float64) (float64, float64) {
	for it.idx < len(it.levels) {
		lvl := &it.levels[it.idx]
		if lvl.Quantity <= epsilon {
			it.idx++
			continue
		}
		filled := math.Min(q, lvl.Quantity)
		lvl.Quantity -= filled
		cost := filled * lvl.Price
		if lvl.Quantity <= epsilon {
			it.idx++
			it.walked++
		}
		return filled, cost
	}
	return 0, 0
}

// fill is the outcome of walking an ask ladder for a fixed quantity.
type fill struct {
	Contracts float64
	AvgPrice  float64
	BestAsk   float64
	Levels    int
	Complete  bool
}

// walkAsks buys qty contracts against the ladder. When the book runs out the
// remainder is priced at the last level plus penalty.
func walkAsks(levels []markets.OrderbookLevel, qty, penalty float64) fill {
	it := newAskIterator(levels)
	out := fill{BestAsk: it.peekPrice()}
	if qty <= epsilon || out.BestAsk <= epsilon {
		return out
	}
	remaining := qty
	cost := 0.0
	last := out.BestAsk
	for remaining > epsilon {
		if it.peekQty() <= epsilon {
			break
		}
		last = it.peekPrice()
		filled, c := it.take(remaining)
		if filled <= epsilon {
			break
		}
		remaining -= filled
		cost += c
	}
	out.Levels = it.walked + 1
	out.Complete = remaining <= epsilon
	if !out.Complete {
		cost += remaining * math.Min(1, last+penalty)
	}
	out.Contracts = qty
	out.AvgPrice = cost / qty
	return out
}

// depthWithin sums the contracts resting at or below best ask plus deviation.
func depthWithin(levels []markets.OrderbookLevel, deviation float64) float64 {
	it := newAskIterator(levels)
	best := it.peekPrice()
	if best <= epsilon {
		return 0
	}
	limit := best + deviation + epsilon
	total := 0.0
	for _, lvl := range it.levels {
		if lvl.Price > limit {
			break
		}
		if lvl.Quantity > epsilon {
			total += lvl.Quantity
		}
	}
	return total
}
