package arb

import (
	"errors"
	"fmt"

	"github.com/hetulpatel/crossarb/internal/markets"
)

// ErrMissingPrice is wrapped when a leg has no usable quote.
var ErrMissingPrice = errors.New("missing price")

// CalculationError is returned when a pair cannot be priced. Callers skip the
// pair and keep going.
type CalculationError struct {
	PairID string
	Err    error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculate %s: %v", e.PairID, e.Err)
}

func (e *CalculationError) Unwrap() error { return e.Err }

func missingPrice(m markets.Market) error {
	return fmt.Errorf("%w for %s", ErrMissingPrice, m.Key())
}
