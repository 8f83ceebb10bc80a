package matches

import (
	"fmt"
	"strings"

	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/metadata"
)

// PairID builds the order-independent identifier of a market pair: both
// platforms sorted, followed by the normalized title of the market whose
// platform sorts first.
func PairID(a, b markets.Market) string {
	first, second := a, b
	if b.Platform < a.Platform || (b.Platform == a.Platform && b.MarketID < a.MarketID) {
		first, second = b, a
	}
	slug := strings.ReplaceAll(metadata.NormalizeTitle(first.Title), " ", "-")
	return fmt.Sprintf("%s:%s:%s", first.Platform, second.Platform, slug)
}

// MarketKeyDigest returns a stable digest over the sorted platform-qualified keys.
func MarketKeyDigest(a, b markets.Market) string {
	return hashutil.HashSorted(a.Key(), b.Key())
}
