package metadata

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var multipliers = map[string]float64{
	"":         1,
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
	"t":        1e12,
	"trillion": 1e12,
}

var amountPatterns = []struct {
	unit string
	re   *regexp.Regexp
}{
	{"usd", regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)\s*(k|mm|m|bn|b|t|thousand|million|billion|trillion)?\b`)},
	{"pct", regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s?(%|percent)`)},
	{"bps", regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s?(bps|basis points?)\b`)},
	{"count", regexp.MustCompile(`\b(\d[\d,]*(?:\.\d+)?)\s*(k|thousand|million|billion|trillion)\b`)},
}

// extractAmounts parses numeric thresholds from lower-cased text whose date
// expressions have already been blanked.
func extractAmounts(masked string) []Amount {
	type positioned struct {
		start int
		amt   Amount
	}
	var found []positioned
	seen := make(map[string]bool)
	for _, p := range amountPatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(masked, -1) {
			num := strings.ReplaceAll(masked[idx[2]:idx[3]], ",", "")
			value, err := strconv.ParseFloat(num, 64)
			if err != nil {
				continue
			}
			suffix := ""
			if idx[4] >= 0 {
				suffix = masked[idx[4]:idx[5]]
			}
			if mult, ok := multipliers[suffix]; ok {
				value *= mult
			}
			amt := Amount{Value: value, Unit: p.unit, Text: strings.TrimSpace(masked[idx[0]:idx[1]])}
			key := AmountKey(amt)
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, positioned{start: idx[0], amt: amt})
		}
		masked = p.re.ReplaceAllStringFunc(masked, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	out := make([]Amount, 0, len(found))
	for _, f := range found {
		out = append(out, f.amt)
	}
	return out
}

// AmountKey renders an amount as a stable "unit:value" key.
func AmountKey(a Amount) string {
	return a.Unit + ":" + strconv.FormatFloat(a.Value, 'f', -1, 64)
}
