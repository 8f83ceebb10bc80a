package equivalence

import (
	"math"
	"strings"

	"github.com/hetulpatel/crossarb/internal/metadata"
)

// TitleSimilarity blends the normalized longest-common-substring ratio (40%)
// with token Jaccard similarity (60%).
func TitleSimilarity(a, b string) float64 {
	na, nb := metadata.NormalizeTitle(a), metadata.NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return 0.4*lcsRatio(na, nb) + 0.6*tokenJaccard(na, nb)
}

func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := math.Max(float64(len(ra)), float64(len(rb)))
	if longest == 0 {
		return 0
	}
	return float64(longestCommonSubstring(ra, rb)) / longest
}

func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

func tokenJaccard(a, b string) float64 {
	set := func(s string) map[string]bool {
		out := make(map[string]bool)
		for _, tok := range strings.Fields(s) {
			out[tok] = true
		}
		return out
	}
	return jaccard(set(a), set(b))
}

var (
	identityBinary = map[string]string{"yes": "yes", "no": "no"}
	invertedBinary = map[string]string{"yes": "no", "no": "yes"}
)

func isYesNo(labels []string) bool {
	if len(labels) != 2 {
		return false
	}
	return (labels[0] == "yes" && labels[1] == "no") || (labels[0] == "no" && labels[1] == "yes")
}

// outcomeAlignment compares outcome shapes. Binary yes/no markets align fully;
// the mapping is inverted when exactly one title is phrased negatively.
func outcomeAlignment(a, b metadata.MarketMetadata) (float64, OutcomeMapping) {
	if a.OutcomeType != b.OutcomeType {
		return 0, OutcomeMapping{AToB: map[string]string{}, BToA: map[string]string{}}
	}
	if a.OutcomeType == metadata.OutcomeBinary && isYesNo(a.Outcomes) && isYesNo(b.Outcomes) {
		if a.Negated != b.Negated {
			return 1, OutcomeMapping{AToB: copyMap(invertedBinary), BToA: copyMap(invertedBinary), IsInverted: true}
		}
		return 1, OutcomeMapping{AToB: copyMap(identityBinary), BToA: copyMap(identityBinary)}
	}

	setA := make(map[string]bool, len(a.Outcomes))
	for _, l := range a.Outcomes {
		setA[l] = true
	}
	setB := make(map[string]bool, len(b.Outcomes))
	for _, l := range b.Outcomes {
		setB[l] = true
	}
	mapping := OutcomeMapping{AToB: map[string]string{}, BToA: map[string]string{}}
	for l := range setA {
		if setB[l] {
			mapping.AToB[l] = l
			mapping.BToA[l] = l
		}
	}
	countRatio := 0.0
	if n := math.Max(float64(len(a.Outcomes)), float64(len(b.Outcomes))); n > 0 {
		countRatio = math.Min(float64(len(a.Outcomes)), float64(len(b.Outcomes))) / n
	}
	return jaccard(setA, setB) * countRatio, mapping
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
