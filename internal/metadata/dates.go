package metadata

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"january":   time.January,
	"jan":       time.January,
	"february":  time.February,
	"feb":       time.February,
	"march":     time.March,
	"mar":       time.March,
	"april":     time.April,
	"apr":       time.April,
	"may":       time.May,
	"june":      time.June,
	"jun":       time.June,
	"july":      time.July,
	"jul":       time.July,
	"august":    time.August,
	"aug":       time.August,
	"september": time.September,
	"sep":       time.September,
	"sept":      time.September,
	"october":   time.October,
	"oct":       time.October,
	"november":  time.November,
	"nov":       time.November,
	"december":  time.December,
	"dec":       time.December,
}

func isMonth(w string) bool {
	_, ok := monthNames[w]
	return ok
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

var quarterWords = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}

type datePattern struct {
	re    *regexp.Regexp
	build func(groups []string) (DateRef, bool)
}

// Patterns run most specific first; each match masks its span so later, looser
// patterns cannot reinterpret it.
var datePatterns = []datePattern{
	{
		re: regexp.MustCompile(`\b(?:(by|before|on)\s+)?(\d{4})-(\d{2})-(\d{2})\b`),
		build: func(g []string) (DateRef, bool) {
			y, _ := strconv.Atoi(g[2])
			mo, _ := strconv.Atoi(g[3])
			d, _ := strconv.Atoi(g[4])
			if mo < 1 || mo > 12 || d < 1 || d > 31 {
				return DateRef{}, false
			}
			return exactDate(g[1], y, time.Month(mo), d), true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before|on)\s+)?(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		build: func(g []string) (DateRef, bool) {
			d, _ := strconv.Atoi(g[3])
			y, _ := strconv.Atoi(g[4])
			if d < 1 || d > 31 {
				return DateRef{}, false
			}
			return exactDate(g[1], y, monthNames[g[2]], d), true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before)\s+)?(?:the\s+)?end\s+of\s+(` + monthAlt + `),?\s+(\d{4})\b`),
		build: func(g []string) (DateRef, bool) {
			y, _ := strconv.Atoi(g[3])
			return DateRef{Kind: DateDeadline, Date: endOfMonth(y, monthNames[g[2]])}, true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before)\s+)?(?:the\s+)?end\s+of\s+(?:the\s+)?(?:year\s+)?(\d{4})\b`),
		build: func(g []string) (DateRef, bool) {
			y, _ := strconv.Atoi(g[2])
			return DateRef{Kind: DateDeadline, Date: endOfMonth(y, time.December)}, true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before|in|during)\s+)?(?:the\s+)?(?:q([1-4])|(first|second|third|fourth)\s+quarter(?:\s+of)?)\s+(\d{4})\b`),
		build: func(g []string) (DateRef, bool) {
			q, _ := strconv.Atoi(g[2])
			if q == 0 {
				q = quarterWords[g[3]]
			}
			y, _ := strconv.Atoi(g[4])
			startMonth := time.Month((q-1)*3 + 1)
			return periodDate(g[1], y, startMonth, endOfMonth(y, startMonth+2)), true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before|in|during)\s+)?(` + monthAlt + `),?\s+(\d{4})\b`),
		build: func(g []string) (DateRef, bool) {
			y, _ := strconv.Atoi(g[3])
			mo := monthNames[g[2]]
			return periodDate(g[1], y, mo, endOfMonth(y, mo)), true
		},
	},
	{
		re: regexp.MustCompile(`\b(?:(by|before|in|during)\s+)?(20\d{2})\b`),
		build: func(g []string) (DateRef, bool) {
			y, _ := strconv.Atoi(g[2])
			return periodDate(g[1], y, time.January, endOfMonth(y, time.December)), true
		},
	},
}

func exactDate(prep string, y int, mo time.Month, d int) DateRef {
	date := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	switch prep {
	case "by":
		return DateRef{Kind: DateDeadline, Date: date}
	case "before":
		return DateRef{Kind: DateDeadline, Date: date.AddDate(0, 0, -1)}
	default:
		return DateRef{Kind: DateEvent, Date: date}
	}
}

// periodDate resolves a month, quarter or year expression. "by" means the end
// of the period, "before" the day before it starts, anything else is a range
// ending with the period.
func periodDate(prep string, y int, startMonth time.Month, end time.Time) DateRef {
	switch prep {
	case "by":
		return DateRef{Kind: DateDeadline, Date: end}
	case "before":
		start := time.Date(y, startMonth, 1, 0, 0, 0, 0, time.UTC)
		return DateRef{Kind: DateDeadline, Date: start.AddDate(0, 0, -1)}
	default:
		return DateRef{Kind: DateRange, Date: end}
	}
}

func endOfMonth(y int, mo time.Month) time.Time {
	return time.Date(y, mo+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

type positionedDate struct {
	start int
	ref   DateRef
}

// extractDates returns the date expressions in title ordered by position, and
// the lower-cased title with those spans blanked out.
func extractDates(title string) ([]DateRef, string) {
	lower := strings.ToLower(title)
	masked := lower
	var found []positionedDate
	for _, p := range datePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(masked, -1) {
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = masked[idx[2*i]:idx[2*i+1]]
				}
			}
			ref, ok := p.build(groups)
			if !ok {
				continue
			}
			ref.Text = strings.TrimSpace(lower[idx[0]:idx[1]])
			found = append(found, positionedDate{start: idx[0], ref: ref})
		}
		masked = p.re.ReplaceAllStringFunc(masked, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	out := make([]DateRef, 0, len(found))
	for _, f := range found {
		out = append(out, f.ref)
	}
	return out, masked
}
