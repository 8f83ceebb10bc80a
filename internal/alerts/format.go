package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// Alert is the monitor's view of a live opportunity.
type Alert struct {
	PairID    string
	TitleA    string
	TitleB    string
	PlatformA string
	PlatformB string
	URLA      string
	URLB      string
	Action    string
	ProfitPct float64
	PeakPct   float64
	FirstSeen time.Time
	LastSeen  time.Time
}

// FormatOpportunity renders a scan opportunity as plain text.
func FormatOpportunity(opp *matches.Opportunity) string {
	if opp == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Arbitrage %s (grade %s)\n", opp.PairID, opp.Confidence.Grade)
	fmt.Fprintf(&b, "Net %.2f%% | Gross %.2f%% | Costs %.2f%%\n",
		opp.NetProfitPct*100, opp.GrossProfitPct*100, opp.TotalCosts.Total*100)
	for i, leg := range opp.Strategy.Legs {
		fmt.Fprintf(&b, "%d. %s %s on %s @ %.3f: %s\n", i+1, leg.Action, strings.ToUpper(string(leg.Side)),
			leg.Platform, leg.ExecutablePrice.Ask, leg.Title)
	}
	fmt.Fprintf(&b, "Size $%.2f (max $%.2f), expected profit $%.2f\n",
		opp.Execution.RecommendedSizeUSD, opp.Execution.MaxSizeUSD, opp.Execution.ExpectedProfitUSD)
	fmt.Fprintf(&b, "Risk %.0f/100", opp.Risk.OverallRiskScore)
	if !opp.Risk.IsSafe {
		b.WriteString(" (UNSAFE)")
	}
	for _, f := range opp.Risk.Flags {
		if f.Level == matches.FlagInfo {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] %s", f.Level, f.Message)
	}
	return b.String()
}

// FormatAlert renders a monitor alert as plain text.
func FormatAlert(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Arbitrage live: %.2f%% (peak %.2f%%)\n", a.ProfitPct, a.PeakPct)
	if a.Action != "" {
		fmt.Fprintf(&b, "%s\n", a.Action)
	}
	fmt.Fprintf(&b, "%s: %s\n", a.PlatformA, a.TitleA)
	fmt.Fprintf(&b, "%s: %s\n", a.PlatformB, a.TitleB)
	for _, u := range []string{a.URLA, a.URLB} {
		if u != "" {
			fmt.Fprintf(&b, "%s\n", u)
		}
	}
	fmt.Fprintf(&b, "Pair %s, first seen %s", a.PairID, a.FirstSeen.UTC().Format(time.RFC3339))
	return b.String()
}
