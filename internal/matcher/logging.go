package matcher

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

type LogMode int

const (
	LogModeQuiet LogMode = iota
	LogModeSummary
	LogModeVerbose
)

func ParseLogMode(input string) LogMode {
	switch strings.ToLower(input) {
	case "summary":
		return LogModeSummary
	case "verbose":
		return LogModeVerbose
	default:
		return LogModeQuiet
	}
}

// Logger reports accepted pairs. When path is set every match is also
// appended to that file as indented JSON.
type Logger struct {
	mode LogMode
	path string
	mu   sync.Mutex
}

func NewLogger(mode LogMode, path string) *Logger {
	return &Logger{mode: mode, path: path}
}

func (l *Logger) Enabled() bool {
	return l != nil && l.mode != LogModeQuiet
}

func (l *Logger) LogMatch(pair *matches.ValidatedMarketPair, threshold float64) {
	if !l.Enabled() || pair == nil {
		return
	}
	eq := pair.Equivalence
	switch l.mode {
	case LogModeSummary:
		logging.Infof("[matcher] matched %s (%s) -> %s (%s) score=%.4f title=%.4f threshold=%.4f",
			pair.MarketA.Platform, safeTitle(pair.MarketA.Title, pair.MarketA.MarketID),
			pair.MarketB.Platform, safeTitle(pair.MarketB.Title, pair.MarketB.MarketID),
			eq.OverallScore, eq.TitleSimilarity, threshold)
	case LogModeVerbose:
		data, _ := json.MarshalIndent(pair, "", "  ")
		logging.Infof("[matcher] match pair=%s score=%.4f threshold=%.4f\n%s", pair.PairID, eq.OverallScore, threshold, string(data))
	}
	l.appendToFile(pair, threshold)
}

func safeTitle(title, id string) string {
	if title != "" {
		return title
	}
	return id
}

func (l *Logger) appendToFile(pair *matches.ValidatedMarketPair, threshold float64) {
	if l.path == "" {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"score":     pair.Equivalence.OverallScore,
		"threshold": threshold,
		"pair_id":   pair.PairID,
		"market_a":  pair.MarketA,
		"market_b":  pair.MarketB,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		logging.Errorf("[matcher] log file marshal error: %v", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Errorf("[matcher] log file open error: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Errorf("[matcher] log file write error: %v", err)
	}
}
