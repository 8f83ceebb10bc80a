package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/crossarb/internal/alerts"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/scanner"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

func newScanCmd(root *rootFlags) *cobra.Command {
	var (
		query        string
		platforms    []string
		minGrade     string
		maxOpps      int
		record       bool
		publish      bool
		compact      bool
		text         bool
		matchLog     string
		matchLogFile string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one full scan and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if !cmd.Flags().Changed("query") {
				query = cfg.Scanner.Query
			}
			if !cmd.Flags().Changed("platforms") {
				platforms = cfg.Scanner.Platforms
			}
			if !cmd.Flags().Changed("min-grade") {
				minGrade = cfg.Scanner.MinConfidenceGrade
			}
			if !cmd.Flags().Changed("max") {
				maxOpps = cfg.Scanner.MaxOpportunities
			}

			mlog := matcher.NewLogger(matcher.ParseLogMode(matchLog), matchLogFile)
			s, err := scanner.New(scanner.Config{
				Provider:       newProvider(cfg),
				Calculator:     newCalculator(cfg),
				Matcher:        matcherConfig(cfg, cfg.Arbitrage.MinEquivalenceScore, cfg.Arbitrage.MinTitleSimilarity, mlog),
				Metrics:        metrics.New(),
				LowMarketCount: cfg.Scanner.LowMarketCountWarning,
				LowEquivalence: cfg.Scanner.LowEquivalenceWarning,
			})
			if err != nil {
				return err
			}

			res := s.ScanForArbitrage(ctx, scanner.Options{
				Query:              query,
				Platforms:          platformsOf(platforms),
				MinConfidenceGrade: matches.ParseGrade(minGrade),
				MaxOpportunities:   maxOpps,
				FetchTimeout:       cfg.Scanner.FetchTimeout,
			})

			opps := make([]matches.Opportunity, 0, len(res.Opportunities))
			for _, o := range res.Opportunities {
				opps = append(opps, *o)
			}
			if record {
				if err := recordScan(cmd, cfg.SQLite.Path, opps, res); err != nil {
					logging.Errorf("[scan] sqlite: %v", err)
				}
			}
			if publish && len(opps) > 0 {
				pub := kafka.NewPublisher(kafka.Brokers(cfg.Kafka.Brokers), cfg.Kafka.Topic)
				if err := pub.PublishOpportunities(ctx, opps); err != nil {
					logging.Errorf("[scan] kafka: %v", err)
				}
				_ = pub.Close()
			}

			if text {
				printText(cmd, res)
			} else {
				enc := json.NewEncoder(cmd.OutOrStdout())
				if !compact {
					enc.SetIndent("", "  ")
				}
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			}
			if !res.Success {
				return fmt.Errorf("scan failed: no platform could be fetched")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&query, "query", "q", "", "search query passed to every platform")
	f.StringSliceVarP(&platforms, "platforms", "p", nil, "platforms to scan (default from config)")
	f.StringVar(&minGrade, "min-grade", "C", "minimum confidence grade (A-F)")
	f.IntVar(&maxOpps, "max", 20, "maximum opportunities to return")
	f.BoolVar(&record, "record", false, "store fetched markets and opportunities in sqlite")
	f.BoolVar(&publish, "publish", false, "publish opportunities to kafka")
	f.BoolVar(&compact, "compact", false, "print compact JSON")
	f.BoolVar(&text, "text", false, "print opportunities as plain text instead of JSON")
	f.StringVar(&matchLog, "match-log", "quiet", "log accepted matches (quiet|summary|verbose)")
	f.StringVar(&matchLogFile, "match-log-file", "", "append accepted matches to this file")
	return cmd
}

func printText(cmd *cobra.Command, res scanner.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d markets, %d validated pairs, %d opportunities (%d filtered) in %dms\n",
		res.TotalMarkets, res.PairsValidated, len(res.Opportunities), res.FilteredCount, res.DurationMs)
	for _, opp := range res.Opportunities {
		fmt.Fprintf(out, "\n%s\n", alerts.FormatOpportunity(opp))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
}

func recordScan(cmd *cobra.Command, path string, opps []matches.Opportunity, res scanner.Result) error {
	store, err := sqlstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()
	if err := store.CreateTables(ctx); err != nil {
		return err
	}
	var seen []markets.Market
	for _, p := range res.Pairs {
		seen = append(seen, p.MarketA, p.MarketB)
	}
	if err := store.UpsertMarkets(ctx, seen); err != nil {
		return err
	}
	return store.InsertOpportunities(ctx, opps)
}
