package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/monitor"
	"github.com/hetulpatel/crossarb/internal/registry"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

func newMonitorCmd(root *rootFlags) *cobra.Command {
	var (
		record       bool
		statusEvery  time.Duration
		matchLogFile string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch matched pairs and alert on live opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if statusEvery <= 0 {
				return fmt.Errorf("--status-every must be positive, got %s", statusEvery)
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			m := metrics.New()
			if cfg.Metrics.Enabled {
				serveMetrics(ctx, cfg.Metrics.Addr, m)
			}

			prov := newProvider(cfg)
			reg, err := registry.New(registry.Config{
				Provider:        prov,
				Matcher:         matcherConfig(cfg, cfg.Registry.MinEquivalenceScore, cfg.Registry.MinTitleSimilarity, matcherLog(matchLogFile)),
				Query:           cfg.Registry.Query,
				Platforms:       platformsOf(cfg.Registry.Platforms),
				FetchTimeout:    cfg.Scanner.FetchTimeout,
				RefreshInterval: cfg.Registry.RefreshInterval,
				Metrics:         m,
			})
			if err != nil {
				return err
			}

			dedup, closeDedup, err := newDeduplicator(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDedup()

			out, closeSinks, err := sinks(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSinks()

			mcfg := monitor.Config{
				Pairs:             reg,
				Provider:          prov,
				Dedup:             dedup,
				Sinks:             out,
				Channels:          cfg.Monitor.AlertChannels,
				Metrics:           m,
				Interval:          cfg.Monitor.Interval,
				RefreshInterval:   cfg.Registry.RefreshInterval,
				FetchTimeout:      cfg.Scanner.FetchTimeout,
				AlertThreshold:    cfg.Monitor.AlertThresholdPct,
				HistoryLimit:      cfg.Monitor.HistoryLimit,
				PriceHistoryLimit: cfg.Monitor.PriceHistoryLimit,
				SourceTag:         cfg.Monitor.SourceTag,
				Query:             cfg.Registry.Query,
				QuoteQueryLimit:   cfg.Monitor.QuoteQueryLimit,
			}
			if record {
				store, err := sqlstore.Open(cfg.SQLite.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.CreateTables(ctx); err != nil {
					return err
				}
				mcfg.Recorder = store
			}

			mon, err := monitor.New(mcfg)
			if err != nil {
				return err
			}
			if err := mon.Start(ctx); err != nil {
				return err
			}

			ticker := time.NewTicker(statusEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					logging.Infof("[monitor] shutting down")
					mon.Stop()
					return nil
				case <-ticker.C:
					st := mon.Status()
					logging.Infof("[monitor] scans=%d active=%d found=%d alerts=%d registry=%d errors=%d",
						st.ScanCount, len(st.ActiveOpportunities), st.OpportunitiesFound, st.AlertsSent, st.RegistrySize, len(st.Errors))
				}
			}
		},
	}
	f := cmd.Flags()
	f.BoolVar(&record, "record", true, "store closed opportunities in sqlite")
	f.DurationVar(&statusEvery, "status-every", 5*time.Minute, "interval between status log lines")
	f.StringVar(&matchLogFile, "match-log-file", "", "append registry matches to this file")
	return cmd
}
