package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/crossarb/internal/logging"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

// newDBCmd groups the sqlite maintenance commands.
func newDBCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the sqlite store",
	}
	actions := []struct {
		use, short string
		run        func(cmd *cobra.Command, s *sqlstore.Store) error
	}{
		{"create", "Create tables if they do not exist", func(cmd *cobra.Command, s *sqlstore.Store) error {
			return s.CreateTables(cmd.Context())
		}},
		{"clear", "Delete every row, keeping the schema", func(cmd *cobra.Command, s *sqlstore.Store) error {
			return s.ClearTables(cmd.Context())
		}},
		{"drop", "Drop every table", func(cmd *cobra.Command, s *sqlstore.Store) error {
			return s.DropTables(cmd.Context())
		}},
		{"recent", "Print recent opportunities and closed monitor records", printRecent},
	}
	for _, a := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				store, err := sqlstore.Open(cfg.SQLite.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := a.run(cmd, store); err != nil {
					return fmt.Errorf("db %s: %w", a.use, err)
				}
				logging.Infof("[db] %s ok (%s)", a.use, store.Path())
				return nil
			},
		})
	}
	return cmd
}

func printRecent(cmd *cobra.Command, s *sqlstore.Store) error {
	ctx := cmd.Context()
	opps, err := s.RecentOpportunities(ctx, 20)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "recent opportunities:")
	for _, o := range opps {
		fmt.Fprintf(out, "  %s %s net=%.2f%% gross=%.2f%% grade=%s\n",
			o.Timestamp.Format("2006-01-02 15:04:05"), o.PairID, o.NetProfitPct*100, o.GrossProfitPct*100, o.Confidence.Grade)
	}
	closed, err := s.ClosedOpportunities(ctx, 20)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "closed monitor records:")
	for _, t := range closed {
		fmt.Fprintf(out, "  %s %s peak=%.2f%% open=%s reason=%s\n",
			t.ClosedAt.Format("2006-01-02 15:04:05"), t.ID, t.PeakProfit*100, t.ClosedAt.Sub(t.FirstSeen).Round(time.Second), t.CloseReason)
	}
	return nil
}
