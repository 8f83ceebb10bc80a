package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/monitor"
)

// InsertOpportunities stores scan results. Re-inserting an id, or the same
// market pair at the same detection time, is a no-op.
func (s *Store) InsertOpportunities(ctx context.Context, opps []matches.Opportunity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if len(opps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO arb_opportunities (
	id, pair_id, detected_at, market_a, market_b, market_digest,
	gross_profit_pct, net_profit_pct, total_costs,
	recommended_size_usd, expected_profit_usd,
	risk_score, is_safe, confidence_score, grade,
	legs_json, raw_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, opp := range opps {
		legsJSON, err := json.Marshal(opp.Strategy.Legs)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal legs: %w", err)
		}
		rawJSON, err := json.Marshal(opp)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal opportunity: %w", err)
		}
		var marketA, marketB string
		var digest sql.NullString
		if opp.Pair != nil {
			marketA, marketB = opp.Pair.MarketA.Key(), opp.Pair.MarketB.Key()
			digest = sql.NullString{String: matches.MarketKeyDigest(opp.Pair.MarketA, opp.Pair.MarketB), Valid: true}
		}
		_, err = stmt.ExecContext(
			ctx,
			opp.ID,
			opp.PairID,
			formatTime(opp.Timestamp),
			marketA,
			marketB,
			digest,
			opp.GrossProfitPct,
			opp.NetProfitPct,
			opp.TotalCosts.Total,
			opp.Execution.RecommendedSizeUSD,
			opp.Execution.ExpectedProfitUSD,
			opp.Risk.OverallRiskScore,
			opp.Risk.IsSafe,
			opp.Confidence.Score,
			string(opp.Confidence.Grade),
			string(legsJSON),
			string(rawJSON),
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentOpportunities returns stored opportunities, newest first.
func (s *Store) RecentOpportunities(ctx context.Context, limit int) ([]matches.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT raw_json FROM arb_opportunities
ORDER BY detected_at DESC, id
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matches.Opportunity
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var opp matches.Opportunity
		if err := json.Unmarshal([]byte(raw), &opp); err != nil {
			return nil, fmt.Errorf("decode opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

// RecordClosed implements monitor.Recorder.
func (s *Store) RecordClosed(ctx context.Context, t monitor.TrackedOpportunity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	historyJSON, err := json.Marshal(t.PriceHistory)
	if err != nil {
		return fmt.Errorf("marshal price history: %w", err)
	}
	marketA, err := json.Marshal(t.MarketA)
	if err != nil {
		return err
	}
	marketB, err := json.Marshal(t.MarketB)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tracked_opportunities (
	pair_id, first_seen, last_seen, closed_at, close_reason,
	market_a, market_b, peak_profit, last_profit, alert_sent, price_history_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pair_id, first_seen) DO UPDATE SET
	last_seen=excluded.last_seen,
	closed_at=excluded.closed_at,
	close_reason=excluded.close_reason,
	peak_profit=excluded.peak_profit,
	last_profit=excluded.last_profit,
	alert_sent=excluded.alert_sent,
	price_history_json=excluded.price_history_json`,
		t.ID,
		formatTime(t.FirstSeen),
		formatTime(t.LastSeen),
		formatTime(t.ClosedAt),
		t.CloseReason,
		string(marketA),
		string(marketB),
		t.PeakProfit,
		t.CurrentProfit,
		t.AlertSent,
		string(historyJSON),
	)
	return err
}

// ClosedOpportunities returns closed monitor records, most recently closed
// first.
func (s *Store) ClosedOpportunities(ctx context.Context, limit int) ([]monitor.TrackedOpportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT pair_id, first_seen, last_seen, closed_at, close_reason,
	market_a, market_b, peak_profit, last_profit, alert_sent, price_history_json
FROM tracked_opportunities
ORDER BY closed_at DESC, pair_id
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []monitor.TrackedOpportunity
	for rows.Next() {
		var (
			t                             monitor.TrackedOpportunity
			firstSeen, lastSeen, closedAt string
			marketA, marketB, historyJSON string
		)
		if err := rows.Scan(&t.ID, &firstSeen, &lastSeen, &closedAt, &t.CloseReason,
			&marketA, &marketB, &t.PeakProfit, &t.CurrentProfit, &t.AlertSent, &historyJSON); err != nil {
			return nil, err
		}
		t.FirstSeen, t.LastSeen, t.ClosedAt = parseTime(firstSeen), parseTime(lastSeen), parseTime(closedAt)
		t.Status = monitor.StatusClosed
		if err := json.Unmarshal([]byte(marketA), &t.MarketA); err != nil {
			return nil, fmt.Errorf("decode market_a: %w", err)
		}
		if err := json.Unmarshal([]byte(marketB), &t.MarketB); err != nil {
			return nil, fmt.Errorf("decode market_b: %w", err)
		}
		if historyJSON != "" && historyJSON != "null" {
			if err := json.Unmarshal([]byte(historyJSON), &t.PriceHistory); err != nil {
				return nil, fmt.Errorf("decode price history: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
