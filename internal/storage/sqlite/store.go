// Package sqlite persists market snapshots, scan opportunities and closed
// monitor records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/markets"
)

const (
	defaultPath = "data/arb.db"
	memoryPath  = ":memory:"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == memoryPath {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures every table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DROP TABLE IF EXISTS markets;
DROP TABLE IF EXISTS arb_opportunities;
DROP TABLE IF EXISTS tracked_opportunities;`)
	return err
}

func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM markets;
DELETE FROM arb_opportunities;
DELETE FROM tracked_opportunities;`)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS markets (
	platform TEXT NOT NULL,
	market_id TEXT NOT NULL,
	title TEXT,
	description TEXT,
	category TEXT,
	url TEXT,
	close_time TEXT,
	resolution_source TEXT,
	yes_price REAL,
	no_price REAL,
	yes_bid REAL,
	yes_ask REAL,
	no_bid REAL,
	no_ask REAL,
	volume REAL,
	liquidity REAL,
	books_json TEXT,
	book_hash TEXT,
	text_hash TEXT,
	last_seen_at TEXT,
	PRIMARY KEY (platform, market_id)
);
CREATE TABLE IF NOT EXISTS arb_opportunities (
	id TEXT PRIMARY KEY,
	pair_id TEXT NOT NULL,
	detected_at TEXT NOT NULL,
	market_a TEXT,
	market_b TEXT,
	market_digest TEXT,
	gross_profit_pct REAL,
	net_profit_pct REAL,
	total_costs REAL,
	recommended_size_usd REAL,
	expected_profit_usd REAL,
	risk_score REAL,
	is_safe INTEGER,
	confidence_score REAL,
	grade TEXT,
	legs_json TEXT,
	raw_json TEXT
);
CREATE INDEX IF NOT EXISTS arb_opportunities_pair_idx ON arb_opportunities(pair_id, detected_at);
CREATE UNIQUE INDEX IF NOT EXISTS arb_opportunities_digest_idx ON arb_opportunities(market_digest, detected_at);
CREATE TABLE IF NOT EXISTS tracked_opportunities (
	pair_id TEXT NOT NULL,
	first_seen TEXT NOT NULL,
	last_seen TEXT,
	closed_at TEXT,
	close_reason TEXT,
	market_a TEXT,
	market_b TEXT,
	peak_profit REAL,
	last_profit REAL,
	alert_sent INTEGER,
	price_history_json TEXT,
	PRIMARY KEY (pair_id, first_seen)
);
`

// UpsertMarkets stores the latest snapshot of each fetched market.
func (s *Store) UpsertMarkets(ctx context.Context, list []markets.Market) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, marketUpsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, m := range list {
		if err := execMarketUpsert(ctx, stmt, m, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", m.Key(), err)
		}
	}
	return tx.Commit()
}

const marketUpsertSQL = `
INSERT INTO markets (
	platform, market_id, title, description, category, url, close_time, resolution_source,
	yes_price, no_price, yes_bid, yes_ask, no_bid, no_ask, volume, liquidity,
	books_json, book_hash, text_hash, last_seen_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(platform, market_id) DO UPDATE SET
	title=excluded.title,
	description=excluded.description,
	category=excluded.category,
	url=excluded.url,
	close_time=excluded.close_time,
	resolution_source=excluded.resolution_source,
	yes_price=excluded.yes_price,
	no_price=excluded.no_price,
	yes_bid=excluded.yes_bid,
	yes_ask=excluded.yes_ask,
	no_bid=excluded.no_bid,
	no_ask=excluded.no_ask,
	volume=excluded.volume,
	liquidity=excluded.liquidity,
	books_json=excluded.books_json,
	book_hash=excluded.book_hash,
	text_hash=excluded.text_hash,
	last_seen_at=excluded.last_seen_at;
`

func execMarketUpsert(ctx context.Context, stmt *sql.Stmt, m markets.Market, ts string) error {
	booksJSON := ""
	if len(m.Orderbooks) > 0 {
		b, err := json.Marshal(m.Orderbooks)
		if err != nil {
			return err
		}
		booksJSON = string(b)
	}
	_, err := stmt.ExecContext(
		ctx,
		string(m.Platform),
		m.MarketID,
		m.Title,
		m.Description,
		m.Category,
		m.URL,
		formatTime(m.CloseTime),
		m.ResolutionSource,
		m.YesPrice,
		m.NoPrice,
		m.Price.YesBid,
		m.Price.YesAsk,
		m.Price.NoBid,
		m.Price.NoAsk,
		m.Volume,
		m.Liquidity,
		booksJSON,
		hashutil.HashStrings(booksJSON),
		hashutil.HashStrings(m.Title, m.Description, m.ResolutionSource),
		ts,
	)
	return err
}

// CountMarkets returns the number of stored markets on platform, or on every
// platform when platform is empty.
func (s *Store) CountMarkets(ctx context.Context, platform markets.Platform) (int, error) {
	query := `SELECT COUNT(*) FROM markets`
	var args []any
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, string(platform))
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
