// Package alerts gates and delivers opportunity notifications.
package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/clock"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// Record is the last alert sent for one (source, id). Profit is in percent.
type Record struct {
	Source string    `json:"source"`
	ID     string    `json:"id"`
	SentAt time.Time `json:"sent_at"`
	Profit float64   `json:"profit"`
}

func (r Record) key() string { return r.Source + ":" + r.ID }

// Store persists dedup records so suppression survives restarts.
type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Load(ctx context.Context) ([]Record, error)
}

type DedupConfig struct {
	Cooldown time.Duration
	// ProfitBump is the increase, in percentage points, that re-allows an
	// alert inside the cooldown.
	ProfitBump float64
	Retention  time.Duration
	MaxEntries int
	Clock      clock.Clock
	Store      Store
	// StoreTimeout bounds each write-through call.
	StoreTimeout time.Duration
}

// Deduplicator suppresses repeated alerts. One instance is shared by every
// alert-producing source.
type Deduplicator struct {
	cfg DedupConfig

	mu      sync.Mutex
	entries map[string]Record
}

func NewDeduplicator(cfg DedupConfig) *Deduplicator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Minute
	}
	if cfg.ProfitBump <= 0 {
		cfg.ProfitBump = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 2 * time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	return &Deduplicator{cfg: cfg, entries: make(map[string]Record)}
}

// CheckAndRecordAlert reports whether an alert for (source, id) should be sent
// now, and records it when it should. profitPct is in percent.
func (d *Deduplicator) CheckAndRecordAlert(source, id string, profitPct float64) bool {
	now := d.cfg.Clock.Now()
	rec := Record{Source: source, ID: id, SentAt: now, Profit: profitPct}

	d.mu.Lock()
	d.pruneLocked(now)
	prev, seen := d.entries[rec.key()]
	allow := !seen ||
		now.Sub(prev.SentAt) >= d.cfg.Cooldown ||
		profitPct-prev.Profit >= d.cfg.ProfitBump
	if allow {
		d.entries[rec.key()] = rec
		d.evictLocked()
	}
	d.mu.Unlock()

	if allow {
		d.persist(rec)
	}
	return allow
}

// Restore loads persisted records that are still within retention.
func (d *Deduplicator) Restore(ctx context.Context) (int, error) {
	if d.cfg.Store == nil {
		return 0, nil
	}
	recs, err := d.cfg.Store.Load(ctx)
	if err != nil {
		return 0, err
	}
	now := d.cfg.Clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, rec := range recs {
		if now.Sub(rec.SentAt) > d.cfg.Retention {
			continue
		}
		if cur, ok := d.entries[rec.key()]; ok && !rec.SentAt.After(cur.SentAt) {
			continue
		}
		d.entries[rec.key()] = rec
		n++
	}
	d.evictLocked()
	return n, nil
}

// Len returns the number of tracked keys after pruning.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(d.cfg.Clock.Now())
	return len(d.entries)
}

func (d *Deduplicator) persist(rec Record) {
	if d.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.StoreTimeout)
	defer cancel()
	if err := d.cfg.Store.Save(ctx, rec, d.cfg.Retention); err != nil {
		logging.Warnf("[dedup] persist %s failed: %v", rec.key(), err)
	}
}

func (d *Deduplicator) pruneLocked(now time.Time) {
	for k, rec := range d.entries {
		if now.Sub(rec.SentAt) > d.cfg.Retention {
			delete(d.entries, k)
		}
	}
}

// evictLocked drops the oldest records beyond MaxEntries.
func (d *Deduplicator) evictLocked() {
	over := len(d.entries) - d.cfg.MaxEntries
	if over <= 0 {
		return
	}
	recs := make([]Record, 0, len(d.entries))
	for _, rec := range d.entries {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].SentAt.Equal(recs[j].SentAt) {
			return recs[i].SentAt.Before(recs[j].SentAt)
		}
		return recs[i].key() < recs[j].key()
	})
	for _, rec := range recs[:over] {
		delete(d.entries, rec.key())
	}
}
