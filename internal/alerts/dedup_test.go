package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/clock"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu   sync.Mutex
	recs map[string]Record
	err  error
}

func (m *memStore) Save(_ context.Context, rec Record, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.recs == nil {
		m.recs = map[string]Record{}
	}
	m.recs[rec.key()] = rec
	return nil
}

func (m *memStore) Load(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, m.err
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	clk := clock.NewFake(t0)
	d := NewDeduplicator(DedupConfig{Clock: clk})

	assert.True(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 4.0))
	clk.Advance(5 * time.Minute)
	assert.False(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 6.0))
	clk.Advance(30 * time.Minute)
	assert.True(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 6.0), "cooldown elapsed at +35m")
}

func TestProfitBumpBypassesCooldown(t *testing.T) {
	clk := clock.NewFake(t0)
	d := NewDeduplicator(DedupConfig{Clock: clk})

	assert.True(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 4.0))
	clk.Advance(10 * time.Minute)
	assert.True(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 10.0))

	// The bump reset the clock and the baseline.
	clk.Advance(25 * time.Minute)
	assert.False(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 12.0))
}

func TestSourcesAreIndependent(t *testing.T) {
	d := NewDeduplicator(DedupConfig{Clock: clock.NewFake(t0)})
	assert.True(t, d.CheckAndRecordAlert("arbitrage", "x", 3))
	assert.True(t, d.CheckAndRecordAlert("whale", "x", 3))
	assert.False(t, d.CheckAndRecordAlert("whale", "x", 3))
}

func TestRetentionPrunesOldEntries(t *testing.T) {
	clk := clock.NewFake(t0)
	d := NewDeduplicator(DedupConfig{Clock: clk})
	d.CheckAndRecordAlert("arbitrage", "a", 3)
	clk.Advance(90 * time.Minute)
	d.CheckAndRecordAlert("arbitrage", "b", 3)
	assert.Equal(t, 2, d.Len())

	clk.Advance(31 * time.Minute)
	assert.Equal(t, 1, d.Len())
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	clk := clock.NewFake(t0)
	d := NewDeduplicator(DedupConfig{Clock: clk, MaxEntries: 3})
	for i := 0; i < 5; i++ {
		d.CheckAndRecordAlert("arbitrage", fmt.Sprintf("p%d", i), 3)
		clk.Advance(time.Second)
	}
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.CheckAndRecordAlert("arbitrage", "p0", 3), "oldest was evicted")
	assert.False(t, d.CheckAndRecordAlert("arbitrage", "p4", 3))
}

func TestStoreRoundTrip(t *testing.T) {
	clk := clock.NewFake(t0)
	store := &memStore{}
	first := NewDeduplicator(DedupConfig{Clock: clk, Store: store})
	require.True(t, first.CheckAndRecordAlert("arbitrage", "pair-1", 4))

	clk.Advance(10 * time.Minute)
	restarted := NewDeduplicator(DedupConfig{Clock: clk, Store: store})
	n, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, restarted.CheckAndRecordAlert("arbitrage", "pair-1", 4), "suppression survives restart")
}

func TestStoreFailureDoesNotBlockAlerts(t *testing.T) {
	store := &memStore{err: errors.New("redis down")}
	d := NewDeduplicator(DedupConfig{Clock: clock.NewFake(t0), Store: store})
	assert.True(t, d.CheckAndRecordAlert("arbitrage", "pair-1", 4))

	_, err := d.Restore(context.Background())
	assert.Error(t, err)
}
