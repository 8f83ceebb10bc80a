// Package cache holds the Redis-backed stores.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/crossarb/internal/alerts"
)

const scanBatch = 200

// DedupStore persists alert dedup records in Redis, one key per (source, id),
// expiring with the dedup retention.
type DedupStore struct {
	client *redis.Client
	prefix string
}

// NewRedisDedupStore connects lazily; the first command dials.
func NewRedisDedupStore(addr, password string, db int, prefix string) (*DedupStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewDedupStore(client, prefix), nil
}

// NewDedupStore wraps an existing client.
func NewDedupStore(client *redis.Client, prefix string) *DedupStore {
	if prefix == "" {
		prefix = "arb"
	}
	return &DedupStore{client: client, prefix: strings.TrimSuffix(prefix, ":") + ":alert_dedup"}
}

func (s *DedupStore) key(rec alerts.Record) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, rec.Source, rec.ID)
}

func (s *DedupStore) Save(ctx context.Context, rec alerts.Record, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(rec), payload, ttl).Err()
}

// Load returns every unexpired record under the prefix.
func (s *DedupStore) Load(ctx context.Context) ([]alerts.Record, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	var (
		out    []alerts.Record
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", scanBatch).Result()
		if err != nil {
			return out, err
		}
		if len(keys) > 0 {
			vals, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return out, err
			}
			for _, v := range vals {
				raw, ok := v.(string)
				if !ok {
					continue // expired between SCAN and MGET
				}
				rec, err := decodeRecord([]byte(raw))
				if err != nil {
					continue
				}
				out = append(out, rec)
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (s *DedupStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Ping(ctx).Err()
}

func (s *DedupStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func encodeRecord(rec alerts.Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(raw []byte) (alerts.Record, error) {
	var rec alerts.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return alerts.Record{}, err
	}
	if rec.Source == "" || rec.ID == "" {
		return alerts.Record{}, fmt.Errorf("dedup record missing source or id")
	}
	return rec, nil
}
