package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// ResultStore implements domain.ResultStore with JSON values under
// "<prefix>result:<key>" and a per-key expiry, so replicas behind one load
// balancer share computed metrics.
type ResultStore struct {
	c *Client
}

// NewResultStore creates a ResultStore backed by the given Client.
func NewResultStore(c *Client) *ResultStore {
	return &ResultStore{c: c}
}

func (rs *ResultStore) key(k string) string { return rs.c.Key("result:" + k) }

// Get decodes the value stored under key into dst. A missing key reports
// found=false with no error.
func (rs *ResultStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := rs.c.rdb.Get(ctx, rs.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: get result %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("redis: unmarshal result %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON under key for ttl.
func (rs *ResultStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: marshal result %s: %w", key, err)
	}
	if err := rs.c.rdb.Set(ctx, rs.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultStore = (*ResultStore)(nil)
