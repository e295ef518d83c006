package token

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SupplyCache keeps totalSupply reads hot. Concurrent misses for the same
// id are collapsed through singleflight before hitting the repository;
// mint and burn invalidate the touched ids after commit.
type SupplyCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewSupplyCache constructs the cache.
func NewSupplyCache(client *redis.Client, ttl time.Duration) *SupplyCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SupplyCache{client: client, ttl: ttl}
}

func supplyKey(assetID uint64) string {
	return "token:supply:" + strconv.FormatUint(assetID, 10)
}

// Supply returns the cached counter or loads it through fetch. A nil cache
// calls fetch directly.
func (c *SupplyCache) Supply(ctx context.Context, assetID uint64, fetch func() (uint64, error)) (uint64, error) {
	if c == nil || c.client == nil {
		return fetch()
	}
	key := supplyKey(assetID)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if supply, perr := strconv.ParseUint(raw, 10, 64); perr == nil {
			return supply, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble must not break reads; fall through to the source.
		return fetch()
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		supply, err := fetch()
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, strconv.FormatUint(supply, 10), c.ttl).Err()
		return supply, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(uint64), nil
}

// Invalidate drops cached counters for the given ids.
func (c *SupplyCache) Invalidate(ctx context.Context, assetIDs ...uint64) {
	if c == nil || c.client == nil || len(assetIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		keys = append(keys, supplyKey(id))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
