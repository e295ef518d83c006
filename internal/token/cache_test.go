package token

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSupplyCache(t *testing.T) (*SupplyCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSupplyCache(client, time.Minute), mr
}

func TestSupplyCacheHitSkipsFetch(t *testing.T) {
	cache, _ := newTestSupplyCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (uint64, error) {
		calls++
		return 42, nil
	}

	supply, err := cache.Supply(ctx, 7, fetch)
	require.NoError(t, err)
	require.Equal(t, uint64(42), supply)
	require.Equal(t, 1, calls)

	supply, err = cache.Supply(ctx, 7, fetch)
	require.NoError(t, err)
	require.Equal(t, uint64(42), supply)
	require.Equal(t, 1, calls)
}

func TestSupplyCacheInvalidate(t *testing.T) {
	cache, _ := newTestSupplyCache(t)
	ctx := context.Background()

	value := uint64(10)
	fetch := func() (uint64, error) {
		return value, nil
	}

	supply, err := cache.Supply(ctx, 3, fetch)
	require.NoError(t, err)
	require.Equal(t, uint64(10), supply)

	value = 25
	cache.Invalidate(ctx, 3)

	supply, err = cache.Supply(ctx, 3, fetch)
	require.NoError(t, err)
	require.Equal(t, uint64(25), supply)
}

func TestSupplyCacheNilFallsThrough(t *testing.T) {
	var cache *SupplyCache
	supply, err := cache.Supply(context.Background(), 1, func() (uint64, error) { return 5, nil })
	require.NoError(t, err)
	require.Equal(t, uint64(5), supply)
	cache.Invalidate(context.Background(), 1)
}
