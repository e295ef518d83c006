package roles

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMembershipCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx := context.Background()
	addr := testAddr(1)

	_, hit := cache.GetMembership(ctx, RoleMinter, addr)
	require.False(t, hit)

	cache.SetMembership(ctx, RoleMinter, addr, true)
	member, hit := cache.GetMembership(ctx, RoleMinter, addr)
	require.True(t, hit)
	require.True(t, member)

	cache.Invalidate(ctx, RoleMinter, addr)
	_, hit = cache.GetMembership(ctx, RoleMinter, addr)
	require.False(t, hit)
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	addr := testAddr(2)

	_, hit := cache.GetMembership(ctx, RoleMinter, addr)
	require.False(t, hit)
	cache.SetMembership(ctx, RoleMinter, addr, true)
	cache.Invalidate(ctx, RoleMinter, addr)
}
