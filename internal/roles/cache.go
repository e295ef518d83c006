package roles

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenvault/tokenvault/internal/identity"
)

// Cache keeps membership lookups hot in Redis. A miss falls through to the
// repository; grant/revoke invalidates the affected key.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs the membership cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func membershipKey(role string, addr identity.Address) string {
	return fmt.Sprintf("roles:%s:member:%s", role, addr.String())
}

// GetMembership returns the cached membership flag or a miss.
func (c *Cache) GetMembership(ctx context.Context, role string, addr identity.Address) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, membershipKey(role, addr)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// SetMembership caches a membership flag.
func (c *Cache) SetMembership(ctx context.Context, role string, addr identity.Address, member bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if member {
		val = "1"
	}
	_ = c.client.Set(ctx, membershipKey(role, addr), val, c.ttl).Err()
}

// Invalidate drops the cached flag after a grant or revoke.
func (c *Cache) Invalidate(ctx context.Context, role string, addr identity.Address) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, membershipKey(role, addr)).Err()
}
