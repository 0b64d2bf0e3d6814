package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const membershipKeyPrefix = "helios:collection:"

// MembershipCache stores the product ids of a collection.
type MembershipCache interface {
	Get(ctx context.Context, handle string) (ids []int64, found bool, err error)
	Set(ctx context.Context, handle string, ids []int64) error
}

// RedisMembershipCache implements MembershipCache using Redis.
type RedisMembershipCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisMembershipCache creates a Redis-backed membership cache.
func NewRedisMembershipCache(client redis.UniversalClient, ttl time.Duration) *RedisMembershipCache {
	return &RedisMembershipCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached ids for handle.
func (c *RedisMembershipCache) Get(ctx context.Context, handle string) ([]int64, bool, error) {
	data, err := c.client.Get(ctx, membershipKeyPrefix+handle).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get collection: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, fmt.Errorf("unmarshal collection: %w", err)
	}
	return ids, true, nil
}

// Set caches ids for handle with the configured TTL.
func (c *RedisMembershipCache) Set(ctx context.Context, handle string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	if err := c.client.Set(ctx, membershipKeyPrefix+handle, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set collection: %w", err)
	}
	return nil
}
