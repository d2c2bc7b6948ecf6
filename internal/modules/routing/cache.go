// README: Route cache backed by Redis; cleared per channel on every order transition.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

const (
	routeKeyPrefix = "fulfillments:routes:%s:%s"
	routeIndexKey  = "fulfillments:routes:%s"
	defaultTTL     = 30 * time.Minute
)

// Cache stores built routes per channel.
type Cache interface {
	Get(ctx context.Context, channelID types.ID, key string) (*Route, bool, error)
	Set(ctx context.Context, channelID types.ID, key string, r *Route) error
	Invalidate(ctx context.Context, channelID types.ID) error
}

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, channelID types.ID, key string) (*Route, bool, error) {
	val, err := c.redis.Get(ctx, routeKey(channelID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r Route
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached route: %w", err)
	}
	return &r, true, nil
}

// Set stores the route and records its key in the channel's index so
// Invalidate can find it.
func (c *RedisCache) Set(ctx context.Context, channelID types.ID, key string, r *Route) error {
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode route: %w", err)
	}
	k := routeKey(channelID, key)
	idx := indexKey(channelID)
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, k, val, c.ttl)
	pipe.SAdd(ctx, idx, k)
	pipe.Expire(ctx, idx, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, channelID types.ID) error {
	idx := indexKey(channelID)
	keys, err := c.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	return c.redis.Del(ctx, append(keys, idx)...).Err()
}

// PublishTransition clears the channel's routes; an order changing state may
// add or remove a stop.
func (c *RedisCache) PublishTransition(ctx context.Context, e order.Event) error {
	return c.Invalidate(ctx, e.ChannelID)
}

func routeKey(channelID types.ID, key string) string {
	return fmt.Sprintf(routeKeyPrefix, string(channelID), key)
}

func indexKey(channelID types.ID) string {
	return fmt.Sprintf(routeIndexKey, string(channelID))
}

var _ order.Publisher = (*RedisCache)(nil)
