package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"furnidesk/backend/internal/domain"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// setIfNewer stores the payload unless the hash already holds a higher
// version. KEYS[1] order key, ARGV version, payload, ttl in milliseconds.
var setIfNewer = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "payload", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisOrderCache keeps each order as a hash of its version and JSON payload.
type RedisOrderCache struct {
	client redis.UniversalClient
}

func NewRedisOrderCache(client redis.UniversalClient) *RedisOrderCache {
	return &RedisOrderCache{client: client}
}

func (c *RedisOrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOrderCache) Get(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	val, err := c.client.HGet(ctx, orderKey(orderID), "payload").Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var order domain.Order
	if err := json.Unmarshal([]byte(val), &order); err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

func (c *RedisOrderCache) Set(ctx context.Context, order *domain.Order, ttl time.Duration) error {
	if order == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.client, []string{orderKey(order.ID)}, order.Version, payload, ttl.Milliseconds()).Err()
}

func (c *RedisOrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, orderKey(orderID)).Err()
}

func orderKey(orderID string) string {
	return "furnidesk:order:" + orderID
}
