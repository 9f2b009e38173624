package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

const (
	cartBaseTTL = 15 * time.Minute
	// outlives any cached cart, so a version never resets under a live entry
	versionTTL = 24 * time.Hour
)

// fillScript writes the cart only while the version key still holds the
// value read before the repository lookup. A missing version counts as 0.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisCache stores carts as JSON next to a per-user version counter. Both
// keys share a hash tag so the fill script stays on one cluster slot.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: cartBaseTTL,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get cart version: %w", err)
	}
	return v, nil
}

// Fill caches cart unless the user's version moved past version. It returns
// ErrStaleVersion when the write was skipped.
func (r *RedisCache) Fill(ctx context.Context, userID string, version int64, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expirations so carts cached together do not expire together
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute

	stored, err := fillScript.Run(ctx, r.client,
		[]string{versionKey(userID), cartKey(userID)},
		strconv.FormatInt(version, 10), payload, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis fill cart: %w", err)
	}
	if stored == 0 {
		return ErrStaleVersion
	}
	return nil
}

// Invalidate bumps the version and drops the cached cart in one transaction.
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), versionTTL)
		pipe.Del(ctx, cartKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate cart: %w", err)
	}
	return nil
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:{%s}", userID)
}

func versionKey(userID string) string {
	return fmt.Sprintf("cart:{%s}:version", userID)
}
