package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is the subset of a redis client the cached repository needs. A
// miss is reported as redis.Nil.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache adapts a go-redis client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedRepository reads through a cache in front of another Repository.
// Cache failures are logged and fall back to the inner repository; they
// never fail a read.
type CachedRepository struct {
	inner Repository
	cache Cache
	ttl   time.Duration
}

func NewCachedRepository(inner Repository, cache Cache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedRepository{inner: inner, cache: cache, ttl: ttl}
}

func (r *CachedRepository) GetBalanceByID(ctx context.Context, id int64) (*Balance, error) {
	var b *Balance
	err := r.readThrough(ctx, fmt.Sprintf("balance:id:%d", id), &b, func() (any, error) {
		return r.inner.GetBalanceByID(ctx, id)
	})
	return b, err
}

func (r *CachedRepository) GetBalanceByCurrencyAndAccountID(ctx context.Context, currency, accountID string) (*Balance, error) {
	var b *Balance
	key := fmt.Sprintf("balance:account:%s:%s", accountID, currency)
	err := r.readThrough(ctx, key, &b, func() (any, error) {
		return r.inner.GetBalanceByCurrencyAndAccountID(ctx, currency, accountID)
	})
	return b, err
}

func (r *CachedRepository) GetAllCurrencyBalances(ctx context.Context, accountID string) ([]*Balance, error) {
	var out []*Balance
	err := r.readThrough(ctx, fmt.Sprintf("balance:all:%s", accountID), &out, func() (any, error) {
		return r.inner.GetAllCurrencyBalances(ctx, accountID)
	})
	return out, err
}

// readThrough decodes key into dst, or loads it and fills the cache.
func (r *CachedRepository) readThrough(ctx context.Context, key string, dst any, load func() (any, error)) error {
	raw, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if jerr := json.Unmarshal([]byte(raw), dst); jerr == nil {
			return nil
		}
		zap.S().Warnf("drop undecodable cache entry %s", key)
	case !errors.Is(err, redis.Nil):
		zap.S().Warnf("balance cache get %s: %v", key, err)
	}

	v, err := load()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.cache.Set(ctx, key, string(b), r.ttl); err != nil {
		zap.S().Warnf("balance cache set %s: %v", key, err)
	}
	return json.Unmarshal(b, dst)
}
