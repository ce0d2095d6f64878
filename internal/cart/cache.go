package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type CartCache interface {
	Get(ctx context.Context, customerToken string) (*domain.Cart, error)
	Set(ctx context.Context, customerToken string, cart *domain.Cart) error
	Delete(ctx context.Context, customerToken string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r RedisCache) Get(ctx context.Context, customerToken string) (*domain.Cart, error) {
	key := cacheKey(customerToken)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if e2 := json.Unmarshal(data, &cart); e2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", e2)
	}

	return &cart, nil
}

func (r RedisCache) Set(ctx context.Context, customerToken string, cart *domain.Cart) error {
	key := cacheKey(customerToken)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// TTL jitter spreads out expiry so a burst of carts cached together
	// does not all miss at once.
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if e2 := r.client.Set(ctx, key, string(jsonCart), ttl).Err(); e2 != nil {
		return fmt.Errorf("redis set failed: %w", e2)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, customerToken string) error {
	key := cacheKey(customerToken)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(customerToken string) string {
	return fmt.Sprintf("cart:%s", customerToken)
}
