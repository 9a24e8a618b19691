package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/redis/go-redis/v9"
)

type OfferCache interface {
	Get(ctx context.Context) ([]domain.Offer, error)
	Set(ctx context.Context, offers []domain.Offer) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

const cacheKey = "offers:active"

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context) ([]domain.Offer, error) {
	data, err := r.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var offers []domain.Offer
	if err2 := json.Unmarshal(data, &offers); err2 != nil {
		return nil, fmt.Errorf("unmarshal offers failed: %w", err2)
	}
	return offers, nil
}

func (r RedisCache) Set(ctx context.Context, offers []domain.Offer) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("marshal offers failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/3) + 1))
	if err := r.client.Set(ctx, cacheKey, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
