package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func productInfoKey(productID string) string {
	return fmt.Sprintf("product:info:%s", productID)
}

func availabilityKey(productID string) string {
	return fmt.Sprintf("product:%s:available_stock", productID)
}

func (r *Redis) GetProductInfo(ctx context.Context, productID string) (*ProductInfo, error) {
	raw, err := r.client.Get(ctx, productInfoKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product info: %w", err)
	}
	var info ProductInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		// A corrupt entry behaves like a miss; the caller re-populates it.
		return nil, nil
	}
	return &info, nil
}

func (r *Redis) SetProductInfo(ctx context.Context, info ProductInfo, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal product info: %w", err)
	}
	if err := r.client.Set(ctx, productInfoKey(info.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set product info: %w", err)
	}
	return nil
}

func (r *Redis) InvalidateAvailability(ctx context.Context, productID string) error {
	if err := r.client.Del(ctx, availabilityKey(productID)).Err(); err != nil {
		return fmt.Errorf("invalidate availability: %w", err)
	}
	return nil
}
