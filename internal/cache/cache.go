// Package cache handles the read-through cache for static product fields and
// the invalidation of cached availability. The reservation-derived figure
// itself is never stored here; only external layers may cache product name
// and price, and every stock mutation must drop the availability key.
package cache

import (
	"context"
	"time"
)

// ProductInfo mirrors the static product fields safe to cache.
type ProductInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

type Cache interface {
	GetProductInfo(ctx context.Context, productID string) (*ProductInfo, error)
	SetProductInfo(ctx context.Context, info ProductInfo, ttl time.Duration) error
	// InvalidateAvailability drops any cached availability figure for the
	// product. Called after every commit that changes reserved or committed
	// stock.
	InvalidateAvailability(ctx context.Context, productID string) error
}

// Noop disables caching; used when no Redis address is configured and in
// tests.
type Noop struct{}

func (Noop) GetProductInfo(context.Context, string) (*ProductInfo, error) { return nil, nil }

func (Noop) SetProductInfo(context.Context, ProductInfo, time.Duration) error { return nil }

func (Noop) InvalidateAvailability(context.Context, string) error { return nil }
