package app

import (
	"context"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/metrics"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/retry"
	"github.com/google/uuid"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	MarkHoldUsed(ctx context.Context, holdID string) error
	CreateOrder(ctx context.Context, order domain.Order) error
}

// OrderService promotes a valid hold into exactly one pre-payment order.
type OrderService struct {
	repo  OrderRepository
	clock clock.Clock
	retry retry.Policy
}

func NewOrderService(repo OrderRepository, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:  repo,
		clock: clk,
		retry: retry.NewPolicy(retry.DefaultMaxAttempts, retry.DefaultBaseDelay),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderServiceOption func(*OrderService)

func WithOrderRetry(p retry.Policy) OrderServiceOption {
	return func(s *OrderService) { s.retry = p }
}

type PromoteHoldInput struct {
	HoldID string
}

// PromoteHold consumes the hold and creates its order. The validity check
// runs after the hold row is locked; a stale pre-lock read could race the
// expiry sweep or a concurrent promoter. Promotion never touches product
// stock: reserved and sold stay distinct until settlement.
func (s *OrderService) PromoteHold(ctx context.Context, in PromoteHoldInput) (domain.Order, error) {
	if in.HoldID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}

	var result domain.Order

	err := s.retry.Do(ctx, "promote_hold", func(ctx context.Context) error {
		// Fresh per attempt so a hold that expires during the backoff
		// waits is judged against the current instant.
		now := s.clock.Now()
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			hold, err := s.repo.GetHoldForUpdate(txCtx, in.HoldID)
			if err != nil {
				return err
			}
			if hold.Used || !hold.ExpiresAt.After(now) {
				return domain.ErrHoldInvalid
			}

			if err := s.repo.MarkHoldUsed(txCtx, hold.ID); err != nil {
				return err
			}

			order := domain.Order{
				ID:        uuid.NewString(),
				HoldID:    hold.ID,
				Status:    domain.OrderStatusPrePayment,
				CreatedAt: now,
				UpdatedAt: now,
			}
			// The unique index on hold_id backs this up even if two
			// promotions somehow race past the lock.
			if err := s.repo.CreateOrder(txCtx, order); err != nil {
				return err
			}

			result = order
			return nil
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	metrics.OrdersCreated.Inc()
	return result, nil
}
