package app

import (
	"context"
	"errors"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/cache"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/metrics"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
	DeleteExpiredHolds(ctx context.Context, now time.Time) ([]string, error)
}

const defaultHoldTTL = 2 * time.Minute

// HoldService creates time-boxed reservations and reclaims expired ones.
type HoldService struct {
	repo    HoldRepository
	clock   clock.Clock
	cache   cache.Cache
	retry   retry.Policy
	logger  zerolog.Logger
	holdTTL time.Duration
}

func NewHoldService(repo HoldRepository, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:    repo,
		clock:   clk,
		cache:   cache.Noop{},
		retry:   retry.NewPolicy(retry.DefaultMaxAttempts, retry.DefaultBaseDelay),
		logger:  zerolog.Nop(),
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithHoldCache(c cache.Cache) HoldServiceOption {
	return func(s *HoldService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithHoldRetry(p retry.Policy) HoldServiceOption {
	return func(s *HoldService) { s.retry = p }
}

func WithHoldLogger(l zerolog.Logger) HoldServiceOption {
	return func(s *HoldService) { s.logger = l }
}

type CreateHoldInput struct {
	ProductID string
	Qty       int
}

// CreateHold reserves quantity against a product. The product row is locked
// exclusively for the read-then-write sequence, so concurrent calls for the
// same product serialize and the no-oversell gate compares against a sum no
// other writer can move underneath it.
func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Hold, error) {
	if in.ProductID == "" {
		return domain.Hold{}, domain.ErrInvalidID
	}
	if in.Qty <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}

	var result domain.Hold

	err := s.retry.Do(ctx, "create_hold", func(ctx context.Context) error {
		// Fresh per attempt: a retried attempt must not reserve with a
		// stale expiry or count holds against an old instant.
		now := s.clock.Now()
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			product, err := s.repo.GetProductForUpdate(txCtx, in.ProductID)
			if err != nil {
				return err
			}

			reserved, err := s.repo.SumActiveHolds(txCtx, product.ID, now)
			if err != nil {
				return err
			}

			// Raw difference, not the display clamp: admission must see a
			// negative value if stock ever drops below the reserved sum.
			available := product.Stock - reserved
			if in.Qty > available {
				return domain.ErrOverCapacity
			}

			hold := domain.Hold{
				ID:        uuid.NewString(),
				ProductID: product.ID,
				Qty:       in.Qty,
				Used:      false,
				ExpiresAt: now.Add(s.holdTTL),
				CreatedAt: now,
			}
			if err := s.repo.CreateHold(txCtx, hold); err != nil {
				return err
			}

			result = hold
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrOverCapacity) {
			metrics.HoldsRejected.Inc()
		}
		return domain.Hold{}, err
	}

	metrics.HoldsCreated.Inc()
	s.invalidateAvailability(ctx, result.ProductID)
	return result, nil
}

// ReleaseExpiredHolds deletes unused holds whose expiry has passed, freeing
// their quantity back into the availability formula. Safe to run concurrently
// with itself: already-deleted holds are simply not found again.
func (s *HoldService) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	var productIDs []string

	err := s.retry.Do(ctx, "release_expired_holds", func(ctx context.Context) error {
		now := s.clock.Now()
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ids, err := s.repo.DeleteExpiredHolds(txCtx, now)
			if err != nil {
				return err
			}
			productIDs = ids
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	if len(productIDs) > 0 {
		metrics.HoldsReleased.Add(float64(len(productIDs)))
		s.logger.Info().Int("released", len(productIDs)).Msg("expired holds released")
	}
	for _, productID := range dedupe(productIDs) {
		s.invalidateAvailability(ctx, productID)
	}
	return len(productIDs), nil
}

func (s *HoldService) invalidateAvailability(ctx context.Context, productID string) {
	if err := s.cache.InvalidateAvailability(ctx, productID); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("availability cache invalidation failed")
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
