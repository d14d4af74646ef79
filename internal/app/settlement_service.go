package app

import (
	"context"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/cache"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/metrics"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type SettlementRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ClaimReceipt(ctx context.Context, receipt domain.PaymentReceipt) (bool, error)
	BindReceiptOrder(ctx context.Context, receiptID, orderID string) error
	GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error)
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	MarkHoldUsed(ctx context.Context, holdID string) error
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// Outcome is the payment provider's final verdict for an order.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

type SettleStatus string

const (
	SettleApplied        SettleStatus = "applied"
	SettleAlreadyApplied SettleStatus = "already_applied"
	SettlePending        SettleStatus = "pending"
)

type SettleInput struct {
	OrderID        string
	IdempotencyKey string
	Outcome        Outcome
}

type SettleResult struct {
	Status SettleStatus
}

// SettlementService applies payment notifications to the order/hold/product
// triple exactly once. Duplicate suppression is the receipt claim alone; the
// final-status guard is defense in depth against provider-level key reuse.
//
// A notification that arrives before its order commits a receipt with an
// unresolved order reference and reports pending. Nothing here re-drives
// pending notifications: reprocessing only happens when the provider
// redelivers with a fresh idempotency key for the same logical event. A
// provider that reuses the original key leaves the event pending forever.
type SettlementService struct {
	repo   SettlementRepository
	clock  clock.Clock
	cache  cache.Cache
	retry  retry.Policy
	logger zerolog.Logger
}

func NewSettlementService(repo SettlementRepository, clk clock.Clock, opts ...SettlementServiceOption) *SettlementService {
	svc := &SettlementService{
		repo:   repo,
		clock:  clk,
		cache:  cache.Noop{},
		retry:  retry.NewPolicy(retry.DefaultMaxAttempts, retry.DefaultBaseDelay),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SettlementServiceOption func(*SettlementService)

func WithSettlementCache(c cache.Cache) SettlementServiceOption {
	return func(s *SettlementService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithSettlementRetry(p retry.Policy) SettlementServiceOption {
	return func(s *SettlementService) { s.retry = p }
}

func WithSettlementLogger(l zerolog.Logger) SettlementServiceOption {
	return func(s *SettlementService) { s.logger = l }
}

func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	if in.IdempotencyKey == "" {
		return SettleResult{}, domain.ErrIdempotencyKeyRequired
	}
	if in.OrderID == "" {
		return SettleResult{}, domain.ErrInvalidID
	}
	if in.Outcome != OutcomeSuccess && in.Outcome != OutcomeFailure {
		return SettleResult{}, domain.ErrInvalidOutcome
	}

	var status SettleStatus
	var stockChanged string

	err := s.retry.Do(ctx, "settle", func(ctx context.Context) error {
		stockChanged = ""
		now := s.clock.Now()
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			// Idempotency gate first, before any state mutation.
			receipt := domain.PaymentReceipt{
				ID:             uuid.NewString(),
				IdempotencyKey: in.IdempotencyKey,
				CreatedAt:      now,
			}
			claimed, err := s.repo.ClaimReceipt(txCtx, receipt)
			if err != nil {
				return err
			}
			if !claimed {
				status = SettleAlreadyApplied
				return nil
			}

			order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
			if err != nil {
				return err
			}
			if order == nil {
				status = SettlePending
				return nil
			}
			if err := s.repo.BindReceiptOrder(txCtx, receipt.ID, order.ID); err != nil {
				return err
			}

			// Fixed lock order: order, then hold, then product.
			hold, err := s.repo.GetHoldForUpdate(txCtx, order.HoldID)
			if err != nil {
				return err
			}
			product, err := s.repo.GetProductForUpdate(txCtx, hold.ProductID)
			if err != nil {
				return err
			}

			if order.Status.IsFinal() {
				status = SettleAlreadyApplied
				return nil
			}

			switch in.Outcome {
			case OutcomeSuccess:
				if err := s.repo.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusPaid); err != nil {
					return err
				}
				if err := s.repo.MarkHoldUsed(txCtx, hold.ID); err != nil {
					return err
				}
				if err := s.repo.DecrementStock(txCtx, product.ID, hold.Qty); err != nil {
					return err
				}
				stockChanged = product.ID
			case OutcomeFailure:
				if err := s.repo.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusCancelled); err != nil {
					return err
				}
				// Marking the hold used releases its quantity: only
				// unused holds count toward reserved stock.
				if err := s.repo.MarkHoldUsed(txCtx, hold.ID); err != nil {
					return err
				}
			}

			status = SettleApplied
			return nil
		})
	})
	if err != nil {
		return SettleResult{}, err
	}

	metrics.Settlements.WithLabelValues(string(in.Outcome), string(status)).Inc()
	s.logger.Info().
		Str("order_id", in.OrderID).
		Str("outcome", string(in.Outcome)).
		Str("result", string(status)).
		Msg("settlement processed")

	if stockChanged != "" {
		if err := s.cache.InvalidateAvailability(ctx, stockChanged); err != nil {
			s.logger.Warn().Err(err).Str("product_id", stockChanged).Msg("availability cache invalidation failed")
		}
	}
	return SettleResult{Status: status}, nil
}
