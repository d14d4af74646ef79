package postgres

import (
	"context"
	"fmt"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettlementRepository struct {
	pool *pgxpool.Pool
}

func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool}
}

func (r *SettlementRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// ClaimReceipt is the insert-first idempotency gate. It reports false when a
// receipt with the same idempotency key already exists, in which case the
// notification's effects were already applied (or it is still pending) and
// nothing further may run.
func (r *SettlementRepository) ClaimReceipt(ctx context.Context, receipt domain.PaymentReceipt) (bool, error) {
	const stmt = `
INSERT INTO payment_receipts (id, order_id, idempotency_key, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := r.exec(ctx, stmt, receipt.ID, receipt.OrderID, receipt.IdempotencyKey, receipt.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("claim receipt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetOrderForUpdate returns nil when the order does not exist yet; a
// notification arriving before its order is a pending outcome, not an error.
func (r *SettlementRepository) GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	const query = `
SELECT id, hold_id, status, created_at, updated_at
FROM orders
WHERE id = $1
FOR UPDATE`

	var o domain.Order
	var status string
	err := r.queryRow(ctx, query, orderID).
		Scan(&o.ID, &o.HoldID, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (r *SettlementRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	const query = `
SELECT id, product_id, qty, used, expires_at, created_at
FROM holds
WHERE id = $1
FOR UPDATE`

	var h domain.Hold
	err := r.queryRow(ctx, query, holdID).
		Scan(&h.ID, &h.ProductID, &h.Qty, &h.Used, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

func (r *SettlementRepository) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	const query = `SELECT id, name, price_cents, stock, created_at FROM products WHERE id = $1 FOR UPDATE`

	var p domain.Product
	err := r.queryRow(ctx, query, productID).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *SettlementRepository) BindReceiptOrder(ctx context.Context, receiptID, orderID string) error {
	const stmt = `UPDATE payment_receipts SET order_id = $2 WHERE id = $1`

	if _, err := r.exec(ctx, stmt, receiptID, orderID); err != nil {
		return fmt.Errorf("bind receipt order: %w", err)
	}
	return nil
}

func (r *SettlementRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	const stmt = `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order status: order %s not found", orderID)
	}
	return nil
}

func (r *SettlementRepository) MarkHoldUsed(ctx context.Context, holdID string) error {
	const stmt = `UPDATE holds SET used = TRUE WHERE id = $1`

	tag, err := r.exec(ctx, stmt, holdID)
	if err != nil {
		return fmt.Errorf("mark hold used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

// DecrementStock is the only place committed stock ever decreases.
func (r *SettlementRepository) DecrementStock(ctx context.Context, productID string, qty int) error {
	const stmt = `UPDATE products SET stock = stock - $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *SettlementRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *SettlementRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
