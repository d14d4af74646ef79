package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetProductForUpdate takes the exclusive row lock the admission gate relies
// on: concurrent reservations for the same product serialize here.
func (r *HoldRepository) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	const query = `SELECT id, name, price_cents, stock, created_at FROM products WHERE id = $1 FOR UPDATE`

	var p domain.Product
	err := r.queryRow(ctx, query, productID).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Product{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// SumActiveHolds returns the quantity currently reserved against the product.
// Must run inside the same transaction as the lock taken by
// GetProductForUpdate, otherwise the sum is racy.
func (r *HoldRepository) SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(qty), 0)
FROM holds
WHERE product_id = $1 AND used = FALSE AND expires_at > $2`

	var total int
	if err := r.queryRow(ctx, query, productID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active holds: %w", err)
	}
	return total, nil
}

func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO holds (id, product_id, qty, used, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		hold.ID,
		hold.ProductID,
		hold.Qty,
		hold.Used,
		hold.ExpiresAt,
		hold.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}

// DeleteExpiredHolds removes holds that were never consumed and whose
// expiry has passed, returning the product id of each deleted hold. Holds
// referenced by an order are never eligible: promotion flips used before the
// order row exists.
func (r *HoldRepository) DeleteExpiredHolds(ctx context.Context, now time.Time) ([]string, error) {
	const stmt = `
DELETE FROM holds
WHERE used = FALSE AND expires_at <= $1
RETURNING product_id`

	rows, err := r.query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired holds: %w", err)
	}
	defer rows.Close()

	var productIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan released hold: %w", err)
		}
		productIDs = append(productIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete expired holds: %w", err)
	}
	return productIDs, nil
}

func (r *HoldRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *HoldRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *HoldRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
