package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/retry"
)

func TestHoldService_CreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 2 * time.Minute

	makeSvc := func(products []domain.Product, holds []domain.Hold) (*HoldService, *fakeHoldRepo) {
		repo := newFakeHoldRepo(products, holds)
		svc := NewHoldService(repo, clock.NewFixed(now), WithHoldTTL(ttl))
		return svc, repo
	}

	t.Run("creates hold when stock available", func(t *testing.T) {
		svc, repo := makeSvc(
			[]domain.Product{{ID: "prod-1", Stock: 100}},
			[]domain.Hold{
				{ProductID: "prod-1", Qty: 30, ExpiresAt: now.Add(time.Minute)},
			},
		)

		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 10})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hold.ID == "" {
			t.Fatalf("expected hold ID to be set")
		}
		if hold.Used {
			t.Fatalf("expected new hold to be unused")
		}
		if hold.ExpiresAt != now.Add(ttl) {
			t.Fatalf("expected expires_at %v, got %v", now.Add(ttl), hold.ExpiresAt)
		}
		if len(repo.holds) != 2 {
			t.Fatalf("expected 2 holds in repo, got %d", len(repo.holds))
		}
	})

	t.Run("rejects when requested qty exceeds available", func(t *testing.T) {
		svc, repo := makeSvc(
			[]domain.Product{{ID: "prod-1", Stock: 100}},
			[]domain.Hold{
				{ProductID: "prod-1", Qty: 90, ExpiresAt: now.Add(time.Minute)},
			},
		)

		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 20})
		if !errors.Is(err, domain.ErrOverCapacity) {
			t.Fatalf("expected ErrOverCapacity, got %v", err)
		}
		if len(repo.holds) != 1 {
			t.Fatalf("expected holds unchanged on rejection, got %d", len(repo.holds))
		}
	})

	t.Run("expired and used holds free capacity", func(t *testing.T) {
		svc, _ := makeSvc(
			[]domain.Product{{ID: "prod-1", Stock: 100}},
			[]domain.Hold{
				{ProductID: "prod-1", Qty: 80, ExpiresAt: now.Add(-time.Minute)},
				{ProductID: "prod-1", Qty: 50, Used: true, ExpiresAt: now.Add(time.Minute)},
			},
		)

		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 100})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hold.Qty != 100 {
			t.Fatalf("expected qty 100, got %d", hold.Qty)
		}
	})

	t.Run("exact capacity admits a single winner", func(t *testing.T) {
		svc, repo := makeSvc(
			[]domain.Product{{ID: "prod-1", Stock: 1}},
			nil,
		)

		if _, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 1}); err != nil {
			t.Fatalf("expected first reservation to succeed, got %v", err)
		}
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 1})
		if !errors.Is(err, domain.ErrOverCapacity) {
			t.Fatalf("expected ErrOverCapacity for the loser, got %v", err)
		}
		active := 0
		for _, h := range repo.holds {
			if h.Active(now) {
				active++
			}
		}
		if active != 1 {
			t.Fatalf("expected exactly 1 active hold, got %d", active)
		}
	})

	t.Run("product not found", func(t *testing.T) {
		svc, _ := makeSvc(nil, nil)

		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "missing", Qty: 1})
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("invalid quantity", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Product{{ID: "prod-1", Stock: 10}}, nil)

		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 0})
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("retries contention then succeeds", func(t *testing.T) {
		repo := newFakeHoldRepo([]domain.Product{{ID: "prod-1", Stock: 10}}, nil)
		repo.txFailures = 2
		svc := NewHoldService(repo, clock.NewFixed(now),
			WithHoldRetry(retry.NewPolicy(5, 0)),
		)

		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 1})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if hold.Qty != 1 {
			t.Fatalf("expected qty 1, got %d", hold.Qty)
		}
	})

	t.Run("exhausted retries surface overload", func(t *testing.T) {
		repo := newFakeHoldRepo([]domain.Product{{ID: "prod-1", Stock: 10}}, nil)
		repo.txFailures = 100
		svc := NewHoldService(repo, clock.NewFixed(now),
			WithHoldRetry(retry.NewPolicy(3, 0)),
		)

		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 1})
		if !errors.Is(err, domain.ErrSystemOverloaded) {
			t.Fatalf("expected ErrSystemOverloaded, got %v", err)
		}
	})

	t.Run("retried attempt stamps expiry from its own instant", func(t *testing.T) {
		repo := newFakeHoldRepo([]domain.Product{{ID: "prod-1", Stock: 10}}, nil)
		repo.txFailures = 1
		clk := &steppingClock{now: now, step: time.Second}
		svc := NewHoldService(repo, clk,
			WithHoldTTL(ttl),
			WithHoldRetry(retry.NewPolicy(5, 0)),
		)

		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "prod-1", Qty: 1})
		if err != nil {
			t.Fatalf("expected success after retry, got %v", err)
		}
		// First attempt reads now, fails; the winning second attempt
		// reads now+1s and must set expiry from that instant.
		want := now.Add(time.Second).Add(ttl)
		if !hold.ExpiresAt.Equal(want) {
			t.Fatalf("expected expires_at %v, got %v", want, hold.ExpiresAt)
		}
	})
}

// steppingClock advances by step on every Now call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestHoldService_ReleaseExpiredHolds(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deletes only expired unused holds", func(t *testing.T) {
		repo := newFakeHoldRepo(
			[]domain.Product{{ID: "prod-1", Stock: 10}},
			[]domain.Hold{
				{ID: "expired-1", ProductID: "prod-1", Qty: 2, ExpiresAt: now.Add(-time.Minute)},
				{ID: "expired-used", ProductID: "prod-1", Qty: 3, Used: true, ExpiresAt: now.Add(-time.Minute)},
				{ID: "live", ProductID: "prod-1", Qty: 1, ExpiresAt: now.Add(time.Minute)},
			},
		)
		svc := NewHoldService(repo, clock.NewFixed(now))

		count, err := svc.ReleaseExpiredHolds(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 released hold, got %d", count)
		}
		if len(repo.holds) != 2 {
			t.Fatalf("expected 2 remaining holds, got %d", len(repo.holds))
		}
	})

	t.Run("idempotent on second run", func(t *testing.T) {
		repo := newFakeHoldRepo(
			[]domain.Product{{ID: "prod-1", Stock: 10}},
			[]domain.Hold{
				{ID: "expired-1", ProductID: "prod-1", Qty: 2, ExpiresAt: now.Add(-time.Minute)},
			},
		)
		svc := NewHoldService(repo, clock.NewFixed(now))

		if _, err := svc.ReleaseExpiredHolds(context.Background()); err != nil {
			t.Fatalf("first run: %v", err)
		}
		count, err := svc.ReleaseExpiredHolds(context.Background())
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected 0 released on second run, got %d", count)
		}
	})
}

type fakeHoldRepo struct {
	products map[string]domain.Product
	holds    []domain.Hold

	// txFailures fails WithTx with contention this many times before
	// letting the body run.
	txFailures int
}

func newFakeHoldRepo(products []domain.Product, holds []domain.Hold) *fakeHoldRepo {
	p := make(map[string]domain.Product)
	for _, product := range products {
		p[product.ID] = product
	}
	return &fakeHoldRepo{
		products: p,
		holds:    append([]domain.Hold{}, holds...),
	}
}

func (f *fakeHoldRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.txFailures > 0 {
		f.txFailures--
		return domain.ErrContention
	}
	return fn(ctx)
}

func (f *fakeHoldRepo) GetProductForUpdate(_ context.Context, productID string) (domain.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeHoldRepo) SumActiveHolds(_ context.Context, productID string, now time.Time) (int, error) {
	total := 0
	for _, h := range f.holds {
		if h.ProductID == productID && h.Active(now) {
			total += h.Qty
		}
	}
	return total, nil
}

func (f *fakeHoldRepo) CreateHold(_ context.Context, hold domain.Hold) error {
	f.holds = append(f.holds, hold)
	return nil
}

func (f *fakeHoldRepo) DeleteExpiredHolds(_ context.Context, now time.Time) ([]string, error) {
	var productIDs []string
	kept := f.holds[:0]
	for _, h := range f.holds {
		if !h.Used && !h.ExpiresAt.After(now) {
			productIDs = append(productIDs, h.ProductID)
			continue
		}
		kept = append(kept, h)
	}
	f.holds = kept
	return productIDs, nil
}
