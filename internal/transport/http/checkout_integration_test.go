package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/storage/postgres"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/testutil"
)

func TestCreateHold_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	repo := postgres.NewHoldRepository(pool)
	now := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	svc := app.NewHoldService(repo, clock.NewFixed(now))

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	productID := testutil.InsertProduct(t, ctx, pool, "Sneaker", 12900, 5)

	body := []byte(`{"product_id":"` + productID + `","qty":3}`)
	req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	HandleCreateHold(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createHoldResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.HoldID == "" {
		t.Fatalf("expected hold id to be set")
	}
	if !resp.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("expected expires_at %v, got %v", now.Add(2*time.Minute), resp.ExpiresAt)
	}

	// 3 of 5 are reserved now; asking for 3 more must be over capacity.
	req2 := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBuffer(body))
	rec2 := httptest.NewRecorder()
	HandleCreateHold(svc).ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rec2.Code, rec2.Body.String())
	}

	remainder := []byte(`{"product_id":"` + productID + `","qty":2}`)
	req3 := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBuffer(remainder))
	rec3 := httptest.NewRecorder()
	HandleCreateHold(svc).ServeHTTP(rec3, req3)

	if rec3.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for remainder, got %d: %s", rec3.Code, rec3.Body.String())
	}
}

func TestCheckoutFlow_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	holdRepo := postgres.NewHoldRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	settlementRepo := postgres.NewSettlementRepository(pool)

	now := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	holdSvc := app.NewHoldService(holdRepo, clock.NewFixed(now))
	orderSvc := app.NewOrderService(orderRepo, clock.NewFixed(now.Add(time.Minute)))
	settlementSvc := app.NewSettlementService(settlementRepo, clock.NewFixed(now.Add(90*time.Second)))

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	productID := testutil.InsertProduct(t, ctx, pool, "Sneaker", 12900, 10)

	mux := http.NewServeMux()
	mux.Handle("/holds", HandleCreateHold(holdSvc))
	mux.Handle("/orders", HandleCreateOrder(orderSvc))
	mux.Handle("/payments/webhook", HandlePaymentWebhook(settlementSvc))

	holdBody := []byte(`{"product_id":"` + productID + `","qty":2}`)
	holdReq := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBuffer(holdBody))
	holdRec := httptest.NewRecorder()
	mux.ServeHTTP(holdRec, holdReq)

	if holdRec.Code != http.StatusCreated {
		t.Fatalf("create hold: expected 201, got %d: %s", holdRec.Code, holdRec.Body.String())
	}
	var hold createHoldResponse
	if err := json.NewDecoder(holdRec.Body).Decode(&hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}

	orderBody := []byte(`{"hold_id":"` + hold.HoldID + `"}`)
	orderReq := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(orderBody))
	orderRec := httptest.NewRecorder()
	mux.ServeHTTP(orderRec, orderReq)

	if orderRec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", orderRec.Code, orderRec.Body.String())
	}
	var order createOrderResponse
	if err := json.NewDecoder(orderRec.Body).Decode(&order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.Status != "pre_payment" {
		t.Fatalf("expected pre_payment order, got %s", order.Status)
	}

	// A second promotion of the same hold must not create another order.
	orderReq2 := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(orderBody))
	orderRec2 := httptest.NewRecorder()
	mux.ServeHTTP(orderRec2, orderReq2)
	if orderRec2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate promotion: expected 422, got %d: %s", orderRec2.Code, orderRec2.Body.String())
	}

	webhookBody := []byte(`{"order_id":"` + order.OrderID + `","idempotency_key":"pay-1","status":"success"}`)
	webhookReq := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBuffer(webhookBody))
	webhookRec := httptest.NewRecorder()
	mux.ServeHTTP(webhookRec, webhookReq)

	if webhookRec.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", webhookRec.Code, webhookRec.Body.String())
	}
	var settled paymentWebhookResponse
	if err := json.NewDecoder(webhookRec.Body).Decode(&settled); err != nil {
		t.Fatalf("decode webhook: %v", err)
	}
	if settled.Result != string(app.SettleApplied) {
		t.Fatalf("expected applied, got %s", settled.Result)
	}

	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock 8 after settlement, got %d", stock)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, order.OrderID).Scan(&status); err != nil {
		t.Fatalf("query order: %v", err)
	}
	if status != "paid" {
		t.Fatalf("expected paid, got %s", status)
	}

	// Redelivery of the same notification is absorbed without side effects.
	webhookReq2 := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBuffer(webhookBody))
	webhookRec2 := httptest.NewRecorder()
	mux.ServeHTTP(webhookRec2, webhookReq2)

	if webhookRec2.Code != http.StatusOK {
		t.Fatalf("webhook redelivery: expected 200, got %d", webhookRec2.Code)
	}
	var settled2 paymentWebhookResponse
	if err := json.NewDecoder(webhookRec2.Body).Decode(&settled2); err != nil {
		t.Fatalf("decode webhook redelivery: %v", err)
	}
	if settled2.Result != string(app.SettleAlreadyApplied) {
		t.Fatalf("expected already_applied, got %s", settled2.Result)
	}
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock unchanged after redelivery, got %d", stock)
	}
}

func TestConcurrentHolds_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	svc := app.NewHoldService(postgres.NewHoldRepository(pool), clock.NewSystem())
	handler := HandleCreateHold(svc)

	fire := func(productID string, qty, buyers int) map[int]int {
		t.Helper()
		codes := make([]int, buyers)
		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(buyers)
		for i := 0; i < buyers; i++ {
			go func(idx int) {
				defer done.Done()
				start.Wait()
				body := []byte(`{"product_id":"` + productID + `","qty":` + fmt.Sprint(qty) + `}`)
				req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBuffer(body))
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				codes[idx] = rec.Code
			}(i)
		}
		start.Done()
		done.Wait()

		counts := make(map[int]int)
		for _, code := range codes {
			counts[code]++
		}
		return counts
	}

	t.Run("exact contention admits a single winner", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		productID := testutil.InsertProduct(t, ctx, pool, "Sneaker", 12900, 3)

		// Both buyers want the entire stock; the product row lock must
		// serialize them so exactly one wins.
		counts := fire(productID, 3, 2)
		if counts[http.StatusCreated] != 1 || counts[http.StatusUnprocessableEntity] != 1 {
			t.Fatalf("expected one 201 and one 422, got %v", counts)
		}

		var holds int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM holds WHERE product_id = $1`, productID).Scan(&holds); err != nil {
			t.Fatalf("query holds: %v", err)
		}
		if holds != 1 {
			t.Fatalf("expected exactly one hold, got %d", holds)
		}
	})

	t.Run("reserved quantity never exceeds stock", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		productID := testutil.InsertProduct(t, ctx, pool, "Sneaker", 12900, 5)

		counts := fire(productID, 1, 8)
		if counts[http.StatusCreated] != 5 || counts[http.StatusUnprocessableEntity] != 3 {
			t.Fatalf("expected 5x201 and 3x422, got %v", counts)
		}

		var reserved int
		if err := pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM holds WHERE product_id = $1`, productID).Scan(&reserved); err != nil {
			t.Fatalf("query reserved: %v", err)
		}
		if reserved != 5 {
			t.Fatalf("expected reserved 5, got %d", reserved)
		}
	})
}
