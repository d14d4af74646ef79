package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
)

// Settler is the minimal interface needed to apply a payment outcome.
type Settler interface {
	Settle(ctx context.Context, in app.SettleInput) (app.SettleResult, error)
}

// HandlePaymentWebhook returns an HTTP handler for payment provider
// notifications. Duplicates and redeliveries are expected; they come back as
// already_applied with status 200. A notification for an order that does not
// exist yet is accepted as pending with status 202.
func HandlePaymentWebhook(svc Settler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentWebhookRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.IdempotencyKey == "" {
			writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
			return
		}
		if req.OrderID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "order_id is required")
			return
		}

		res, err := svc.Settle(r.Context(), app.SettleInput{
			OrderID:        req.OrderID,
			IdempotencyKey: req.IdempotencyKey,
			Outcome:        app.Outcome(req.Status),
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidOutcome):
				writeError(w, http.StatusBadRequest, codeInvalidOutcome, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrIdempotencyKeyRequired):
				writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
			case errors.Is(err, domain.ErrSystemOverloaded):
				writeError(w, http.StatusServiceUnavailable, codeSystemOverloaded, "could not process notification under current load, retry delivery")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		status := http.StatusOK
		if res.Status == app.SettlePending {
			status = http.StatusAccepted
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(paymentWebhookResponse{Result: string(res.Status)})
	}
}

type paymentWebhookRequest struct {
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

type paymentWebhookResponse struct {
	Result string `json:"result"`
}
