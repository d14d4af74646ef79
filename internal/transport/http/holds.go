package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
)

// HoldCreator is the minimal interface needed to reserve stock.
type HoldCreator interface {
	CreateHold(ctx context.Context, in app.CreateHoldInput) (domain.Hold, error)
}

// HandleCreateHold returns an HTTP handler for reserving stock at checkout.
func HandleCreateHold(svc HoldCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ProductID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "product_id is required")
			return
		}
		if req.Qty <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		hold, err := svc.CreateHold(r.Context(), app.CreateHoldInput{
			ProductID: req.ProductID,
			Qty:       req.Qty,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrInvalidQuantity):
				writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
			case errors.Is(err, domain.ErrProductNotFound):
				writeError(w, http.StatusNotFound, codeProductNotFound, err.Error())
			case errors.Is(err, domain.ErrOverCapacity):
				// Caller-correctable: try a smaller quantity.
				writeError(w, http.StatusUnprocessableEntity, codeOverCapacity, err.Error())
			case errors.Is(err, domain.ErrSystemOverloaded):
				writeError(w, http.StatusServiceUnavailable, codeSystemOverloaded, "could not reserve stock under current load, try again")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := createHoldResponse{
			HoldID:    hold.ID,
			Qty:       hold.Qty,
			ExpiresAt: hold.ExpiresAt,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createHoldRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type createHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	Qty       int       `json:"qty"`
	ExpiresAt time.Time `json:"expires_at"`
}
