package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
)

// HoldPromoter is the minimal interface needed to turn a hold into an order.
type HoldPromoter interface {
	PromoteHold(ctx context.Context, in app.PromoteHoldInput) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler that promotes a hold into a
// pre-payment order.
func HandleCreateOrder(svc HoldPromoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.HoldID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "hold_id is required")
			return
		}

		order, err := svc.PromoteHold(r.Context(), app.PromoteHoldInput{HoldID: req.HoldID})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrHoldNotFound):
				writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
			case errors.Is(err, domain.ErrHoldInvalid):
				writeError(w, http.StatusUnprocessableEntity, codeHoldInvalid, err.Error())
			case errors.Is(err, domain.ErrAlreadyPromoted):
				writeError(w, http.StatusConflict, codeAlreadyPromoted, err.Error())
			case errors.Is(err, domain.ErrSystemOverloaded):
				writeError(w, http.StatusServiceUnavailable, codeSystemOverloaded, "could not create order under current load, try again")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := createOrderResponse{
			OrderID: order.ID,
			Status:  string(order.Status),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createOrderRequest struct {
	HoldID string `json:"hold_id"`
}

type createOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
