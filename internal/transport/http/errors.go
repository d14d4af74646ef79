package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeForbidden           = "forbidden"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeProductNameRequired = "product_name_required"
	codeInvalidPrice        = "invalid_price"
	codeInvalidStock        = "invalid_stock"
	codeProductNotFound     = "product_not_found"
	codeOverCapacity        = "over_capacity"
	codeHoldNotFound        = "hold_not_found"
	codeHoldInvalid         = "hold_invalid"
	codeAlreadyPromoted     = "already_promoted"
	codeIdempotencyRequired = "idempotency_key_required"
	codeInvalidOutcome      = "invalid_outcome"
	codeSystemOverloaded    = "system_overloaded"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}
