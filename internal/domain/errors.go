package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrProductNameRequired    = errors.New("product name required")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidStock           = errors.New("invalid stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidID              = errors.New("invalid id")
	ErrOverCapacity           = errors.New("requested quantity exceeds available stock")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrHoldInvalid            = errors.New("hold expired or already used")
	ErrAlreadyPromoted        = errors.New("hold already has an order")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrInvalidOutcome         = errors.New("invalid payment outcome")

	// ErrContention marks a transient write conflict (deadlock or
	// serialization failure). It is retried internally and never reaches
	// callers directly.
	ErrContention = errors.New("write conflict")

	// ErrSystemOverloaded is returned once the contention retry budget is
	// exhausted; callers should back off and try again later.
	ErrSystemOverloaded = errors.New("system overloaded")
)
