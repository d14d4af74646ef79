package domain

import "time"

// PaymentReceipt records that a payment notification with a given idempotency
// key was accepted. An existing row with the same key means the notification
// was already handled and its effects must not be applied again. OrderID is
// nil when the notification arrived before its order existed.
type PaymentReceipt struct {
	ID             string
	OrderID        *string
	IdempotencyKey string
	CreatedAt      time.Time
}
