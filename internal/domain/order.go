package domain

import "time"

type OrderStatus string

const (
	OrderStatusPrePayment OrderStatus = "pre_payment"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// IsFinal reports whether the status is terminal. Final orders never
// transition again; settlement uses this as its duplicate-effect guard.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Order is created from exactly one hold (unique hold_id) and starts in
// pre_payment awaiting the payment provider's outcome.
type Order struct {
	ID        string
	HoldID    string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
