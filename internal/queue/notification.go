package queue

import "fmt"

// Notification is a payment outcome delivered over the notification topic.
// It carries the same fields as the webhook payload and feeds the same
// settlement operation, so duplicates across both channels collapse on the
// idempotency key.
type Notification struct {
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

// Validate rejects malformed messages before they reach settlement.
func (n Notification) Validate() error {
	if n.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if n.IdempotencyKey == "" {
		return fmt.Errorf("idempotency_key is required")
	}
	if n.Status != "success" && n.Status != "failure" {
		return fmt.Errorf("status must be success or failure, got %q", n.Status)
	}
	return nil
}
