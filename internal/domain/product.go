package domain

import "time"

// Product is a sale item with committed stock. Stock only ever decreases at
// settlement time; holds reserve against it without mutating it.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Stock      int
	CreatedAt  time.Time
}

// AvailableStock returns the display value for availability, clamped at zero.
// Admission control uses the raw (unclamped) difference computed under the
// product row lock, never this helper.
func AvailableStock(stock, reserved int) int {
	available := stock - reserved
	if available < 0 {
		return 0
	}
	return available
}
