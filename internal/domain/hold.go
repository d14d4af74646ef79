package domain

import "time"

// Hold reserves quantity against a product for a limited time. Used is
// monotonic: once a hold is consumed (by promotion or settlement) it never
// becomes reservable again. Expired unused holds are deleted by the sweep.
type Hold struct {
	ID        string
	ProductID string
	Qty       int
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Active reports whether the hold still counts toward reserved stock.
func (h Hold) Active(now time.Time) bool {
	return !h.Used && h.ExpiresAt.After(now)
}
