// Package retry implements the contention retry policy shared by every
// mutating operation: bounded attempts with a linearly increasing delay so
// that concurrent contenders de-correlate instead of colliding again.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/metrics"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 100 * time.Millisecond
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewPolicy returns a policy with defaults applied for out-of-range values.
func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Do runs fn, retrying the whole body from scratch whenever it fails with
// domain.ErrContention. The delay before attempt n is BaseDelay * n.
// Exhausting the budget surfaces domain.ErrSystemOverloaded; any other error
// is returned as-is on the first occurrence. op labels the retry metric.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrContention) {
			return err
		}
		metrics.TxRetries.WithLabelValues(op).Inc()
		if attempt == p.MaxAttempts {
			break
		}
		if waitErr := sleep(ctx, p.BaseDelay*time.Duration(attempt)); waitErr != nil {
			return waitErr
		}
	}
	return domain.ErrSystemOverloaded
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
