package postgres

import (
	"context"
	"time"

	"github.com/anivouch/anivouch/internal/apperrors"
)

const (
	retryAttempts  = 2
	retryBaseDelay = 100 * time.Millisecond
)

// withRetry runs op, retrying transient connection failures a fixed number
// of times with linear backoff. Non-transient errors return immediately and
// reach the error normalizer untouched.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBaseDelay):
			}
		}

		err = op()
		if err == nil || !apperrors.IsTransient(err) {
			return err
		}
	}
	return err
}
