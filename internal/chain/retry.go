package chain

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// maxRetryDelay caps the backoff so rate-limited endpoints are retried at a
// steady pace.
const maxRetryDelay = 5 * time.Second

// withRetry runs fn until it succeeds, the error is permanent, or retries are
// exhausted. The delay doubles after each attempt up to maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || permanent(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, maxRetryDelay)
	}
}

func permanent(err error) bool {
	return errors.Is(err, rpc.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
