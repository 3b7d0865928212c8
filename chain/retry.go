package chain

import (
	"context"
	"time"
)

// maxRetries bounds withRetry's transient-error retry loop, following the
// gateway's failure semantics: network errors retry up to 3 times with
// backoff, reverts never retry.
const maxRetries = 3

// retryBackoff is the base delay; each attempt doubles it.
const retryBackoff = 200 * time.Millisecond

// withRetry runs fn up to maxRetries+1 times, doubling the delay between
// attempts, stopping early if shouldRetry returns false for the error fn
// produced. Revert errors must never be passed to this helper. Neither
// driver calls it: evmdriver retries through its own withRetryTx, and
// trondriver does not retry.
func withRetry(ctx context.Context, shouldRetry func(error) bool, fn func() error) error {
	delay := retryBackoff
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
