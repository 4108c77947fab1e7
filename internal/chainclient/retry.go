package chainclient

import (
	"context"
	"math/rand"
	"time"
)

// retryPolicy is a capped exponential backoff with full jitter, matching
// the hand-rolled retry idiom the teacher uses around RPC dials rather than
// pulling in a dedicated backoff library.
type retryPolicy struct {
	baseDelay   time.Duration
	factor      float64
	maxAttempts int
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{baseDelay: 100 * time.Millisecond, factor: 2, maxAttempts: 5}
}

// do runs fn, retrying while shouldRetry(err) is true, up to maxAttempts.
// The last error is returned if every attempt fails.
func (p retryPolicy) do(ctx context.Context, shouldRetry func(error) bool, fn func() error) error {
	var err error
	delay := p.baseDelay
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt == p.maxAttempts-1 {
			break
		}
		jittered := time.Duration(rand.Int63n(int64(delay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay = time.Duration(float64(delay) * p.factor)
	}
	return err
}
