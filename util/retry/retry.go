package retry

import (
	"context"
	"time"

	"github.com/blockforge/mina-indexer-core/util"
)

// Retry calls fn until it succeeds, ctx is cancelled, or the configured
// retry count is exhausted (SetOptions.InfiniteRetry disables the
// latter). Each failure is logged via log (if non-nil) with
// SetOptions.Message prefixed, then the goroutine sleeps for a backoff
// duration before trying again. After the n-th failed attempt (n from
// 1) the wait is linear (BackoffDurationType * BackoffMultiplier * n)
// by default, or exponential (BackoffDurationType * BackoffFactor^(n-1),
// capped at MaxBackoff) when WithExponentialBackoff is set.
func Retry[T any](ctx context.Context, log util.Logger, fn func() (T, error), opts ...Options) (T, error) {
	options := NewSetOptions(opts...)

	var zero T
	var lastErr error

	for attempt := 0; options.InfiniteRetry || attempt < options.RetryCount; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if log != nil {
			log.Errorf("%s attempt %d: %v", options.Message, attempt+1, err)
		}

		wait := options.backoff(attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}

func (o *SetOptions) backoff(attempt int) time.Duration {
	if !o.ExponentialBackoff {
		return o.BackoffDurationType * time.Duration(o.BackoffMultiplier*(attempt+1))
	}

	d := o.BackoffDurationType
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * o.BackoffFactor)
		if d >= o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	if d > o.MaxBackoff {
		return o.MaxBackoff
	}
	return d
}
