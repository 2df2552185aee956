package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	// MaxRetries bounds how many times a failed call is reattempted.
	MaxRetries = 3

	backoffBase = time.Second
	jitterCap   = 500 * time.Millisecond
)

// retryableError marks an error as safe to retry by the Do loop.
type retryableError struct {
	err error
}

func (e retryableError) Error() string {
	return e.err.Error()
}

func (e retryableError) Unwrap() error {
	return e.err
}

// MarkRetryable wraps an error so the retry loop treats it as transient.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err has been marked as transient.
func IsRetryable(err error) bool {
	var target retryableError
	return errors.As(err, &target)
}

// BackoffDelay returns the exponential delay before retry attempt n
// (1-based): 2^n seconds plus 0-500ms of jitter against thundering herds.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := backoffBase * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int64N(int64(jitterCap)))
	return delay + jitter
}

// SleepContext waits for delay unless the context is canceled first.
func SleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes op, retrying transient failures up to MaxRetries times with
// backoff. Each call gets a fresh attempt counter. Non-transient errors and
// caller-initiated cancellation propagate immediately. The backoff function
// may be nil, selecting BackoffDelay.
func Do(ctx context.Context, backoff func(int) time.Duration, op func(context.Context) error) error {
	if backoff == nil {
		backoff = BackoffDelay
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		if !IsRetryable(err) || attempt > MaxRetries {
			return err
		}
		if serr := SleepContext(ctx, backoff(attempt)); serr != nil {
			return serr
		}
	}
}
