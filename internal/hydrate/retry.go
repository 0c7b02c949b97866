package hydrate

import (
	"context"
	"errors"
	"time"

	"github.com/rendis/opfilter/pkg/schema"
)

// Backoff strategies.
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// RetryPolicy controls how failed hydrations are retried.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     string
}

// DefaultRetryPolicy returns the policy used by the CLI.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       50 * time.Millisecond,
		MaxDelay:    time.Second,
		Backoff:     BackoffExponential,
	}
}

// IsRetryable classifies whether a failed hydration should be retried.
// Cancellation is never retried; a deadline is. FilterErrors decide by code;
// any other error is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var fe *schema.FilterError
	if errors.As(err, &fe) {
		return fe.IsRetryable()
	}
	return true
}

// ComputeBackoff returns the delay before retry number attempt (0-based).
func ComputeBackoff(policy RetryPolicy, attempt int) time.Duration {
	if policy.Delay <= 0 {
		return 0
	}

	var delay time.Duration
	switch policy.Backoff {
	case BackoffExponential:
		delay = policy.Delay << min(attempt, 30)
	case BackoffLinear:
		delay = policy.Delay * time.Duration(attempt+1)
	default:
		delay = policy.Delay
	}

	if policy.MaxDelay > 0 && (delay > policy.MaxDelay || delay < 0) {
		delay = policy.MaxDelay
	}
	return delay
}

// waitForBackoff sleeps for delay or returns early when ctx is done.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
