// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ZeoXel/skillslike/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// Jitter adds randomness to backoff to prevent thundering herd.
	// Value between 0 and 1; 0.1 means ±10% jitter.
	Jitter float64

	// IsRecoverable determines if an error should be retried.
	// If nil, all errors are considered recoverable.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// Do executes fn with retry logic, returning the last error if all attempts fail.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = isRecoverableDefault
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := rc.backoff(attempt)
			select {
			case <-ctx.Done():
				return errors.New(errors.CodeTimeout, "context canceled during retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", rc.MaxAttempts)
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !rc.IsRecoverable(err) {
			return err
		}
	}
	return lastErr
}

func (rc RetryConfig) backoff(attempt int) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}

	if rc.Jitter > 0 {
		jitter := delay.Seconds() * rc.Jitter
		delta := 2 * jitter * (rand.Float64() - 0.5)
		delay = time.Duration(float64(delay) + delta*float64(time.Second))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*errors.AgentError); ok {
		return ae.Recoverable
	}
	return true
}
