// SPDX-License-Identifier: Apache-2.0

// Package resilience provides timeout and retry patterns for skill execution.
package resilience

import (
	"context"
	"time"

	"github.com/ZeoXel/skillslike/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation.
	// Zero means no bound.
	Duration time.Duration
}

// WithTimeout executes fn with a timeout boundary.
// Returns errors.CodeTimeout if the deadline is exceeded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result
// and error. fn receives the bounded context so blocking calls inside it are
// cancelled when the deadline passes; the caller still gets the typed timeout
// error even if fn never returns.
func WithTimeoutResult(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if config.Duration == 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value interface{}
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
