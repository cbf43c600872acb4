package engine

import (
	"context"
	"time"
)

// FailurePolicy decides what happens when a message handler fails. The
// message is consumed either way; the policy only controls in-process
// retries before the failure is logged and dropped.
type FailurePolicy interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// DropPolicy runs the handler once and surfaces the error for logging.
// This mirrors the historical log-and-drop behavior.
type DropPolicy struct{}

func (DropPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	return op(ctx)
}

// RetryPolicy re-runs a failed handler with exponential backoff. It buys
// resilience against transient store faults without a dead-letter topic.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the second try; it doubles per retry.
	Backoff time.Duration
}

func (p RetryPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return err
}
