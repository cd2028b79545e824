// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs an operation a fixed number of times with a fixed pause
// between attempts. Every fatal research step goes through Do.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is used when Policy.MaxAttempts is not positive.
	DefaultMaxAttempts = 3

	// DefaultDelay is used when Policy.Delay is not positive.
	DefaultDelay = 2 * time.Second
)

// sleep waits for d or until ctx is done. Tests replace it to record delays
// without waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy is the attempt budget and inter-attempt delay. The delay is the
// same before every retry; it does not grow.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnFailure, if set, is called after every failed attempt.
	OnFailure func(label string, attempt int, err error)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultDelay
	}
	return p.Delay
}

// ExhaustedError reports that every attempt of a labeled step failed.
type ExhaustedError struct {
	Label    string
	Subject  string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s 在 %d 次尝试后仍然失败: %v", e.Label, e.Attempts, e.Last)
}

// Unwrap returns the error of the final attempt.
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls op until it succeeds or the policy's attempt budget is spent.
// Attempts are numbered from 1. There is no pause after the last attempt.
// If ctx is cancelled while waiting, Do returns ctx.Err() wrapped with the
// label. On exhaustion it returns an *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, log *zap.Logger, label, subject string, op func(context.Context) (T, error)) (T, error) {
	if log == nil {
		log = zap.NewNop()
	}
	maxAttempts := p.attempts()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		log.Debug("attempting step",
			zap.String("step", label),
			zap.String("subject", subject),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		log.Warn("step attempt failed",
			zap.String("step", label),
			zap.String("subject", subject),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if p.OnFailure != nil {
			p.OnFailure(label, attempt, err)
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.delay()); err != nil {
			return zero, fmt.Errorf("%s: %w", label, err)
		}
	}

	return zero, &ExhaustedError{
		Label:    label,
		Subject:  subject,
		Attempts: maxAttempts,
		Last:     lastErr,
	}
}
