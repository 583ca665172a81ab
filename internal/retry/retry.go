// Package retry re-runs pipeline operations that failed with a retryable
// storage error. Version conflicts, validation rejections, and malformed
// input are never retried.
package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"go.uber.org/zap"
)

// State tracks attempts for one operation on one persona.
type State struct {
	Operation   string
	Persona     string
	Count       int
	MaxRetries  int
	LastAttempt time.Time
}

// CanRetry returns true if more retries are allowed
func (r *State) CanRetry() bool {
	return r.Count < r.MaxRetries
}

// Increment increments the retry count and updates the timestamp
// Returns an error if max retries are exceeded
func (r *State) Increment(now time.Time) error {
	if !r.CanRetry() {
		return &ExhaustedError{
			Operation:  r.Operation,
			Persona:    r.Persona,
			Count:      r.Count,
			MaxRetries: r.MaxRetries,
		}
	}
	r.Count++
	r.LastAttempt = now
	return nil
}

// Policy configures Do.
type Policy struct {
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles on each retry.
	Backoff time.Duration
	Logger  *zap.Logger
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is wrapped in an ExhaustedError
// when the budget runs out. Cancellation of ctx stops waiting between attempts.
func Do[T any](ctx context.Context, p Policy, operation, persona string, fn func(context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	state := &State{Operation: operation, Persona: persona, MaxRetries: p.MaxRetries}
	delay := p.Backoff

	for {
		out, err := fn(ctx)
		if err == nil || !apperrors.IsRetryable(err) {
			return out, err
		}
		if !state.CanRetry() {
			return out, &ExhaustedError{
				Operation:  operation,
				Persona:    persona,
				Count:      state.Count,
				MaxRetries: state.MaxRetries,
				Last:       err,
			}
		}
		_ = state.Increment(time.Now())

		logger.Warn("retrying after storage failure",
			zap.String("operation", operation),
			zap.String("persona", persona),
			zap.Int("attempt", state.Count),
			zap.Int("max_retries", state.MaxRetries),
			zap.Error(err))

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		} else if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
}

// ExhaustedError indicates retry limit has been reached
type ExhaustedError struct {
	Operation  string
	Persona    string
	Count      int
	MaxRetries int
	Last       error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("retry limit exhausted for %s %q (%d/%d retries)",
		e.Operation, e.Persona, e.Count, e.MaxRetries)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

// Unwrap exposes the last attempt's error.
func (e *ExhaustedError) Unwrap() error { return e.Last }
