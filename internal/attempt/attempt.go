// Package attempt runs an ordered list of alternatives until one succeeds.
// It backs both the model fallback chain and the application launch escalation.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoAttempts is returned when First is called with an empty list.
var ErrNoAttempts = errors.New("attempt: no attempts given")

// Attempt is one named alternative.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Error reports that every attempt that ran failed. Err is the last error seen.
type Error struct {
	Tried int
	Last  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d attempt(s) failed, last %q: %v", e.Tried, e.Last, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type options struct {
	retryable func(error) bool
	timeout   time.Duration
}

// Option configures First.
type Option func(*options)

// Retryable sets the predicate deciding whether a failure moves on to the next
// attempt. When it returns false, First stops and surfaces that error.
// By default every error is retryable.
func Retryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// Timeout bounds each attempt individually. Zero means no per-attempt bound.
func Timeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// First runs attempts in order and returns the value and name of the first one
// that succeeds. On total failure it returns an *Error wrapping the last error.
// A cancelled ctx stops the list before the next attempt starts.
func First[T any](ctx context.Context, attempts []Attempt[T], opts ...Option) (T, string, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, "", ErrNoAttempts
	}

	o := options{retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		lastErr  error
		lastName string
		tried    int
	)
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr, lastName = err, a.Name
			}
			break
		}

		tried++
		v, err := run(ctx, a, o.timeout)
		if err == nil {
			if tried > 1 {
				slog.Debug("attempt succeeded after fallback", "name", a.Name, "tried", tried)
			}
			return v, a.Name, nil
		}
		lastErr, lastName = err, a.Name
		slog.Debug("attempt failed", "name", a.Name, "error", err)

		if !o.retryable(err) {
			break
		}
	}
	return zero, "", &Error{Tried: tried, Last: lastName, Err: lastErr}
}

func run[T any](ctx context.Context, a Attempt[T], timeout time.Duration) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.Run(ctx)
}
