// File: internal/pipeline/retry.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-eval-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Policy bounds the retry behavior of one step.
type Policy struct {
	MaxRetries    int           // additional attempts after the first
	BaseDelay     time.Duration // delay before the first retry
	BackoffFactor float64       // delay multiplier per attempt
	Timeout       time.Duration // per-attempt deadline; 0 = none
}

// DefaultPolicy matches the most common step configuration.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, BackoffFactor: 2}
}

// RetryExhaustedError reports that every attempt failed. It wraps the last
// underlying cause so callers can errors.Is/As through it.
type RetryExhaustedError struct {
	Step     string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempts: %v", e.Step, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// nonRetryable marks errors that must not consume the retry budget.
type nonRetryable struct{ err error }

func (n *nonRetryable) Error() string { return n.err.Error() }
func (n *nonRetryable) Unwrap() error { return n.err }

// NonRetryable wraps an error so the executor fails immediately instead of
// retrying. Validation and not-found failures use this.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryable{err: err}
}

func isNonRetryable(err error) bool {
	var nr *nonRetryable
	return errors.As(err, &nr)
}

// Executor runs a single unit of work with bounded retries and exponential
// backoff. It does not decide whether a failure is worth retrying; the
// operation signals that by returning a NonRetryable error.
type Executor struct {
	log *zerolog.Logger
}

func NewExecutor(log *zerolog.Logger) *Executor {
	return &Executor{log: log}
}

// Execute attempts op up to p.MaxRetries+1 times, sleeping
// BaseDelay*BackoffFactor^i between failures. A per-attempt timeout expiry
// counts against the budget like any other failure. The loop observes ctx
// before every attempt and while backing off; once cancellation is seen no
// further attempt starts.
func (e *Executor) Execute(ctx context.Context, name string, op func(ctx context.Context) error, p Policy) error {
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2
	}

	var last error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return &RetryExhaustedError{Step: name, Attempts: attempt, Last: last}
			}
			return err
		}

		start := time.Now()
		err := e.runAttempt(ctx, op, p.Timeout)
		elapsed := time.Since(start)

		if err == nil {
			metrics.ObserveStepAttempt(name, "success", elapsed.Milliseconds(), true)
			if attempt > 0 {
				e.log.Info().Str("step", name).Int("attempt", attempt+1).Msg("step succeeded after retries")
			} else {
				e.log.Debug().Str("step", name).Dur("duration", elapsed).Msg("step succeeded")
			}
			return nil
		}

		outcome := "failure"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ObserveStepAttempt(name, outcome, elapsed.Milliseconds(), false)
		e.log.Warn().Err(err).Str("step", name).Int("attempt", attempt+1).Dur("duration", elapsed).Msg("step attempt failed")

		if isNonRetryable(err) {
			return err
		}
		last = err

		if attempt < p.MaxRetries {
			delay := backoffDelay(p, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &RetryExhaustedError{Step: name, Attempts: attempt + 1, Last: last}
			}
		}
	}

	e.log.Error().Err(last).Str("step", name).Int("attempts", p.MaxRetries+1).Msg("step retries exhausted")
	return &RetryExhaustedError{Step: name, Attempts: p.MaxRetries + 1, Last: last}
}

func (e *Executor) runAttempt(ctx context.Context, op func(ctx context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func backoffDelay(p Policy, attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	return time.Duration(d)
}
