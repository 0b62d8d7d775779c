// Package runner calls processes with a time budget and retries
// interrupted calls. Business failures are outcomes, not errors, so they
// are returned as they are and never retried.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-errors"

	process "github.com/goliatone/go-process"
)

const ErrCodeRetriesExhausted = "RUNNER_RETRIES_EXHAUSTED"

// Caller is anything that runs a process from call attributes. Each
// attempt must start a fresh instance, as *process.Definition does.
type Caller interface {
	Call(ctx context.Context, attrs map[string]any) (process.Outcome, error)
}

type Runner struct {
	mu sync.Mutex

	logger        process.Logger
	errorHandler  func(attempt int, err error)
	retryStrategy RetryStrategy

	calls      int
	interrupts int

	maxRetries int
	timeout    time.Duration
	deadline   time.Time
}

func New(opts ...Option) *Runner {
	r := &Runner{
		errorHandler:  func(int, error) {},
		retryStrategy: NoDelayStrategy{},
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.logger == nil {
		r.logger = process.NewFmtLogger(nil, process.LevelInfo)
	}
	return r
}

// Call runs c until it returns without error, the retries are spent, the
// strategy gives up or the context ends.
func (r *Runner) Call(ctx context.Context, c Caller, attrs map[string]any) (process.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := r.contextWithSettings(ctx)
	defer cancel()

	r.mu.Lock()
	r.calls++
	maxRetries := r.maxRetries
	strategy := r.retryStrategy
	r.mu.Unlock()

	var (
		out process.Outcome
		err error
	)
	attempt := 0
	for ; ; attempt++ {
		out, err = c.Call(ctx, attrs)
		if err == nil {
			return out, nil
		}

		r.mu.Lock()
		r.interrupts++
		r.mu.Unlock()
		r.errorHandler(attempt, err)

		if process.IsContractViolation(err) {
			return out, err
		}
		if attempt >= maxRetries {
			break
		}
		decision := DecideRetry(strategy, attempt, err)
		if !decision.ShouldRetry {
			return out, err
		}

		r.logger.WithContext(ctx).Warn("attempt %d of %d interrupted, retrying in %s: %v",
			attempt+1, maxRetries+1, decision.Delay, err)

		if werr := wait(ctx, decision.Delay); werr != nil {
			return out, errors.Wrap(err, errors.CategoryOperation, "retry aborted").
				WithTextCode(ErrCodeRetriesExhausted).
				WithMetadata(map[string]any{"attempts": attempt + 1, "cause": werr.Error()})
		}
	}

	if maxRetries == 0 {
		return out, err
	}
	return out, errors.Wrap(err, errors.CategoryOperation, fmt.Sprintf("interrupted after %d attempts", attempt+1)).
		WithTextCode(ErrCodeRetriesExhausted).
		WithMetadata(map[string]any{"attempts": attempt + 1})
}

// Stats returns the number of calls and of interrupted attempts so far.
func (r *Runner) Stats() (calls, interrupts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.interrupts
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case r.timeout != 0 && !r.deadline.IsZero():
		ctx, cancelTimeout := context.WithTimeout(parent, r.timeout)
		ctxDeadline, cancelDeadline := context.WithDeadline(ctx, r.deadline)
		return ctxDeadline, func() {
			cancelDeadline()
			cancelTimeout()
		}
	case r.timeout != 0:
		return context.WithTimeout(parent, r.timeout)
	case !r.deadline.IsZero():
		return context.WithDeadline(parent, r.deadline)
	default:
		return parent, func() {}
	}
}
