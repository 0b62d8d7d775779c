package runner

import (
	"time"

	process "github.com/goliatone/go-process"
)

type Option func(*Runner)

// WithTimeout bounds every call, retries included.
func WithTimeout(t time.Duration) Option {
	return func(r *Runner) {
		r.timeout = t
	}
}

func WithDeadline(d time.Time) Option {
	return func(r *Runner) {
		r.deadline = d
	}
}

// WithMaxRetries sets how many times an interrupted call is repeated.
func WithMaxRetries(max int) Option {
	return func(r *Runner) {
		r.maxRetries = max
	}
}

func WithRetryStrategy(s RetryStrategy) Option {
	return func(r *Runner) {
		r.retryStrategy = s
	}
}

// WithErrorHandler observes every interrupted attempt.
func WithErrorHandler(h func(attempt int, err error)) Option {
	return func(r *Runner) {
		if h == nil {
			h = func(int, error) {}
		}
		r.errorHandler = h
	}
}

func WithLogger(l process.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}
