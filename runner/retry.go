package runner

import (
	"math"
	"time"

	process "github.com/goliatone/go-process"
)

// RetryStrategy returns how long to wait before the next attempt. The
// attempt index starts at 0 and grows after each interrupted call.
type RetryStrategy interface {
	SleepDuration(attempt int, err error) time.Duration
}

// RetryDecision is the verdict on one interrupted attempt.
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
	Metadata    map[string]any
}

// RetryDecider is implemented by strategies that also decide whether an
// error is worth retrying.
type RetryDecider interface {
	Decide(attempt int, err error) RetryDecision
}

// DecideRetry asks the strategy for a decision. Contract violations are
// never retried: calling again cannot fix a misuse of the engine.
func DecideRetry(strategy RetryStrategy, attempt int, err error) RetryDecision {
	if process.IsContractViolation(err) {
		return RetryDecision{Metadata: map[string]any{"reason": "contract_violation"}}
	}
	if decider, ok := strategy.(RetryDecider); ok {
		return decider.Decide(attempt, err)
	}
	if strategy == nil {
		return RetryDecision{ShouldRetry: true}
	}
	return RetryDecision{ShouldRetry: true, Delay: strategy.SleepDuration(attempt, err)}
}

// NoDelayStrategy retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(int, error) time.Duration { return 0 }

// ExponentialBackoffStrategy waits Base, Base*Factor, Base*Factor^2 and so
// on, capped at Max when Max is positive.
//
//	runner.WithRetryStrategy(runner.ExponentialBackoffStrategy{
//	    Base:   100 * time.Millisecond,
//	    Factor: 2,
//	    Max:    5 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 1
	}
	delay := time.Duration(float64(e.Base) * math.Pow(factor, float64(attempt)))
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

// RetryIf retries only errors accepted by Match, delegating delays to Next.
type RetryIf struct {
	Match func(error) bool
	Next  RetryStrategy
}

func (r RetryIf) SleepDuration(attempt int, err error) time.Duration {
	if r.Next == nil {
		return 0
	}
	return r.Next.SleepDuration(attempt, err)
}

func (r RetryIf) Decide(attempt int, err error) RetryDecision {
	if r.Match != nil && !r.Match(err) {
		return RetryDecision{Metadata: map[string]any{"reason": "not_retryable"}}
	}
	return RetryDecision{ShouldRetry: true, Delay: r.SleepDuration(attempt, err)}
}
