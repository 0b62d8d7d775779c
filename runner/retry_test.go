package runner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	process "github.com/goliatone/go-process"
)

type fixedDecisionStrategy struct {
	decision RetryDecision
}

func (s fixedDecisionStrategy) SleepDuration(int, error) time.Duration { return time.Hour }

func (s fixedDecisionStrategy) Decide(int, error) RetryDecision { return s.decision }

func TestDecideRetryUsesDeciderWhenAvailable(t *testing.T) {
	strategy := fixedDecisionStrategy{
		decision: RetryDecision{
			ShouldRetry: false,
			Delay:       25 * time.Millisecond,
			Metadata:    map[string]any{"source": "test"},
		},
	}

	decision := DecideRetry(strategy, 1, fmt.Errorf("boom"))
	assert.False(t, decision.ShouldRetry)
	assert.Equal(t, 25*time.Millisecond, decision.Delay)
	assert.Equal(t, "test", decision.Metadata["source"])
}

func TestDecideRetryFallsBackToSleepDuration(t *testing.T) {
	strategy := ExponentialBackoffStrategy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Max:    100 * time.Millisecond,
	}
	decision := DecideRetry(strategy, 2, fmt.Errorf("boom"))
	assert.True(t, decision.ShouldRetry)
	assert.Equal(t, 40*time.Millisecond, decision.Delay)

	assert.Equal(t, 100*time.Millisecond, strategy.SleepDuration(8, nil))
}

func TestDecideRetryRefusesContractViolations(t *testing.T) {
	decision := DecideRetry(NoDelayStrategy{}, 0, process.ErrAlreadyCalled)
	assert.False(t, decision.ShouldRetry)
	assert.Equal(t, "contract_violation", decision.Metadata["reason"])
}

func TestRetryIfFiltersErrors(t *testing.T) {
	transient := fmt.Errorf("transient")
	strategy := RetryIf{
		Match: func(err error) bool { return err == transient },
		Next:  ExponentialBackoffStrategy{Base: time.Millisecond, Factor: 3},
	}

	assert.Equal(t, RetryDecision{ShouldRetry: true, Delay: 3 * time.Millisecond}, DecideRetry(strategy, 1, transient))

	other := DecideRetry(strategy, 1, fmt.Errorf("permanent"))
	assert.False(t, other.ShouldRetry)
	assert.Equal(t, "not_retryable", other.Metadata["reason"])
}
