package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	process "github.com/goliatone/go-process"
)

func flaky(failures int, calls *int) *process.Definition {
	return process.MustDefine("Flaky", func(context.Context, *process.Process, process.Values) (process.Outcome, error) {
		*calls++
		if *calls <= failures {
			return process.Outcome{}, fmt.Errorf("attempt %d failed", *calls)
		}
		return process.Success("done", "calls", *calls), nil
	})
}

func TestRunnerRetriesInterruptedCalls(t *testing.T) {
	calls := 0
	var seen []int
	r := New(
		WithMaxRetries(3),
		WithErrorHandler(func(attempt int, err error) { seen = append(seen, attempt) }),
	)

	out, err := r.Call(context.Background(), flaky(2, &calls), nil)
	require.NoError(t, err)
	assert.True(t, out.IsSuccess())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1}, seen)

	total, interrupts := r.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 2, interrupts)
}

func TestRunnerWrapsExhaustedRetries(t *testing.T) {
	calls := 0
	r := New(WithMaxRetries(2))

	_, err := r.Call(context.Background(), flaky(10, &calls), nil)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, ErrCodeRetriesExhausted, process.ErrorCode(err))
	assert.Contains(t, err.Error(), "interrupted after 3 attempts")
}

func TestRunnerWithoutRetriesReturnsOriginalError(t *testing.T) {
	calls := 0
	_, err := New().Call(context.Background(), flaky(1, &calls), nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "attempt 1 failed", err.Error())
}

func TestRunnerNeverRetriesFailures(t *testing.T) {
	calls := 0
	def := process.MustDefine("Rejects", func(context.Context, *process.Process, process.Values) (process.Outcome, error) {
		calls++
		return process.Failure("rejected"), nil
	})

	out, err := New(WithMaxRetries(5)).Call(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, out.IsFailure())
	assert.Equal(t, "rejected", out.Type())
	assert.Equal(t, 1, calls)
}

func TestRunnerNeverRetriesContractViolations(t *testing.T) {
	calls := 0
	def := process.MustDefine("Misused", func(context.Context, *process.Process, process.Values) (process.Outcome, error) {
		calls++
		return process.Continue("x", 1), nil
	})

	_, err := New(WithMaxRetries(5)).Call(context.Background(), def, nil)
	require.Error(t, err)
	assert.True(t, process.IsContractViolation(err))
	assert.Equal(t, 1, calls)
}

func TestRunnerStopsWhenContextEnds(t *testing.T) {
	calls := 0
	r := New(
		WithMaxRetries(100),
		WithTimeout(30*time.Millisecond),
		WithRetryStrategy(ExponentialBackoffStrategy{Base: 20 * time.Millisecond, Factor: 1}),
	)

	_, err := r.Call(context.Background(), flaky(1000, &calls), nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRetriesExhausted, process.ErrorCode(err))
	assert.Less(t, calls, 100)
}

func TestRunnerAppliesDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	var got time.Time
	def := process.MustDefine("Deadline", func(ctx context.Context, _ *process.Process, _ process.Values) (process.Outcome, error) {
		got, _ = ctx.Deadline()
		return process.Success("ok"), nil
	})

	_, err := New(WithDeadline(deadline)).Call(context.Background(), def, nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(deadline))
}

func TestRunnerReturnsLateContractViolationUnwrapped(t *testing.T) {
	calls := 0
	def := process.MustDefine("Degrades", func(context.Context, *process.Process, process.Values) (process.Outcome, error) {
		calls++
		if calls == 1 {
			return process.Outcome{}, fmt.Errorf("transient")
		}
		return process.Continue("x", 1), nil
	})

	_, err := New(WithMaxRetries(1)).Call(context.Background(), def, nil)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, process.IsContractViolation(err))
	assert.Equal(t, process.ErrCodeInvalidOutcome, process.ErrorCode(err))
}
