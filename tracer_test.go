package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordingListener struct {
	mu            sync.Mutex
	finished      []Trace
	interrupted   []Trace
	interruptions []error
}

func (l *recordingListener) OnFinish(_ context.Context, trace Trace) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, trace)
}

func (l *recordingListener) OnInterruption(_ context.Context, err error, trace Trace) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interrupted = append(l.interrupted, trace)
	l.interruptions = append(l.interruptions, err)
}

func entryLines(trace Trace) []string {
	lines := make([]string, 0, len(trace.Entries))
	for _, e := range trace.Entries {
		line := fmt.Sprintf("#%d %s", e.InvocationID, e.Outcome)
		if e.Step != "" {
			line += " from " + e.Step
		}
		lines = append(lines, line)
	}
	return lines
}

func newNestedDefinitions(t *testing.T, outerListener, innerListener Listener) *Definition {
	t.Helper()

	inner, err := Define("CreateUser", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Given(ctx, attrs).
			AndThen("build", continueWith("user", "u1")).
			Expose("user_created", "user").
			Result()
	}, WithListener(innerListener))
	require.NoError(t, err)

	outer, err := Define("Signup", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Given(ctx, attrs).
			AndThen("create_user", func(ctx context.Context, in Values) (Outcome, error) {
				name, _ := Lookup[string](in, "name")
				out, err := inner.Call(ctx, map[string]any{"name": name})
				if err != nil || out.IsFailure() {
					return out, err
				}
				user, _ := out.Value().Get("user")
				return Continue("user", user), nil
			}).
			Expose("signed_up", "user").
			Result()
	}, WithListener(outerListener), WithDescription("creates an account"))
	require.NoError(t, err)

	return outer
}

func TestTraceRecordsNestedInvocations(t *testing.T) {
	outerListener := &recordingListener{}
	innerListener := &recordingListener{}
	outer := newNestedDefinitions(t, outerListener, innerListener)

	out, err := outer.Call(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.True(t, out.IsSuccess("signed_up"))

	require.Len(t, outerListener.finished, 1)
	assert.Empty(t, outerListener.interrupted)
	assert.Empty(t, innerListener.finished, "only the root invocation notifies")

	trace := outerListener.finished[0]
	assert.NotEmpty(t, trace.ID)

	require.Len(t, trace.Records, 2)
	root := trace.Root()
	assert.Equal(t, "Signup", root.Name)
	assert.Equal(t, "creates an account", root.Description)
	assert.Equal(t, 0, root.Depth)
	assert.True(t, root.IsRoot())

	children := trace.Children(root.ID)
	require.Len(t, children, 1)
	assert.Equal(t, "CreateUser", children[0].Name)
	assert.Equal(t, root.ID, children[0].ParentID)
	assert.Equal(t, 1, children[0].Depth)
	assert.False(t, children[0].FinishedAt.Before(children[0].StartedAt))

	assert.Equal(t, []string{
		"#0 Given(name:)",
		"#1 Given(name:)",
		"#1 Continue(user:) from build",
		"#1 Success(:user_created, user:)",
		"#0 Continue(user:) from create_user",
		"#0 Success(:signed_up, user:)",
	}, entryLines(trace))

	for i, e := range trace.Entries {
		assert.Equal(t, i, e.Seq)
	}
	assert.Len(t, trace.EntriesFor(1), 3)
}

func TestTraceRecordsTerminalOutcomeOfBody(t *testing.T) {
	listener := &recordingListener{}
	def := MustDefine("Direct", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Failure("nope"), nil
	}, WithListener(listener))

	out, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsFailure("nope"))

	require.Len(t, listener.finished, 1)
	assert.Equal(t, []string{"#0 Failure(:nope)"}, entryLines(listener.finished[0]))
}

func TestInterruptionDeliversPartialTrace(t *testing.T) {
	boom := errors.New("boom")
	listener := &recordingListener{}
	def := MustDefine("Explodes", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Given(ctx, attrs).
			AndThen("first", continueWith("a", 1)).
			AndThen("second", func(context.Context, Values) (Outcome, error) { return Outcome{}, boom }).
			Result()
	}, WithListener(listener))

	_, err := def.Call(context.Background(), map[string]any{"x": 1})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, listener.finished)
	require.Len(t, listener.interrupted, 1)
	assert.ErrorIs(t, listener.interruptions[0], boom)
	assert.Equal(t, []string{
		"#0 Given(x:)",
		"#0 Continue(a:) from first",
	}, entryLines(listener.interrupted[0]))
}

func TestInvocationAndTraceIDsInContext(t *testing.T) {
	_, ok := InvocationID(context.Background())
	assert.False(t, ok)
	_, ok = TraceID(context.Background())
	assert.False(t, ok)

	var (
		invocation int
		traceID    string
	)
	def := MustDefine("Probe", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		invocation, _ = InvocationID(ctx)
		traceID, _ = TraceID(ctx)
		return Success("ok"), nil
	})

	_, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, invocation)
	assert.NotEmpty(t, traceID)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	listener := &recordingListener{}
	def := MustDefine("Worker", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Given(ctx, attrs).
			AndThen("work", continueWith("done", true)).
			Expose("worked", "done").
			Result()
	}, WithListener(listener))

	const workers = 16
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			out, err := def.Call(context.Background(), map[string]any{"n": i})
			if err != nil {
				return err
			}
			if !out.IsSuccess("worked") {
				return fmt.Errorf("worker %d finished as %s", i, out)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, listener.finished, workers)
	ids := map[string]bool{}
	for _, trace := range listener.finished {
		ids[trace.ID] = true
		require.Len(t, trace.Records, 1)
		assert.Equal(t, []string{
			"#0 Given(n:)",
			"#0 Continue(done:) from work",
			"#0 Success(:worked, done:)",
		}, entryLines(trace))
	}
	assert.Len(t, ids, workers)
}

func TestListenersFanOut(t *testing.T) {
	a, b := &recordingListener{}, &recordingListener{}
	var calls []string
	funcs := ListenerFuncs{Finish: func(context.Context, Trace) { calls = append(calls, "finish") }}

	def := MustDefine("Fan", func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return Success("ok"), nil
	}, WithListener(Listeners{a, nil, b, funcs}))

	_, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, a.finished, 1)
	assert.Len(t, b.finished, 1)
	assert.Equal(t, []string{"finish"}, calls)
}
