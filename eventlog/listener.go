// Package eventlog renders process traces as nested, human readable event
// logs, either as plain text lines or as structured log records.
package eventlog

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	process "github.com/goliatone/go-process"
)

const indent = "   "

// BasicLoggerListener prints every root trace, one line per invocation
// header and per outcome, indented by nesting depth:
//
//	#0 Account::OwnerCreation
//	 * Given(uuid:, owner:)
//	   #1 User::Creation
//	    * Given(uuid:, name:, email:)
//	    * Continue(user:) from step: create_user
//
// Interruptions add the exception and its cleaned backtrace.
type BasicLoggerListener struct {
	mu      sync.Mutex
	out     io.Writer
	logger  process.Logger
	cleaner *process.BacktraceCleaner
}

var _ process.Listener = (*BasicLoggerListener)(nil)

// Option configures a BasicLoggerListener.
type Option func(*BasicLoggerListener)

// WithWriter writes plain text lines to w.
func WithWriter(w io.Writer) Option {
	return func(l *BasicLoggerListener) { l.out = w }
}

// WithLogger sends one record per line to logger instead of a writer.
// Loggers supporting fields receive the trace and invocation ids.
func WithLogger(logger process.Logger) Option {
	return func(l *BasicLoggerListener) { l.logger = logger }
}

// WithBacktraceCleaner filters backtraces of recovered panics.
func WithBacktraceCleaner(c *process.BacktraceCleaner) Option {
	return func(l *BasicLoggerListener) { l.cleaner = c }
}

// NewBasicLoggerListener writes to stdout unless configured otherwise.
func NewBasicLoggerListener(opts ...Option) *BasicLoggerListener {
	l := &BasicLoggerListener{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.out == nil && l.logger == nil {
		l.out = os.Stdout
	}
	return l
}

func (l *BasicLoggerListener) OnFinish(ctx context.Context, trace process.Trace) {
	l.emit(ctx, trace)
}

func (l *BasicLoggerListener) OnInterruption(ctx context.Context, err error, trace process.Trace) {
	l.emit(ctx, trace)

	message, backtrace := l.describe(err)
	if l.logger != nil {
		logger := process.LoggerWithFields(l.logger.WithContext(ctx), map[string]any{
			"trace_id":   trace.ID,
			"error":      message,
			"error_code": process.ErrorCode(err),
			"backtrace":  backtrace,
		})
		logger.Error("process interrupted: %s", message)
		return
	}

	var b strings.Builder
	b.WriteString("\nException:\n  ")
	b.WriteString(message)
	if len(backtrace) > 0 {
		b.WriteString("\n\nBacktrace:\n  ")
		b.WriteString(strings.Join(backtrace, "\n  "))
	}
	l.write(b.String())
}

func (l *BasicLoggerListener) emit(ctx context.Context, trace process.Trace) {
	if l.logger == nil {
		l.write(strings.Join(Lines(trace), "\n"))
		return
	}

	for _, ev := range events(trace) {
		logger := process.LoggerWithFields(l.logger.WithContext(ctx), ev.fields(trace.ID))
		logger.Info(strings.TrimLeft(ev.line, " *"))
	}
}

func (l *BasicLoggerListener) write(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, text)
}

func (l *BasicLoggerListener) describe(err error) (string, []string) {
	message := fmt.Sprintf("%v (%T)", err, err)

	var pe *process.PanicError
	if stderrors.As(err, &pe) && len(pe.Stack) > 0 {
		return message, l.cleaner.Clean(pe.Stack)
	}
	return message, nil
}

type event struct {
	depth      int
	invocation int
	name       string
	step       string
	outcome    string
	line       string
}

func (e event) fields(traceID string) map[string]any {
	f := map[string]any{
		"trace_id":      traceID,
		"invocation_id": e.invocation,
		"depth":         e.depth,
		"process":       e.name,
	}
	if e.outcome != "" {
		f["outcome"] = e.outcome
	}
	if e.step != "" {
		f["step"] = e.step
	}
	return f
}

// Lines renders a trace as indented text lines.
func Lines(trace process.Trace) []string {
	evs := events(trace)
	lines := make([]string, 0, len(evs))
	for _, ev := range evs {
		lines = append(lines, strings.Repeat(indent, ev.depth)+ev.line)
	}
	return lines
}

func events(trace process.Trace) []event {
	seen := make(map[int]bool, len(trace.Records))
	var out []event

	header := func(r process.InvocationRecord) {
		seen[r.ID] = true
		line := fmt.Sprintf("#%d %s", r.ID, r.Name)
		if r.Description != "" {
			line += " - " + r.Description
		}
		out = append(out, event{depth: r.Depth, invocation: r.ID, name: r.Name, line: line})
	}

	for _, e := range trace.Entries {
		r, ok := trace.Record(e.InvocationID)
		if !ok {
			continue
		}
		if !seen[r.ID] {
			header(r)
		}
		line := " * " + e.Outcome.String()
		if e.Step != "" {
			line += " from step: " + e.Step
		}
		out = append(out, event{
			depth:      r.Depth,
			invocation: r.ID,
			name:       r.Name,
			step:       e.Step,
			outcome:    e.Outcome.String(),
			line:       line,
		})
	}

	// invocations interrupted before producing an outcome
	for _, r := range trace.Records {
		if !seen[r.ID] {
			header(r)
		}
	}
	return out
}
