package process

import (
	"context"
	"time"
)

// NoParent is the ParentID of a root invocation.
const NoParent = -1

// InvocationRecord describes one invocation inside a trace.
type InvocationRecord struct {
	ID          int
	ParentID    int
	Name        string
	Description string
	Depth       int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// IsRoot reports whether the record has no enclosing invocation.
func (r InvocationRecord) IsRoot() bool { return r.ParentID == NoParent }

// Entry is one outcome produced while a trace was recording.
type Entry struct {
	Seq          int
	InvocationID int
	Outcome      Outcome
	// Step is the name of the step that produced the outcome, empty for
	// the Given seed and the invocation's terminal outcome.
	Step string
	At   time.Time
}

// Trace is the complete record of a root invocation and everything it called.
// Entries are in production order, nested entries interleaved.
type Trace struct {
	ID         string
	Records    []InvocationRecord
	Entries    []Entry
	StartedAt  time.Time
	FinishedAt time.Time
}

// Root returns the record of the root invocation.
func (t Trace) Root() InvocationRecord {
	for _, r := range t.Records {
		if r.IsRoot() {
			return r
		}
	}
	return InvocationRecord{ParentID: NoParent}
}

// Record looks up an invocation by id.
func (t Trace) Record(id int) (InvocationRecord, bool) {
	for _, r := range t.Records {
		if r.ID == id {
			return r, true
		}
	}
	return InvocationRecord{}, false
}

// EntriesFor returns the entries attributed to a single invocation.
func (t Trace) EntriesFor(id int) []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.InvocationID == id {
			out = append(out, e)
		}
	}
	return out
}

// Children returns the records whose parent is id.
func (t Trace) Children(id int) []InvocationRecord {
	var out []InvocationRecord
	for _, r := range t.Records {
		if r.ParentID == id {
			out = append(out, r)
		}
	}
	return out
}

// Listener receives the trace of every root invocation exactly once.
// Listeners are process-wide configuration, set before the first call.
type Listener interface {
	OnFinish(ctx context.Context, trace Trace)
	OnInterruption(ctx context.Context, err error, trace Trace)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Finish       func(ctx context.Context, trace Trace)
	Interruption func(ctx context.Context, err error, trace Trace)
}

func (l ListenerFuncs) OnFinish(ctx context.Context, trace Trace) {
	if l.Finish != nil {
		l.Finish(ctx, trace)
	}
}

func (l ListenerFuncs) OnInterruption(ctx context.Context, err error, trace Trace) {
	if l.Interruption != nil {
		l.Interruption(ctx, err, trace)
	}
}

// Listeners fans a trace out to several listeners in order.
type Listeners []Listener

func (ls Listeners) OnFinish(ctx context.Context, trace Trace) {
	for _, l := range ls {
		if l != nil {
			l.OnFinish(ctx, trace)
		}
	}
}

func (ls Listeners) OnInterruption(ctx context.Context, err error, trace Trace) {
	for _, l := range ls {
		if l != nil {
			l.OnInterruption(ctx, err, trace)
		}
	}
}

// NopListener discards traces.
type NopListener struct{}

func (NopListener) OnFinish(context.Context, Trace)              {}
func (NopListener) OnInterruption(context.Context, error, Trace) {}
