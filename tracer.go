package process

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// session accumulates the trace of one root invocation. It lives in the
// context of that invocation, never in package state.
type session struct {
	mu       sync.Mutex
	id       string
	clock    func() time.Time
	records  []InvocationRecord
	entries  []Entry
	started  time.Time
	listener Listener
}

type frame struct {
	s  *session
	id int
}

type frameKey struct{}

func frameFrom(ctx context.Context) *frame {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// InvocationID returns the id of the invocation active in ctx.
func InvocationID(ctx context.Context) (int, bool) {
	f := frameFrom(ctx)
	if f == nil {
		return 0, false
	}
	return f.id, true
}

// TraceID returns the id of the tracing session active in ctx.
func TraceID(ctx context.Context) (string, bool) {
	f := frameFrom(ctx)
	if f == nil {
		return "", false
	}
	return f.s.id, true
}

// enterInvocation opens an invocation record. Without an active frame in
// ctx a new session is started and the invocation becomes its root.
func enterInvocation(ctx context.Context, name, desc string, cfg Config) (context.Context, *frame, bool) {
	parent := frameFrom(ctx)
	root := parent == nil

	var s *session
	parentID := NoParent
	if root {
		clock := cfg.Clock
		if clock == nil {
			clock = time.Now
		}
		s = &session{
			id:       uuid.NewString(),
			clock:    clock,
			listener: cfg.Listener,
		}
		s.started = clock()
	} else {
		s = parent.s
		parentID = parent.id
	}

	f := &frame{s: s, id: s.open(parentID, name, desc)}
	return context.WithValue(ctx, frameKey{}, f), f, root
}

func (s *session) open(parentID int, name, desc string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 0
	if parentID != NoParent {
		for _, r := range s.records {
			if r.ID == parentID {
				depth = r.Depth + 1
				break
			}
		}
	}
	id := len(s.records)
	s.records = append(s.records, InvocationRecord{
		ID:          id,
		ParentID:    parentID,
		Name:        name,
		Description: desc,
		Depth:       depth,
		StartedAt:   s.clock(),
	})
	return id
}

func (s *session) close(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= 0 && id < len(s.records) {
		s.records[id].FinishedAt = s.clock()
	}
}

func (s *session) record(id int, o Outcome, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		Seq:          len(s.entries),
		InvocationID: id,
		Outcome:      o,
		Step:         step,
		At:           s.clock(),
	})
}

func (s *session) last(id int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].InvocationID == id {
			return s.entries[i], true
		}
	}
	return Entry{}, false
}

func (s *session) snapshot() Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Trace{
		ID:         s.id,
		Records:    make([]InvocationRecord, len(s.records)),
		Entries:    make([]Entry, len(s.entries)),
		StartedAt:  s.started,
		FinishedAt: s.clock(),
	}
	copy(t.Records, s.records)
	copy(t.Entries, s.entries)
	return t
}

// recordTerminal appends the invocation's terminal outcome unless the last
// entry of that invocation already is that outcome.
func (f *frame) recordTerminal(o Outcome) {
	if last, ok := f.s.last(f.id); ok && last.Outcome.IsTerminal() && last.Outcome.Equal(o) {
		return
	}
	f.s.record(f.id, o, "")
}

// exit closes the invocation. For the root it hands the trace to the
// listener: OnInterruption when err escapes, OnFinish otherwise.
func (f *frame) exit(ctx context.Context, root bool, err error) {
	f.s.close(f.id)
	if !root || f.s.listener == nil {
		return
	}
	trace := f.s.snapshot()
	if err != nil {
		f.s.listener.OnInterruption(ctx, err, trace)
		return
	}
	f.s.listener.OnFinish(ctx, trace)
}

func recordOutcome(ctx context.Context, o Outcome, step string) {
	if f := frameFrom(ctx); f != nil {
		f.s.record(f.id, o, step)
	}
}
