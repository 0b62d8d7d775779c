package tracestore

import (
	"time"

	process "github.com/goliatone/go-process"
)

const snapshotVersion uint16 = 1

// Status of a stored trace.
const (
	StatusFinished    = "finished"
	StatusInterrupted = "interrupted"
)

// Snapshot is the persisted form of a process.Trace. Outcome values are
// reduced to their keys, the same detail event logs print.
type Snapshot struct {
	Version    uint16           `msgpack:"v"`
	ID         string           `msgpack:"id"`
	Root       string           `msgpack:"root"`
	Status     string           `msgpack:"status"`
	Error      string           `msgpack:"error,omitempty"`
	ErrorCode  string           `msgpack:"error_code,omitempty"`
	StartedAt  time.Time        `msgpack:"started_at"`
	FinishedAt time.Time        `msgpack:"finished_at"`
	Records    []RecordSnapshot `msgpack:"records"`
	Entries    []EntrySnapshot  `msgpack:"entries"`
}

type RecordSnapshot struct {
	ID          int       `msgpack:"id"`
	ParentID    int       `msgpack:"parent_id"`
	Name        string    `msgpack:"name"`
	Description string    `msgpack:"description,omitempty"`
	Depth       int       `msgpack:"depth"`
	StartedAt   time.Time `msgpack:"started_at"`
	FinishedAt  time.Time `msgpack:"finished_at"`
}

type EntrySnapshot struct {
	Seq          int       `msgpack:"seq"`
	InvocationID int       `msgpack:"invocation_id"`
	Kind         string    `msgpack:"kind"`
	Type         string    `msgpack:"type"`
	Keys         []string  `msgpack:"keys"`
	Step         string    `msgpack:"step,omitempty"`
	At           time.Time `msgpack:"at"`
}

// NewSnapshot captures t. A non nil err marks the trace as interrupted.
func NewSnapshot(t process.Trace, err error) Snapshot {
	s := Snapshot{
		Version:    snapshotVersion,
		ID:         t.ID,
		Root:       t.Root().Name,
		Status:     StatusFinished,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Records:    make([]RecordSnapshot, 0, len(t.Records)),
		Entries:    make([]EntrySnapshot, 0, len(t.Entries)),
	}
	if err != nil {
		s.Status = StatusInterrupted
		s.Error = err.Error()
		s.ErrorCode = process.ErrorCode(err)
	}

	for _, r := range t.Records {
		s.Records = append(s.Records, RecordSnapshot{
			ID:          r.ID,
			ParentID:    r.ParentID,
			Name:        r.Name,
			Description: r.Description,
			Depth:       r.Depth,
			StartedAt:   r.StartedAt,
			FinishedAt:  r.FinishedAt,
		})
	}
	for _, e := range t.Entries {
		s.Entries = append(s.Entries, EntrySnapshot{
			Seq:          e.Seq,
			InvocationID: e.InvocationID,
			Kind:         e.Outcome.Kind().String(),
			Type:         e.Outcome.Type(),
			Keys:         e.Outcome.Value().Keys(),
			Step:         e.Step,
			At:           e.At,
		})
	}
	return s
}

// Interrupted reports whether an error escaped the root invocation.
func (s Snapshot) Interrupted() bool { return s.Status == StatusInterrupted }

// Trace rebuilds a process.Trace. Values carry the recorded keys with nil
// values, enough to render the trace again.
func (s Snapshot) Trace() process.Trace {
	t := process.Trace{
		ID:         s.ID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Records:    make([]process.InvocationRecord, 0, len(s.Records)),
		Entries:    make([]process.Entry, 0, len(s.Entries)),
	}
	for _, r := range s.Records {
		t.Records = append(t.Records, process.InvocationRecord{
			ID:          r.ID,
			ParentID:    r.ParentID,
			Name:        r.Name,
			Description: r.Description,
			Depth:       r.Depth,
			StartedAt:   r.StartedAt,
			FinishedAt:  r.FinishedAt,
		})
	}
	for _, e := range s.Entries {
		t.Entries = append(t.Entries, process.Entry{
			Seq:          e.Seq,
			InvocationID: e.InvocationID,
			Outcome:      e.outcome(),
			Step:         e.Step,
			At:           e.At,
		})
	}
	return t
}

func (e EntrySnapshot) outcome() process.Outcome {
	kv := make([]any, 0, len(e.Keys)*2)
	for _, k := range e.Keys {
		kv = append(kv, k, nil)
	}
	v := process.NewValues(kv...)

	switch e.Kind {
	case process.KindSuccess.String():
		return process.SuccessWith(e.Type, v)
	case process.KindFailure.String():
		return process.FailureWith(e.Type, v)
	default:
		if e.Type == process.TypeGiven {
			return process.Seed(v)
		}
		return process.ContinueWith(v)
	}
}
