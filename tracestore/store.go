// Package tracestore persists process traces in a SQL database so finished
// and interrupted runs can be listed and replayed later. Snapshots are
// stored as msgpack blobs next to a few indexed columns.
package tracestore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jmoiron/sqlx"
	"github.com/vmihailenco/msgpack/v5"

	process "github.com/goliatone/go-process"
)

const (
	ErrCodeNotFound = "TRACESTORE_NOT_FOUND"
	ErrCodeEncoding = "TRACESTORE_ENCODING"
	ErrCodeDatabase = "TRACESTORE_DATABASE"
)

var ErrNotFound = errors.New("trace not found", errors.CategoryNotFound).
	WithTextCode(ErrCodeNotFound)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS process_traces (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		status TEXT NOT NULL,
		error_code TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_process_traces_root ON process_traces(root)`,
	`CREATE INDEX IF NOT EXISTS idx_process_traces_started ON process_traces(started_at)`,
}

// Store saves and loads trace snapshots.
type Store struct {
	db     *sqlx.DB
	logger process.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger reports listener save failures to logger.
func WithLogger(logger process.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New wraps db and creates the traces table when missing.
func New(ctx context.Context, db *sql.DB, driverName string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required", errors.CategoryBadInput).
			WithTextCode(ErrCodeDatabase)
	}
	s := &Store{db: sqlx.NewDb(db, driverName)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = process.NewFmtLogger(nil, process.LevelInfo)
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, dbError("initialize schema", err)
		}
	}
	return s, nil
}

// Summary is the indexed part of a stored trace.
type Summary struct {
	ID         string
	Root       string
	Status     string
	ErrorCode  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the root invocation.
func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

type row struct {
	ID         string         `db:"id"`
	Root       string         `db:"root"`
	Status     string         `db:"status"`
	ErrorCode  sql.NullString `db:"error_code"`
	StartedAt  int64          `db:"started_at"`
	FinishedAt int64          `db:"finished_at"`
	Payload    []byte         `db:"payload"`
}

func (r row) summary() Summary {
	return Summary{
		ID:         r.ID,
		Root:       r.Root,
		Status:     r.Status,
		ErrorCode:  r.ErrorCode.String,
		StartedAt:  time.Unix(0, r.StartedAt).UTC(),
		FinishedAt: time.Unix(0, r.FinishedAt).UTC(),
	}
}

// Save inserts or replaces a snapshot.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	payload, err := msgpack.Marshal(&snap)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "encode trace snapshot").
			WithTextCode(ErrCodeEncoding)
	}

	var code sql.NullString
	if snap.ErrorCode != "" {
		code = sql.NullString{String: snap.ErrorCode, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO process_traces (id, root, status, error_code, started_at, finished_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Root, snap.Status, code, snap.StartedAt.UnixNano(), snap.FinishedAt.UnixNano(), payload)
	if err != nil {
		return dbError("save trace", err)
	}
	return nil
}

// Load returns the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM process_traces WHERE id = ?`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}
	if err != nil {
		return Snapshot{}, dbError("load trace", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(r.Payload, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, errors.CategoryInternal, "decode trace snapshot").
			WithTextCode(ErrCodeEncoding)
	}
	return snap, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Root   string
	Status string
	Limit  int
}

// List returns summaries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Summary, error) {
	var (
		where []string
		args  []any
	)
	if f.Root != "" {
		where = append(where, "root = ?")
		args = append(args, f.Root)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT id, root, status, error_code, started_at, finished_at FROM process_traces`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError("list traces", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out, nil
}

// Delete removes a stored trace. Missing ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM process_traces WHERE id = ?`, id); err != nil {
		return dbError("delete trace", err)
	}
	return nil
}

// Listener saves every root trace handed to it. Save errors are logged,
// never returned to the process.
func (s *Store) Listener() process.Listener {
	return process.ListenerFuncs{
		Finish: func(ctx context.Context, t process.Trace) {
			s.persist(ctx, NewSnapshot(t, nil))
		},
		Interruption: func(ctx context.Context, err error, t process.Trace) {
			s.persist(ctx, NewSnapshot(t, err))
		},
	}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if err := s.Save(context.WithoutCancel(ctx), snap); err != nil {
		process.LoggerWithFields(s.logger.WithContext(ctx), map[string]any{
			"trace_id": snap.ID,
			"process":  snap.Root,
		}).Error("failed to save trace: %v", err)
	}
}

func dbError(op string, err error) error {
	return errors.Wrap(err, errors.CategoryExternal, op).WithTextCode(ErrCodeDatabase)
}
