package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	process "github.com/goliatone/go-process"
)

var _ process.Transactor = (*SQL)(nil)

// SQL opens transactions on a database. The outermost Begin starts a
// database transaction; Begin inside an already transactional context
// opens a savepoint, so an inner commit only becomes durable when every
// enclosing boundary commits.
type SQL struct {
	db  *sqlx.DB
	seq atomic.Int64
}

// NewSQL wraps db. driverName is used by sqlx for bind variable rebinding.
func NewSQL(db *sql.DB, driverName string) *SQL {
	return &SQL{db: sqlx.NewDb(db, driverName)}
}

// NewSQLx wraps an sqlx handle.
func NewSQLx(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

// DB returns the underlying handle.
func (s *SQL) DB() *sqlx.DB { return s.db }

type sqlKey struct{ s *SQL }

type sqlTx struct {
	tx        *sqlx.Tx
	savepoint string
	done      bool
}

// Begin implements process.Transactor.
func (s *SQL) Begin(ctx context.Context) (context.Context, process.Transaction, error) {
	if s == nil || s.db == nil {
		return ctx, nil, ErrNotConfigured.Clone()
	}

	if parent := s.active(ctx); parent != nil {
		name := fmt.Sprintf("sp_%d", s.seq.Add(1))
		if _, err := parent.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
			return ctx, nil, savepointError("open", name, err)
		}
		child := &sqlTx{tx: parent.tx, savepoint: name}
		return context.WithValue(ctx, sqlKey{s}, child), &sqlTransaction{ctx: ctx, t: child}, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, nil, err
	}
	t := &sqlTx{tx: tx}
	return context.WithValue(ctx, sqlKey{s}, t), &sqlTransaction{ctx: ctx, t: t}, nil
}

// Conn returns the transaction active in ctx, or the database handle.
func (s *SQL) Conn(ctx context.Context) sqlx.ExtContext {
	if t := s.active(ctx); t != nil {
		return t.tx
	}
	return s.db
}

// InTransaction reports whether ctx carries an open transaction of s.
func (s *SQL) InTransaction(ctx context.Context) bool {
	return s.active(ctx) != nil
}

func (s *SQL) active(ctx context.Context) *sqlTx {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(sqlKey{s}).(*sqlTx)
	if t == nil || t.done {
		return nil
	}
	return t
}

type sqlTransaction struct {
	ctx context.Context
	t   *sqlTx
}

func (tr *sqlTransaction) Commit() error {
	if tr.t.done {
		return ErrTxDone.Clone()
	}
	tr.t.done = true
	if tr.t.savepoint == "" {
		return tr.t.tx.Commit()
	}
	if _, err := tr.t.tx.ExecContext(tr.ctx, "RELEASE SAVEPOINT "+tr.t.savepoint); err != nil {
		return savepointError("release", tr.t.savepoint, err)
	}
	return nil
}

func (tr *sqlTransaction) Rollback() error {
	if tr.t.done {
		return ErrTxDone.Clone()
	}
	tr.t.done = true
	if tr.t.savepoint == "" {
		return tr.t.tx.Rollback()
	}
	if _, err := tr.t.tx.ExecContext(tr.ctx, "ROLLBACK TO SAVEPOINT "+tr.t.savepoint); err != nil {
		return savepointError("rollback", tr.t.savepoint, err)
	}
	if _, err := tr.t.tx.ExecContext(tr.ctx, "RELEASE SAVEPOINT "+tr.t.savepoint); err != nil {
		return savepointError("release", tr.t.savepoint, err)
	}
	return nil
}
