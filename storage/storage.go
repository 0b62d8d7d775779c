// Package storage provides transaction boundaries for process pipelines:
// a SQL transactor that nests through savepoints and an in-memory store
// with undo journals for tests and examples.
package storage

import (
	"github.com/goliatone/go-errors"
)

const (
	ErrCodeTxDone          = "STORAGE_TX_DONE"
	ErrCodeNotConfigured   = "STORAGE_NOT_CONFIGURED"
	ErrCodeSavepointFailed = "STORAGE_SAVEPOINT_FAILED"
)

var (
	// ErrTxDone is returned when a transaction is committed or rolled back twice.
	ErrTxDone = errors.New("transaction already finished", errors.CategoryConflict).
			WithTextCode(ErrCodeTxDone)
	ErrNotConfigured = errors.New("storage not configured", errors.CategoryInternal).
				WithTextCode(ErrCodeNotConfigured)
)

func savepointError(op, name string, err error) error {
	e := errors.Wrap(err, errors.CategoryExternal, op+" savepoint "+name).
		WithTextCode(ErrCodeSavepointFailed)
	return e.WithMetadata(map[string]any{"savepoint": name, "operation": op})
}
