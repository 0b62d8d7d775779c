package process

import (
	"context"
	stderrors "errors"
)

// Transaction is one boundary opened by a Transactor.
type Transaction interface {
	Commit() error
	Rollback() error
}

// Transactor is the storage layer collaborator. Begin returns a context
// carrying the transaction so steps write inside it; beginning inside an
// already transactional context nests according to the storage layer.
type Transactor interface {
	Begin(ctx context.Context) (context.Context, Transaction, error)
}

// RollbackOnFailure runs fn inside a transaction. The transaction is rolled
// back when fn returns a Failure, an error or panics, and committed
// otherwise. The outcome itself is returned unchanged.
func RollbackOnFailure(ctx context.Context, tx Transactor, fn func(ctx context.Context) (Outcome, error)) (out Outcome, err error) {
	if tx == nil {
		return Outcome{}, newError(ErrTransactionFailure, "no transactor configured", nil, nil)
	}

	txCtx, t, err := tx.Begin(ctx)
	if err != nil {
		return Outcome{}, newError(ErrTransactionFailure, "begin transaction", err, nil)
	}

	finished := false
	defer func() {
		if !finished {
			_ = t.Rollback()
		}
	}()

	out, err = fn(txCtx)
	finished = true

	if err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			err = stderrors.Join(err, newError(ErrTransactionFailure, "rollback transaction", rbErr, nil))
		}
		return out, err
	}

	if out.IsFailure() {
		if rbErr := t.Rollback(); rbErr != nil {
			return out, newError(ErrTransactionFailure, "rollback transaction", rbErr, map[string]any{
				"outcome": out.String(),
			})
		}
		return out, nil
	}

	if cErr := t.Commit(); cErr != nil {
		return out, newError(ErrTransactionFailure, "commit transaction", cErr, map[string]any{
			"outcome": out.String(),
		})
	}
	return out, nil
}

// Rollback runs build inside a rollback boundary. It is skipped once the
// chain failed or errored.
func (c Chain) Rollback(tx Transactor, build func(Chain) Chain) Chain {
	if c.err != nil || c.out.IsFailure() {
		return c
	}
	out, err := RollbackOnFailure(c.ctx, tx, func(ctx context.Context) (Outcome, error) {
		return build(Chain{ctx: ctx, out: c.out}).Result()
	})
	return Chain{ctx: c.ctx, out: out, err: err}
}
