package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	process "github.com/goliatone/go-process"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Put(ctx, "users", "u1", "ada")
	v, ok := m.Get(ctx, "users", "u1")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
	assert.Equal(t, 1, m.Count("users"))

	key, _, found := m.Find(ctx, "users", func(_ string, v any) bool { return v == "ada" })
	assert.True(t, found)
	assert.Equal(t, "u1", key)

	m.Delete(ctx, "users", "u1")
	_, ok = m.Get(ctx, "users", "u1")
	assert.False(t, ok)
	assert.Empty(t, m.Keys("users"))
}

func TestMemoryRollbackRestoresPreviousValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(ctx, "users", "u1", "ada")

	txCtx, tx, err := m.Begin(ctx)
	require.NoError(t, err)
	m.Put(txCtx, "users", "u1", "grace")
	m.Put(txCtx, "users", "u2", "linus")
	m.Delete(txCtx, "users", "u1")
	require.NoError(t, tx.Rollback())

	v, _ := m.Get(ctx, "users", "u1")
	assert.Equal(t, "ada", v)
	assert.Equal(t, []string{"u1"}, m.Keys("users"))

	assert.Equal(t, ErrCodeTxDone, process.ErrorCode(tx.Commit()))
}

func TestMemoryNestedCommitJoinsOuterBoundary(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	outerCtx, outer, err := m.Begin(ctx)
	require.NoError(t, err)
	m.Put(outerCtx, "tokens", "t1", "outer")

	innerCtx, inner, err := m.Begin(outerCtx)
	require.NoError(t, err)
	m.Put(innerCtx, "tokens", "t2", "inner")
	require.NoError(t, inner.Commit())
	assert.Equal(t, 2, m.Count("tokens"))

	require.NoError(t, outer.Rollback())
	assert.Equal(t, 0, m.Count("tokens"))
}

func TestMemoryNestedRollbackKeepsOuterWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	outerCtx, outer, err := m.Begin(ctx)
	require.NoError(t, err)
	m.Put(outerCtx, "tokens", "t1", "outer")

	innerCtx, inner, err := m.Begin(outerCtx)
	require.NoError(t, err)
	m.Put(innerCtx, "tokens", "t1", "overwritten")
	m.Put(innerCtx, "tokens", "t2", "inner")
	require.NoError(t, inner.Rollback())

	// writes after the inner boundary finished belong to the outer one
	m.Put(innerCtx, "tokens", "t3", "late")
	require.NoError(t, outer.Commit())

	assert.Equal(t, []string{"t1", "t3"}, m.Keys("tokens"))
	v, _ := m.Get(ctx, "tokens", "t1")
	assert.Equal(t, "outer", v)
}

func TestMemoryWithRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	out, err := process.RollbackOnFailure(ctx, m, func(ctx context.Context) (process.Outcome, error) {
		m.Put(ctx, "users", "u1", "ada")
		return process.Failure("email_already_taken"), nil
	})
	require.NoError(t, err)
	assert.True(t, out.IsFailure("email_already_taken"))
	assert.Equal(t, 0, m.Count("users"))
}
