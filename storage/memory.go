package storage

import (
	"context"
	"sort"
	"sync"

	process "github.com/goliatone/go-process"
)

var _ process.Transactor = (*Memory)(nil)

// Memory is a thread-safe in-memory table store. Transactions keep an undo
// journal: writes are applied immediately and reverted on rollback. A
// committed nested transaction hands its journal to the enclosing one.
// Concurrent transactions are not isolated from each other.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]any
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]any)}
}

type cell struct {
	table string
	key   string
}

type undo struct {
	value   any
	existed bool
}

type memoryTx struct {
	parent  *memoryTx
	journal map[cell]undo
	order   []cell
	done    bool
}

type memoryKey struct{ m *Memory }

// Begin implements process.Transactor.
func (m *Memory) Begin(ctx context.Context) (context.Context, process.Transaction, error) {
	if m == nil {
		return ctx, nil, ErrNotConfigured.Clone()
	}
	m.mu.RLock()
	parent := m.active(ctx)
	m.mu.RUnlock()

	tx := &memoryTx{parent: parent, journal: make(map[cell]undo)}
	return context.WithValue(ctx, memoryKey{m}, tx), &memoryTransaction{m: m, tx: tx}, nil
}

// Put stores value under table/key.
func (m *Memory) Put(ctx context.Context, table, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remember(ctx, cell{table, key})
	rows := m.tables[table]
	if rows == nil {
		rows = make(map[string]any)
		m.tables[table] = rows
	}
	rows[key] = value
}

// Delete removes table/key.
func (m *Memory) Delete(ctx context.Context, table, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table][key]; !ok {
		return
	}
	m.remember(ctx, cell{table, key})
	delete(m.tables[table], key)
}

// Get reads table/key.
func (m *Memory) Get(_ context.Context, table, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tables[table][key]
	return v, ok
}

// Find returns the first row of table accepted by match, in key order.
func (m *Memory) Find(_ context.Context, table string, match func(key string, value any) bool) (string, any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range sortedKeys(m.tables[table]) {
		if v := m.tables[table][key]; match(key, v) {
			return key, v, true
		}
	}
	return "", nil, false
}

// Count returns the number of rows in table.
func (m *Memory) Count(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

// Keys lists the keys of table, sorted.
func (m *Memory) Keys(table string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.tables[table])
}

func (m *Memory) active(ctx context.Context) *memoryTx {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(memoryKey{m}).(*memoryTx)
	for tx != nil && tx.done {
		tx = tx.parent
	}
	return tx
}

// remember journals the current state of c. Callers hold m.mu.
func (m *Memory) remember(ctx context.Context, c cell) {
	tx := m.active(ctx)
	if tx == nil {
		return
	}
	if _, seen := tx.journal[c]; seen {
		return
	}
	v, ok := m.tables[c.table][c.key]
	tx.journal[c] = undo{value: v, existed: ok}
	tx.order = append(tx.order, c)
}

type memoryTransaction struct {
	m  *Memory
	tx *memoryTx
}

func (t *memoryTransaction) Commit() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.tx.done {
		return ErrTxDone.Clone()
	}
	t.tx.done = true

	if p := t.tx.parent; p != nil {
		for _, c := range t.tx.order {
			if _, seen := p.journal[c]; seen {
				continue
			}
			p.journal[c] = t.tx.journal[c]
			p.order = append(p.order, c)
		}
	}
	return nil
}

func (t *memoryTransaction) Rollback() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.tx.done {
		return ErrTxDone.Clone()
	}
	t.tx.done = true

	for i := len(t.tx.order) - 1; i >= 0; i-- {
		c := t.tx.order[i]
		u := t.tx.journal[c]
		if !u.existed {
			delete(t.m.tables[c.table], c.key)
			continue
		}
		if t.m.tables[c.table] == nil {
			t.m.tables[c.table] = make(map[string]any)
		}
		t.m.tables[c.table][c.key] = u.value
	}
	return nil
}

func sortedKeys(rows map[string]any) []string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
