package process

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-errors"
)

// Registry is the process table of an application. Definitions are
// registered at startup and the table is frozen by Initialize.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]*Definition
	order       []string
	initialized bool
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return errors.New("definition cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_DEFINITION")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return newError(ErrRegistryFrozen, "", nil, map[string]any{"process": def.Name()})
	}
	if _, exists := r.defs[def.Name()]; exists {
		return newError(ErrRegistryDuplicate, fmt.Sprintf("process %q already registered", def.Name()), nil, map[string]any{
			"process": def.Name(),
		})
	}

	r.defs[def.Name()] = def
	r.order = append(r.order, def.Name())
	return nil
}

// MustRegister registers every definition and panics on the first error.
func (r *Registry) MustRegister(defs ...*Definition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Initialize freezes the table.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return newError(ErrRegistryFrozen, "registry already initialized", nil, nil)
	}
	r.initialized = true
	return nil
}

func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return nil, newError(ErrRegistryNotReady, "", nil, map[string]any{"process": name})
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, newError(ErrRegistryUnknown, fmt.Sprintf("process %q not registered", name), nil, map[string]any{
			"process":   name,
			"available": r.sortedNames(),
		})
	}
	return def, nil
}

// Names returns the registered process names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Call runs a fresh instance of the named process.
func (r *Registry) Call(ctx context.Context, name string, attrs map[string]any) (Outcome, error) {
	def, err := r.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	return def.Call(ctx, attrs)
}

func (r *Registry) sortedNames() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
