package process

import (
	"context"
	"fmt"
)

// Phase identifies when a hook runs in the lifecycle of a call.
type Phase string

const (
	PhaseBeforeCall   Phase = "before_call"
	PhaseAroundCall   Phase = "around_call"
	PhaseAfterCall    Phase = "after_call"
	PhaseAfterSuccess Phase = "after_success"
	PhaseAfterFailure Phase = "after_failure"
	PhaseAfterOutput  Phase = "after_output"
)

// HookFunc is the body of a before or after hook.
type HookFunc func(ctx context.Context, p *Process) error

// AroundFunc wraps the pipeline. It must call next exactly once.
type AroundFunc func(ctx context.Context, p *Process, next func(context.Context) error) error

// Condition gates a hook. Build one with When, If or Unless.
type Condition struct {
	predicate string
	negate    bool
	guard     Guard
}

// When gates a hook with a guard function.
func When(guard Guard) Condition { return Condition{guard: guard} }

// If gates a hook with a named predicate, e.g. If("user_created?").
func If(predicate string) Condition { return Condition{predicate: predicate} }

// Unless is the negation of If.
func Unless(predicate string) Condition { return Condition{predicate: predicate, negate: true} }

func (c Condition) resolve(reg *GuardRegistry) (Guard, error) {
	guard := c.guard
	if guard == nil {
		fn, ok := reg.Lookup(c.predicate)
		if !ok {
			return nil, fmt.Errorf("unknown predicate %q", predicateName(c.predicate))
		}
		guard = fn
	}
	if c.negate {
		return func(p *Process) bool { return !guard(p) }, nil
	}
	return guard, nil
}

type hook struct {
	phase      Phase
	index      int
	run        HookFunc
	around     AroundFunc
	conditions []Condition
	guards     []Guard
}

func (h hook) allows(p *Process) bool {
	for _, g := range h.guards {
		if !g(p) {
			return false
		}
	}
	return true
}

// callbacks keeps hooks per phase in declaration order. Guards filter,
// they never reorder.
type callbacks struct {
	before  []hook
	around  []hook
	after   []hook
	success []hook
	failure []hook
	output  []hook
}

func (cb *callbacks) add(h hook) {
	switch h.phase {
	case PhaseBeforeCall:
		h.index = len(cb.before)
		cb.before = append(cb.before, h)
	case PhaseAroundCall:
		h.index = len(cb.around)
		cb.around = append(cb.around, h)
	case PhaseAfterCall:
		h.index = len(cb.after)
		cb.after = append(cb.after, h)
	case PhaseAfterSuccess:
		h.index = len(cb.success)
		cb.success = append(cb.success, h)
	case PhaseAfterFailure:
		h.index = len(cb.failure)
		cb.failure = append(cb.failure, h)
	case PhaseAfterOutput:
		h.index = len(cb.output)
		cb.output = append(cb.output, h)
	}
}

func (cb *callbacks) resolve(reg *GuardRegistry) error {
	for _, list := range [][]hook{cb.before, cb.around, cb.after, cb.success, cb.failure, cb.output} {
		for i := range list {
			list[i].guards = list[i].guards[:0]
			for _, c := range list[i].conditions {
				g, err := c.resolve(reg)
				if err != nil {
					return fmt.Errorf("%s hook #%d: %w", list[i].phase, i, err)
				}
				list[i].guards = append(list[i].guards, g)
			}
		}
	}
	return nil
}

// runCall runs before_call hooks, then body wrapped by the around_call
// hooks (the first declared is the outermost), then after_call hooks.
func (cb *callbacks) runCall(ctx context.Context, p *Process, body func(context.Context) error) error {
	if err := runHooks(ctx, p, cb.before); err != nil {
		return err
	}

	wrapped := body
	for i := len(cb.around) - 1; i >= 0; i-- {
		wrapped = wrapAround(cb.around[i], p, wrapped)
	}
	if err := wrapped(ctx); err != nil {
		return err
	}

	return runHooks(ctx, p, cb.after)
}

// runOutcome runs the success or failure hooks matching the output, then
// the output hooks.
func (cb *callbacks) runOutcome(ctx context.Context, p *Process) error {
	switch {
	case p.IsSuccess():
		if err := runHooks(ctx, p, cb.success); err != nil {
			return err
		}
	case p.IsFailure():
		if err := runHooks(ctx, p, cb.failure); err != nil {
			return err
		}
	}
	return runHooks(ctx, p, cb.output)
}

func runHooks(ctx context.Context, p *Process, hooks []hook) error {
	for _, h := range hooks {
		if !h.allows(p) {
			continue
		}
		if err := h.run(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func wrapAround(h hook, p *Process, next func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if !h.allows(p) {
			return next(ctx)
		}

		calls := 0
		var nextErr error
		err := h.around(ctx, p, func(inner context.Context) error {
			calls++
			if calls > 1 {
				return aroundMisuseError(p, h, calls)
			}
			if inner == nil {
				inner = ctx
			}
			nextErr = next(inner)
			return nextErr
		})

		switch {
		case calls != 1:
			return aroundMisuseError(p, h, calls)
		case err != nil:
			return err
		default:
			// the pipeline error wins over a hook that swallowed it
			return nextErr
		}
	}
}

func aroundMisuseError(p *Process, h hook, calls int) error {
	msg := fmt.Sprintf("around_call hook #%d of %s invoked its continuation %d times, expected exactly once", h.index, p.Name(), calls)
	return newError(ErrAroundCallMisuse, msg, nil, map[string]any{
		"process":    p.Name(),
		"hook_index": h.index,
		"calls":      calls,
	})
}
