package process

import (
	"context"
	"fmt"
)

// StepFunc is a named operation of a pipeline. It receives the accumulated
// bag and returns the next outcome. A returned error interrupts the pipeline.
type StepFunc func(ctx context.Context, in Values) (Outcome, error)

// AndThen runs step on a Continue outcome.
//
// Failure outcomes are returned unchanged without invoking step. Success
// outcomes are terminal and yield ErrInvalidTransition. When step returns a
// Continue its bag is merged on top of the inbound one.
func (o Outcome) AndThen(ctx context.Context, name string, step StepFunc) (Outcome, error) {
	switch o.kind {
	case KindFailure:
		return o, nil
	case KindSuccess:
		return o, invalidTransitionError("AndThen", o)
	case KindContinue:
	default:
		return o, newError(ErrInvalidOutcome, "cannot chain from a zero outcome", nil, map[string]any{
			"step": name,
		})
	}
	if step == nil {
		return o, newError(ErrInvalidOutcome, fmt.Sprintf("step %q is nil", name), nil, map[string]any{
			"step": name,
		})
	}

	next, err := step(ctx, o.value)
	if err != nil {
		return o, err
	}
	if next.IsZero() {
		return o, newError(ErrInvalidOutcome, fmt.Sprintf("step %q returned a zero outcome", name), nil, map[string]any{
			"step": name,
		})
	}

	recordOutcome(ctx, next, name)

	if next.kind == KindContinue {
		return ContinueWith(o.value.Merge(next.value)), nil
	}
	return next, nil
}

// Expose turns a Continue outcome into a Success restricted to keys.
// Failures pass through unchanged.
func (o Outcome) Expose(ctx context.Context, typ string, keys ...string) (Outcome, error) {
	switch o.kind {
	case KindFailure:
		return o, nil
	case KindSuccess:
		return o, invalidTransitionError("Expose", o)
	case KindContinue:
	default:
		return o, newError(ErrInvalidOutcome, "cannot expose a zero outcome", nil, nil)
	}

	v, err := o.value.Only(keys...)
	if err != nil {
		return o, err
	}
	out := SuccessWith(typ, v)
	recordOutcome(ctx, out, "")
	return out, nil
}

// Chain is the fluent form of a pipeline. The first error stops the chain
// and every later call is a no-op.
type Chain struct {
	ctx context.Context
	out Outcome
	err error
}

// Given seeds a chain with the initial bag and records it in the active trace.
func Given(ctx context.Context, v Values) Chain {
	seed := Seed(v)
	recordOutcome(ctx, seed, "")
	return Chain{ctx: ctx, out: seed}
}

// From resumes a chain from an existing outcome.
func From(ctx context.Context, o Outcome) Chain {
	return Chain{ctx: ctx, out: o}
}

// AndThen adds a step to the chain.
func (c Chain) AndThen(name string, step StepFunc) Chain {
	if c.err != nil {
		return c
	}
	c.out, c.err = c.out.AndThen(c.ctx, name, step)
	return c
}

// Expose finishes the chain with a Success restricted to keys.
func (c Chain) Expose(typ string, keys ...string) Chain {
	if c.err != nil {
		return c
	}
	c.out, c.err = c.out.Expose(c.ctx, typ, keys...)
	return c
}

// Then hands the whole chain to fn, which may wrap it, for example inside
// a rollback boundary. It is skipped once the chain failed or errored.
func (c Chain) Then(fn func(Chain) Chain) Chain {
	if c.err != nil || c.out.IsFailure() {
		return c
	}
	next := fn(c)
	next.ctx = c.ctx
	return next
}

// Context returns the context the chain runs in.
func (c Chain) Context() context.Context { return c.ctx }

// Outcome returns the current outcome.
func (c Chain) Outcome() Outcome { return c.out }

// Err returns the error that stopped the chain.
func (c Chain) Err() error { return c.err }

// Result returns the final outcome and error.
func (c Chain) Result() (Outcome, error) {
	return c.out, c.err
}
