package process

import (
	"context"
	"fmt"
)

// Process is a single invocation of a Definition. It is not reusable: Call
// may be invoked once, use New for a fresh instance with the same
// dependencies.
type Process struct {
	def    *Definition
	deps   Model
	input  Model
	output Outcome
	called bool
}

func (p *Process) Name() string            { return p.def.name }
func (p *Process) Definition() *Definition { return p.def }
func (p *Process) Input() Model            { return p.input }
func (p *Process) Dependencies() Model     { return p.deps }
func (p *Process) HasInput() bool          { return p.input != nil }
func (p *Process) HasDependencies() bool   { return p.deps != nil }
func (p *Process) HasOutput() bool         { return !p.output.IsZero() }
func (p *Process) Called() bool            { return p.called }
func (p *Process) Output() (Outcome, bool) { return p.output, p.HasOutput() }

// New returns a fresh instance sharing the receiver's dependencies.
func (p *Process) New() *Process {
	return p.def.NewWithDependencies(p.deps)
}

// IsSuccess reports a Success output, optionally of one of the given types.
func (p *Process) IsSuccess(types ...string) bool {
	return p.HasOutput() && p.output.IsSuccess(types...)
}

// IsFailure reports a Failure output, optionally of one of the given types.
func (p *Process) IsFailure(types ...string) bool {
	return p.HasOutput() && p.output.IsFailure(types...)
}

// Is reports whether the output carries the given type.
func (p *Process) Is(typ string) bool {
	return p.HasOutput() && p.output.Is(typ)
}

// Query evaluates a named predicate such as "user_created?" against the
// process. Unknown predicates report false; Predicate reports them.
func (p *Process) Query(predicate string) bool {
	ok, _ := p.Predicate(predicate)
	return ok
}

// Predicate evaluates a named predicate and fails for unknown names.
func (p *Process) Predicate(predicate string) (bool, error) {
	g, ok := p.def.guards.Lookup(predicate)
	if !ok {
		return false, newError(ErrInvalidDefinition,
			fmt.Sprintf("unknown predicate %q for %s", predicateName(predicate), p.Name()),
			nil,
			map[string]any{"process": p.Name(), "predicate": predicate},
		)
	}
	return g(p), nil
}

// Succeed assigns a Success output. Meant for rescue handlers; it fails with
// ErrAlreadySet when an output exists.
func (p *Process) Succeed(typ string, kv ...any) error {
	return p.assign(Success(typ, kv...), "Succeed")
}

// Fail assigns a Failure output. Meant for rescue handlers; it fails with
// ErrAlreadySet when an output exists.
func (p *Process) Fail(typ string, kv ...any) error {
	return p.assign(Failure(typ, kv...), "Fail")
}

func (p *Process) assign(o Outcome, call string) error {
	if p.HasOutput() {
		return alreadySetError(call, p.Name())
	}
	if !o.IsTerminal() {
		return newError(ErrInvalidOutcome,
			fmt.Sprintf("%s must finish with a Success or a Failure, got %s", p.Name(), o),
			nil,
			map[string]any{"process": p.Name(), "call": call},
		)
	}
	p.output = o
	return nil
}

// Call builds the input model from attrs and runs the process.
func (p *Process) Call(ctx context.Context, attrs map[string]any) (Outcome, error) {
	if p.called {
		return Outcome{}, p.alreadyCalled()
	}
	var in Model
	if p.def.input != nil {
		in = p.def.input(attrs)
	} else {
		in = NewMapModel(attrs)
	}
	return p.CallModel(ctx, in)
}

// CallModel runs the process with an input model: hooks, gatekeeper, body,
// rescue handlers and tracing. Business failures are returned as Failure
// outcomes; the error is reserved for contract violations and unhandled
// interruptions.
func (p *Process) CallModel(ctx context.Context, in Model) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.called {
		return Outcome{}, p.alreadyCalled()
	}
	p.called = true

	if isNil(in) {
		in = NewMapModel(nil)
	}
	p.input = in

	if err := p.def.callbacks.runCall(ctx, p, p.execute); err != nil {
		return p.output, err
	}
	if !p.HasOutput() {
		return Outcome{}, newError(ErrInvalidOutcome, fmt.Sprintf("%s finished without an output", p.Name()), nil, nil)
	}
	if err := p.def.callbacks.runOutcome(ctx, p); err != nil {
		return p.output, err
	}
	return p.output, nil
}

func (p *Process) execute(ctx context.Context) (err error) {
	ctx, f, root := enterInvocation(ctx, p.def.name, p.def.description, p.def.config)
	logger := p.logger(ctx)
	logger.Debug("process %s started", p.Name())

	defer func() {
		if r := recover(); r != nil {
			perr := newPanicError(r)
			logger.Debug("process %s panicked: %v", p.Name(), r)
			f.exit(ctx, root, perr)
			panic(r)
		}
		if p.HasOutput() {
			f.recordTerminal(p.output)
		}
		if err != nil {
			logger.Debug("process %s interrupted: %v", p.Name(), err)
		} else {
			logger.Debug("process %s finished as %s", p.Name(), p.output)
		}
		f.exit(ctx, root, err)
	}()

	out, runErr := p.run(ctx)
	if runErr != nil {
		if handled, herr := p.reconcile(ctx, runErr); handled {
			return herr
		}
		return runErr
	}
	return p.assign(out, "output")
}

func (p *Process) run(ctx context.Context) (out Outcome, err error) {
	if p.def.config.RecoverPanics {
		defer func() {
			if r := recover(); r != nil {
				out, err = Outcome{}, newPanicError(r)
			}
		}()
	}

	if failure, ok := gatekeep(p.deps, p.input); !ok {
		return failure, nil
	}

	out, err = p.def.body(ctx, p, AttributesOf(p.input))
	if err != nil {
		return Outcome{}, err
	}
	if out.IsZero() {
		return Outcome{}, newError(ErrInvalidOutcome, fmt.Sprintf("%s returned a zero outcome", p.Name()), nil, map[string]any{
			"process": p.Name(),
		})
	}
	return out, nil
}

func (p *Process) alreadyCalled() error {
	return newError(ErrAlreadyCalled,
		fmt.Sprintf("The `%s#output` is already set. Use Output to access the result or create a new instance to call again.", p.Name()),
		nil,
		map[string]any{"process": p.Name()},
	)
}

func (p *Process) logger(ctx context.Context) Logger {
	fields := map[string]any{"process": p.Name()}
	if id, ok := InvocationID(ctx); ok {
		fields["invocation_id"] = id
	}
	if id, ok := TraceID(ctx); ok {
		fields["trace_id"] = id
	}
	return LoggerWithFields(p.def.config.Logger.WithContext(ctx), fields)
}

// Dep returns the dependency attribute key asserted to T.
func Dep[T any](p *Process, key string) (T, bool) {
	var zero T
	if p == nil || isNil(p.deps) {
		return zero, false
	}
	v, ok := p.deps.AttributeMap()[key].(T)
	if !ok {
		return zero, false
	}
	return v, true
}
