package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Body is the pipeline of a process. It receives the validated input
// attributes and must finish with a Success or a Failure.
type Body func(ctx context.Context, p *Process, attrs Values) (Outcome, error)

// Definition is the immutable description of a process: its body, input
// and dependency models, hooks and rescue handlers. Build it once with
// Define and share it; every call runs on a fresh Process instance.
type Definition struct {
	name        string
	description string
	body        Body
	input       ModelFactory
	deps        ModelFactory
	config      Config

	callbacks callbacks
	rescues   []rescuer
	methods   map[string]RescueFunc
	guards    *GuardRegistry
	outcomes  []string

	customGuards []namedGuard
	errs         []error
}

type namedGuard struct {
	name  string
	guard Guard
}

// Option configures a Definition while it is built.
type Option func(*Definition)

// Define builds a definition. Hooks referencing unknown predicates, rescue
// handlers naming unknown methods and duplicated guards are reported here.
func Define(name string, body Body, opts ...Option) (*Definition, error) {
	d := &Definition{
		name:    strings.TrimSpace(name),
		body:    body,
		config:  DefaultConfig(),
		methods: make(map[string]RescueFunc),
	}
	if d.name == "" {
		d.errs = append(d.errs, fmt.Errorf("process name is required"))
	}
	if body == nil {
		d.errs = append(d.errs, fmt.Errorf("process body is required"))
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	d.config = d.config.normalized()
	d.guards = NewGuardRegistry()
	for _, typ := range d.outcomes {
		d.guards.RegisterOutcome(typ)
	}
	for _, ng := range d.customGuards {
		if err := d.guards.Register(ng.name, ng.guard); err != nil {
			d.errs = append(d.errs, err)
		}
	}
	if err := d.callbacks.resolve(d.guards); err != nil {
		d.errs = append(d.errs, err)
	}
	for i, r := range d.rescues {
		if r.fn != nil {
			continue
		}
		fn, ok := d.methods[r.method]
		if !ok {
			d.errs = append(d.errs, fmt.Errorf("rescue handler #%d names unknown method %q", i, r.method))
			continue
		}
		d.rescues[i].fn = fn
	}

	if len(d.errs) > 0 {
		return nil, newError(ErrInvalidDefinition,
			fmt.Sprintf("invalid process definition %q", d.name),
			stderrors.Join(d.errs...),
			map[string]any{"process": d.name},
		)
	}
	return d, nil
}

// MustDefine is Define for package level definitions; it panics on error.
func MustDefine(name string, body Body, opts ...Option) *Definition {
	d, err := Define(name, body, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Definition) Name() string        { return d.name }
func (d *Definition) Description() string { return d.description }
func (d *Definition) Config() Config      { return d.config }

// Outcomes lists the declared outcome types.
func (d *Definition) Outcomes() []string {
	return append([]string(nil), d.outcomes...)
}

// Predicates lists every predicate name hooks and Query may use.
func (d *Definition) Predicates() []string {
	return d.guards.Names()
}

// New builds a process instance with default dependencies.
func (d *Definition) New() *Process {
	return d.NewWith(nil)
}

// NewWith builds a process instance whose dependencies are built from attrs.
func (d *Definition) NewWith(attrs map[string]any) *Process {
	var deps Model
	switch {
	case d.deps != nil:
		deps = d.deps(attrs)
	case len(attrs) > 0:
		deps = NewMapModel(attrs)
	}
	return d.NewWithDependencies(deps)
}

// NewWithDependencies builds a process instance around a dependency model.
func (d *Definition) NewWithDependencies(deps Model) *Process {
	return &Process{def: d, deps: deps}
}

// Call runs a fresh instance with default dependencies.
func (d *Definition) Call(ctx context.Context, attrs map[string]any) (Outcome, error) {
	return d.New().Call(ctx, attrs)
}

// WithDescription sets the description shown next to the name in traces.
func WithDescription(desc string) Option {
	return func(d *Definition) {
		d.description = strings.TrimSpace(desc)
	}
}

// WithInput sets the factory turning call attributes into the input model.
func WithInput(factory ModelFactory) Option {
	return func(d *Definition) {
		d.input = factory
	}
}

// WithDependencies sets the factory building the dependency model.
func WithDependencies(factory ModelFactory) Option {
	return func(d *Definition) {
		d.deps = factory
	}
}

// WithOutcomes declares the outcome types of the process, enabling the
// "<type>?" predicates in hooks and Query.
func WithOutcomes(types ...string) Option {
	return func(d *Definition) {
		for _, t := range types {
			if t = strings.TrimSuffix(strings.TrimSpace(t), "?"); t != "" {
				d.outcomes = append(d.outcomes, t)
			}
		}
	}
}

// WithGuard registers a named predicate.
func WithGuard(name string, guard Guard) Option {
	return func(d *Definition) {
		d.customGuards = append(d.customGuards, namedGuard{name: name, guard: guard})
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(d *Definition) {
		d.config = cfg
	}
}

// WithListener sets the trace listener.
func WithListener(l Listener) Option {
	return func(d *Definition) {
		d.config.Listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(d *Definition) {
		d.config.Logger = l
	}
}

func addHook(phase Phase, run HookFunc, conds []Condition) Option {
	return func(d *Definition) {
		if run == nil {
			d.errs = append(d.errs, fmt.Errorf("%s hook function is required", phase))
			return
		}
		d.callbacks.add(hook{phase: phase, run: run, conditions: conds})
	}
}

// BeforeCall runs fn before the pipeline, input already assigned.
func BeforeCall(fn HookFunc, conds ...Condition) Option {
	return addHook(PhaseBeforeCall, fn, conds)
}

// AroundCall wraps the pipeline with fn.
func AroundCall(fn AroundFunc, conds ...Condition) Option {
	return func(d *Definition) {
		if fn == nil {
			d.errs = append(d.errs, fmt.Errorf("%s hook function is required", PhaseAroundCall))
			return
		}
		d.callbacks.add(hook{phase: PhaseAroundCall, around: fn, conditions: conds})
	}
}

// AfterCall runs fn once the pipeline produced its output, before the
// success and failure hooks.
func AfterCall(fn HookFunc, conds ...Condition) Option {
	return addHook(PhaseAfterCall, fn, conds)
}

// AfterSuccess runs fn when the output is a Success.
func AfterSuccess(fn HookFunc, conds ...Condition) Option {
	return addHook(PhaseAfterSuccess, fn, conds)
}

// AfterFailure runs fn when the output is a Failure.
func AfterFailure(fn HookFunc, conds ...Condition) Option {
	return addHook(PhaseAfterFailure, fn, conds)
}

// AfterOutput runs fn last, whatever the output.
func AfterOutput(fn HookFunc, conds ...Condition) Option {
	return addHook(PhaseAfterOutput, fn, conds)
}

// AfterResult is an alias of AfterOutput.
func AfterResult(fn HookFunc, conds ...Condition) Option {
	return AfterOutput(fn, conds...)
}

// RescueFrom registers fn for the errors accepted by match.
func RescueFrom(match Matcher, fn RescueFunc) Option {
	return func(d *Definition) {
		if match == nil || fn == nil {
			d.errs = append(d.errs, fmt.Errorf("rescue matcher and handler are required"))
			return
		}
		d.rescues = append(d.rescues, rescuer{match: match, fn: fn})
	}
}

// RescueWith registers the named rescue method for the errors accepted by
// match. The method is resolved when the definition is built.
func RescueWith(match Matcher, method string) Option {
	return func(d *Definition) {
		if match == nil || strings.TrimSpace(method) == "" {
			d.errs = append(d.errs, fmt.Errorf("rescue matcher and method name are required"))
			return
		}
		d.rescues = append(d.rescues, rescuer{match: match, method: strings.TrimSpace(method)})
	}
}

// WithRescueMethod registers a named rescue method for RescueWith.
func WithRescueMethod(name string, fn RescueFunc) Option {
	return func(d *Definition) {
		name = strings.TrimSpace(name)
		if name == "" || fn == nil {
			d.errs = append(d.errs, fmt.Errorf("rescue method name and function are required"))
			return
		}
		if _, exists := d.methods[name]; exists {
			d.errs = append(d.errs, fmt.Errorf("rescue method %q already registered", name))
			return
		}
		d.methods[name] = fn
	}
}

// RescueAs registers fn for errors holding a T in their chain.
func RescueAs[T error](fn func(ctx context.Context, p *Process, err T) error) Option {
	return func(d *Definition) {
		if fn == nil {
			d.errs = append(d.errs, fmt.Errorf("rescue handler is required"))
			return
		}
		d.rescues = append(d.rescues, rescuer{
			match: ErrorAs[T](),
			fn: func(ctx context.Context, p *Process, err error) error {
				var target T
				stderrors.As(err, &target)
				return fn(ctx, p, target)
			},
		})
	}
}
