package process

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind tags an Outcome.
type Kind uint8

const (
	// KindContinue is the non-terminal, in-pipeline outcome.
	KindContinue Kind = iota + 1
	KindSuccess
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "invalid"
	}
}

// Reserved type tags. Business code never matches them through Is.
const (
	TypeGiven    = "_given_"
	TypeContinue = "_continue_"
)

// Well known failure types produced by the gatekeeper.
const (
	TypeInvalidInput        = "invalid_input"
	TypeInvalidDependencies = "invalid_dependencies"
)

// Outcome is the immutable result of a step or a process.
type Outcome struct {
	kind  Kind
	typ   string
	value Values
}

// Success builds a terminal success outcome.
func Success(typ string, kv ...any) Outcome {
	return SuccessWith(typ, NewValues(kv...))
}

// SuccessWith builds a terminal success outcome from an existing bag.
func SuccessWith(typ string, v Values) Outcome {
	return Outcome{kind: KindSuccess, typ: typ, value: v}
}

// Failure builds a terminal failure outcome.
func Failure(typ string, kv ...any) Outcome {
	return FailureWith(typ, NewValues(kv...))
}

// FailureWith builds a terminal failure outcome from an existing bag.
func FailureWith(typ string, v Values) Outcome {
	return Outcome{kind: KindFailure, typ: typ, value: v}
}

// Continue builds a non-terminal outcome carrying data to the next step.
func Continue(kv ...any) Outcome {
	return ContinueWith(NewValues(kv...))
}

// ContinueWith builds a non-terminal outcome from an existing bag.
func ContinueWith(v Values) Outcome {
	return Outcome{kind: KindContinue, typ: TypeContinue, value: v}
}

// Seed builds the initial Given outcome without recording it. Use Given to
// start a traced chain.
func Seed(v Values) Outcome {
	return Outcome{kind: KindContinue, typ: TypeGiven, value: v}
}

func (o Outcome) Kind() Kind       { return o.kind }
func (o Outcome) Type() string     { return o.typ }
func (o Outcome) Value() Values    { return o.value }
func (o Outcome) IsZero() bool     { return o.kind == 0 }
func (o Outcome) IsContinue() bool { return o.kind == KindContinue }

// IsTerminal reports whether the outcome ends a chain.
func (o Outcome) IsTerminal() bool {
	return o.kind == KindSuccess || o.kind == KindFailure
}

// Is reports whether the outcome carries the given type tag, whatever its kind.
func (o Outcome) Is(name string) bool {
	if name == TypeGiven || name == TypeContinue {
		return false
	}
	return o.typ == name
}

// IsType is an alias of Is.
func (o Outcome) IsType(name string) bool { return o.Is(name) }

// IsSuccess reports a success outcome, optionally of one of the given types.
func (o Outcome) IsSuccess(types ...string) bool {
	return o.kind == KindSuccess && o.matchesAny(types)
}

// IsFailure reports a failure outcome, optionally of one of the given types.
func (o Outcome) IsFailure(types ...string) bool {
	return o.kind == KindFailure && o.matchesAny(types)
}

func (o Outcome) matchesAny(types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if o.Is(t) {
			return true
		}
	}
	return false
}

// Unpack deconstructs the outcome.
func (o Outcome) Unpack() (Kind, string, Values) {
	return o.kind, o.typ, o.value
}

// Equal compares kind, type and value.
func (o Outcome) Equal(other Outcome) bool {
	return o.kind == other.kind && o.typ == other.typ && o.value.Equal(other.value)
}

// String renders the outcome as traces display it.
func (o Outcome) String() string {
	switch {
	case o.kind == 0:
		return "Outcome(<zero>)"
	case o.typ == TypeGiven:
		return fmt.Sprintf("Given(%s)", o.value)
	case o.typ == TypeContinue:
		return fmt.Sprintf("Continue(%s)", o.value)
	}
	kind := o.kind.String()
	head := strings.ToUpper(kind[:1]) + kind[1:]
	if o.value.Len() == 0 {
		return fmt.Sprintf("%s(:%s)", head, o.typ)
	}
	return fmt.Sprintf("%s(:%s, %s)", head, o.typ, o.value)
}

// Cases is the set of branches used by Match.
type Cases[R any] struct {
	Success  func(typ string, v Values) R
	Failure  func(typ string, v Values) R
	Continue func(v Values) R
}

// Match branches on the outcome kind. A missing branch yields the zero R.
func Match[R any](o Outcome, c Cases[R]) R {
	var zero R
	switch o.kind {
	case KindSuccess:
		if c.Success != nil {
			return c.Success(o.typ, o.value)
		}
	case KindFailure:
		if c.Failure != nil {
			return c.Failure(o.typ, o.value)
		}
	case KindContinue:
		if c.Continue != nil {
			return c.Continue(o.value)
		}
	}
	return zero
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
