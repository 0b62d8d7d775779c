package process

import (
	"context"
	stderrors "errors"
	"fmt"

	apperrors "github.com/goliatone/go-errors"
)

// Matcher selects the errors a rescue handler accepts.
type Matcher func(err error) bool

// RescueFunc converts an interruption into an outcome by calling
// p.Succeed or p.Fail. Returning an error propagates it instead.
type RescueFunc func(ctx context.Context, p *Process, err error) error

// ErrorIs matches errors for which errors.Is(err, target) holds. A go-errors
// target with a text code also matches its clones, which carry the same code.
func ErrorIs(target error) Matcher {
	var code string
	var ge *apperrors.Error
	if stderrors.As(target, &ge) {
		code = ge.TextCode
	}
	return func(err error) bool {
		if stderrors.Is(err, target) {
			return true
		}
		return code != "" && ErrorCode(err) == code
	}
}

// ErrorAs matches errors holding a T in their chain.
func ErrorAs[T error]() Matcher {
	return func(err error) bool {
		var target T
		return stderrors.As(err, &target)
	}
}

// ErrorCategory matches go-errors errors of the given category.
func ErrorCategory(category apperrors.Category) Matcher {
	return func(err error) bool {
		var ge *apperrors.Error
		return stderrors.As(err, &ge) && ge.Category == category
	}
}

// ErrorTextCode matches go-errors errors carrying the given text code.
func ErrorTextCode(code string) Matcher {
	return func(err error) bool { return ErrorCode(err) == code }
}

// AnyError matches every error.
func AnyError() Matcher {
	return func(error) bool { return true }
}

type rescuer struct {
	match  Matcher
	fn     RescueFunc
	method string
}

// reconcile hands err to the first matching handler in declaration order.
// Contract violations are never handled.
func (p *Process) reconcile(ctx context.Context, err error) (bool, error) {
	if IsContractViolation(err) {
		return false, err
	}
	for _, r := range p.def.rescues {
		if !r.match(err) {
			continue
		}
		if herr := r.fn(ctx, p, err); herr != nil {
			return true, herr
		}
		if !p.HasOutput() {
			return true, newError(ErrInvalidOutcome,
				fmt.Sprintf("rescue handler of %s returned without assigning an outcome", p.Name()),
				err,
				map[string]any{"process": p.Name(), "method": r.method},
			)
		}
		p.logger(ctx).Warn("rescued %T in %s as %s", err, p.Name(), p.output)
		return true, nil
	}
	return false, err
}
