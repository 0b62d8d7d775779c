package process

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeAlreadyCalled      = "PROCESS_ALREADY_CALLED"
	ErrCodeAlreadySet         = "PROCESS_OUTPUT_ALREADY_SET"
	ErrCodeAroundCallMisuse   = "PROCESS_AROUND_CALL_MISUSE"
	ErrCodeInvalidTransition  = "PROCESS_INVALID_TRANSITION"
	ErrCodeMissingKey         = "PROCESS_MISSING_KEY"
	ErrCodeInvalidOutcome     = "PROCESS_INVALID_OUTCOME"
	ErrCodeInvalidDefinition  = "PROCESS_INVALID_DEFINITION"
	ErrCodeRegistryFrozen     = "REGISTRY_ALREADY_INITIALIZED"
	ErrCodeRegistryNotReady   = "REGISTRY_NOT_INITIALIZED"
	ErrCodeRegistryDuplicate  = "REGISTRY_DUPLICATE_PROCESS"
	ErrCodeRegistryUnknown    = "REGISTRY_UNKNOWN_PROCESS"
	ErrCodeTransactionFailure = "PROCESS_TRANSACTION_FAILED"
)

// Contract violations. They signal a bug in the calling code and are never
// handed to rescue handlers nor turned into Failure outcomes.
var (
	ErrAlreadyCalled = apperrors.New("process already called", apperrors.CategoryConflict).
				WithTextCode(ErrCodeAlreadyCalled)
	ErrAlreadySet = apperrors.New("process output already set", apperrors.CategoryConflict).
			WithTextCode(ErrCodeAlreadySet)
	ErrAroundCallMisuse = apperrors.New("around_call hook must invoke its continuation exactly once", apperrors.CategoryHandler).
				WithTextCode(ErrCodeAroundCallMisuse)
	ErrInvalidTransition = apperrors.New("invalid outcome transition", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidTransition)
	ErrMissingKey = apperrors.New("missing key", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeMissingKey)
	ErrInvalidOutcome = apperrors.New("invalid outcome", apperrors.CategoryHandler).
				WithTextCode(ErrCodeInvalidOutcome)
)

var (
	ErrInvalidDefinition = apperrors.New("invalid process definition", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidDefinition)
	ErrRegistryFrozen = apperrors.New("cannot register processes after registry has been initialized", apperrors.CategoryConflict).
				WithTextCode(ErrCodeRegistryFrozen)
	ErrRegistryNotReady = apperrors.New("registry not initialized", apperrors.CategoryConflict).
				WithTextCode(ErrCodeRegistryNotReady)
	ErrRegistryDuplicate = apperrors.New("process already registered", apperrors.CategoryConflict).
				WithTextCode(ErrCodeRegistryDuplicate)
	ErrRegistryUnknown = apperrors.New("process not registered", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeRegistryUnknown)
	ErrTransactionFailure = apperrors.New("transaction failed", apperrors.CategoryExternal).
				WithTextCode(ErrCodeTransactionFailure)
)

var contractCodes = map[string]struct{}{
	ErrCodeAlreadyCalled:     {},
	ErrCodeAlreadySet:        {},
	ErrCodeAroundCallMisuse:  {},
	ErrCodeInvalidTransition: {},
	ErrCodeMissingKey:        {},
	ErrCodeInvalidOutcome:    {},
}

func newError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the first go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsContractViolation reports whether err signals misuse of the engine.
func IsContractViolation(err error) bool {
	_, ok := contractCodes[ErrorCode(err)]
	return ok
}

func missingKeyError(key string, present []string) error {
	return newError(ErrMissingKey, fmt.Sprintf("key %q was never set", key), nil, map[string]any{
		"key":       key,
		"present":   append([]string(nil), present...),
		"operation": "expose",
	})
}

func invalidTransitionError(op string, from Outcome) error {
	return newError(ErrInvalidTransition,
		fmt.Sprintf("cannot call %s on a terminal %s outcome", op, from.Kind()),
		nil,
		map[string]any{
			"operation": op,
			"kind":      from.Kind().String(),
			"type":      from.Type(),
		})
}

func alreadySetError(call, processName string) error {
	return newError(ErrAlreadySet,
		fmt.Sprintf("`%s()` cannot be called because the `%s#output` is already set.", call, processName),
		nil,
		map[string]any{
			"call":    call,
			"process": processName,
		})
}
