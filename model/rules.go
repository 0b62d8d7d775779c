package model

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	ErrBool = validation.NewError("validation_bool", "is not a boolean")
	ErrID   = validation.NewError("validation_id", "must be an integer greater than 0")
	ErrKind = validation.NewError("validation_kind", "is of an unexpected type")
)

var (
	uuidCaseSensitive   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	uuidCaseInsensitive = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Email requires a present, well formed email address. The domain is not
// resolved.
func Email() []validation.Rule {
	return []validation.Rule{validation.Required, is.EmailFormat}
}

// UUID requires a present UUID string in lower case, or in any case when
// caseSensitive is false.
func UUID(caseSensitive bool) []validation.Rule {
	re := uuidCaseSensitive
	if !caseSensitive {
		re = uuidCaseInsensitive
	}
	return []validation.Rule{
		validation.Required,
		validation.Match(re).ErrorObject(is.ErrUUID),
	}
}

// Bool accepts only true and false.
var Bool = validation.By(func(value any) error {
	if _, ok := value.(bool); !ok {
		return ErrBool
	}
	return nil
})

// ID accepts positive integers.
var ID = validation.By(func(value any) error {
	n, err := validation.ToInt(value)
	if err != nil || n <= 0 {
		return ErrID
	}
	return nil
})

// KindOf accepts values of type T. Nil passes; pair it with
// validation.Required for mandatory attributes.
func KindOf[T any]() validation.Rule {
	return validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		if _, ok := value.(T); !ok {
			var zero T
			return ErrKind.SetMessage(fmt.Sprintf("must be a %T, got %T", zero, value))
		}
		return nil
	})
}
