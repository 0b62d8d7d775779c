package process

import (
	"reflect"

	"github.com/goliatone/go-errors"
)

// Model is the collaborator that carries input or dependency attributes
// and knows whether they are valid.
type Model interface {
	IsValid() bool
	AttributeMap() map[string]any
}

// OrderedModel exposes the declared attribute order, used by traces.
type OrderedModel interface {
	Model
	AttributeKeys() []string
}

// ModelFactory builds a Model out of raw attributes.
type ModelFactory func(attrs map[string]any) Model

// AttributesOf flattens a model into a bag, keeping the declared order when
// the model provides one.
func AttributesOf(m Model) Values {
	if isNil(m) {
		return Values{}
	}
	attrs := m.AttributeMap()
	if om, ok := m.(OrderedModel); ok {
		return ValuesFromOrderedMap(om.AttributeKeys(), attrs)
	}
	return ValuesFromMap(attrs)
}

// MapModel is a Model over plain attributes that is always valid.
type MapModel struct {
	values Values
}

// NewMapModel wraps attrs. Keys are ordered alphabetically.
func NewMapModel(attrs map[string]any) *MapModel {
	return &MapModel{values: ValuesFromMap(attrs)}
}

func (m *MapModel) IsValid() bool                { return true }
func (m *MapModel) AttributeMap() map[string]any { return m.values.Map() }
func (m *MapModel) AttributeKeys() []string      { return m.values.Keys() }

// ErrValidation marks validation failures reported by MessageModel.
var ErrValidation = errors.New("validation error", errors.CategoryValidation).
	WithTextCode("VALIDATION_FAILED")

// Validator is implemented by messages that validate themselves.
type Validator interface {
	Validate() error
}

// MessageModel adapts a self validating message to Model. The attributes
// are given as alternating key/value pairs.
type MessageModel struct {
	msg    Validator
	values Values
}

func NewMessageModel(msg Validator, kv ...any) *MessageModel {
	return &MessageModel{msg: msg, values: NewValues(kv...)}
}

// Message returns the wrapped message.
func (m *MessageModel) Message() Validator { return m.msg }

func (m *MessageModel) IsValid() bool { return m.Validate() == nil }

// Validate returns the message validation error wrapped with ErrValidation's code.
func (m *MessageModel) Validate() error {
	if isNil(m.msg) {
		return errors.New("nil message pointer", errors.CategoryValidation).
			WithTextCode("INVALID_MESSAGE")
	}
	if err := m.msg.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "message validation failed").
			WithTextCode("VALIDATION_FAILED")
	}
	return nil
}

func (m *MessageModel) AttributeMap() map[string]any { return m.values.Map() }
func (m *MessageModel) AttributeKeys() []string      { return m.values.Keys() }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
