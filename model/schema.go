// Package model builds validated input and dependency models for processes
// out of declared attribute schemas.
package model

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	process "github.com/goliatone/go-process"
)

// Field declares one attribute of a schema.
type Field struct {
	name      string
	defaultFn func() any
	normalize []func(any) any
	rules     []validation.Rule
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// Attr declares an attribute.
func Attr(name string, opts ...FieldOption) Field {
	f := Field{name: strings.TrimSpace(name)}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// Default sets a static default used when the attribute is absent or nil.
func Default(v any) FieldOption {
	return func(f *Field) { f.defaultFn = func() any { return v } }
}

// DefaultFunc sets a default computed on every build, e.g. a fresh UUID.
func DefaultFunc(fn func() any) FieldOption {
	return func(f *Field) { f.defaultFn = fn }
}

// Rules attaches ozzo-validation rules.
func Rules(rules ...validation.Rule) FieldOption {
	return func(f *Field) { f.rules = append(f.rules, rules...) }
}

// Normalize registers a transformation applied before validation.
func Normalize(fn func(any) any) FieldOption {
	return func(f *Field) {
		if fn != nil {
			f.normalize = append(f.normalize, fn)
		}
	}
}

// Schema is an ordered list of attributes with their validation rules.
type Schema struct {
	name   string
	fields []Field
	before []func(attrs map[string]any)
}

// NewSchema declares a schema. Attribute order is kept in AttributeKeys.
func NewSchema(name string, fields ...Field) *Schema {
	return &Schema{name: name, fields: fields}
}

// BeforeValidation registers a hook that may rewrite attributes after
// defaults and normalizers ran.
func (s *Schema) BeforeValidation(fn func(attrs map[string]any)) *Schema {
	if fn != nil {
		s.before = append(s.before, fn)
	}
	return s
}

// Keys lists the declared attribute names in order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		keys = append(keys, f.name)
	}
	return keys
}

// Build fills defaults, normalizes and validates attrs. Undeclared
// attributes are reported as validation errors.
func (s *Schema) Build(attrs map[string]any) *Input {
	values := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := attrs[f.name]
		if (!ok || v == nil) && f.defaultFn != nil {
			v = f.defaultFn()
		}
		for _, fn := range f.normalize {
			v = fn(v)
		}
		values[f.name] = v
	}
	for _, fn := range s.before {
		fn(values)
	}

	check := make(map[string]any, len(attrs)+len(values))
	for k, v := range attrs {
		check[k] = v
	}
	for k, v := range values {
		check[k] = v
	}

	keys := make([]*validation.KeyRules, 0, len(s.fields))
	for _, f := range s.fields {
		keys = append(keys, validation.Key(f.name, f.rules...))
	}

	in := &Input{schema: s, keys: s.Keys(), values: values}
	if err := validation.Validate(check, validation.Map(keys...)); err != nil {
		if errs, ok := err.(validation.Errors); ok {
			in.errs = errs
		} else {
			in.errs = validation.Errors{"": err}
		}
	}
	return in
}

// Factory adapts the schema to process.WithInput and process.WithDependencies.
func (s *Schema) Factory() process.ModelFactory {
	return func(attrs map[string]any) process.Model {
		return s.Build(attrs)
	}
}

// Input is a built model. It is immutable once built.
type Input struct {
	schema *Schema
	keys   []string
	values map[string]any
	errs   validation.Errors
}

var _ process.OrderedModel = (*Input)(nil)

func (in *Input) IsValid() bool { return len(in.errs) == 0 }

func (in *Input) AttributeMap() map[string]any {
	out := make(map[string]any, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}
	return out
}

func (in *Input) AttributeKeys() []string { return append([]string(nil), in.keys...) }

// Get returns an attribute value.
func (in *Input) Get(key string) any { return in.values[key] }

// Errors returns the validation errors indexed by attribute.
func (in *Input) Errors() validation.Errors { return in.errs }

// Err returns the validation errors as an error, nil when valid.
func (in *Input) Err() error {
	if in.IsValid() {
		return nil
	}
	return in.errs
}

func (in *Input) String() string {
	parts := make([]string, 0, len(in.keys))
	for _, k := range in.keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, in.values[k]))
	}
	return fmt.Sprintf("#<%s %s>", in.schema.name, strings.Join(parts, " "))
}

// TrimSpace normalizes string values by trimming surrounding whitespace.
func TrimSpace(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

// Downcase normalizes string values to lower case.
func Downcase(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

var whitespace = regexp.MustCompile(`\s+`)

// Squish trims and collapses inner runs of whitespace to a single space.
func Squish(v any) any {
	if s, ok := v.(string); ok {
		return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	}
	return v
}
