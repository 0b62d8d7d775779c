package model

import (
	"context"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	process "github.com/goliatone/go-process"
)

func userSchema() *Schema {
	return NewSchema("User::Creation::Input",
		Attr("uuid", DefaultFunc(func() any { return uuid.NewString() }), Normalize(TrimSpace), Normalize(Downcase), Rules(UUID(true)...)),
		Attr("name", Normalize(Squish), Rules(validation.Required)),
		Attr("email", Normalize(TrimSpace), Normalize(Downcase), Rules(Email()...)),
		Attr("password", Rules(validation.Required)),
		Attr("password_confirmation", Rules(validation.Required)),
	).BeforeValidation(func(attrs map[string]any) {
		if attrs["password"] != attrs["password_confirmation"] {
			attrs["password_confirmation"] = nil
		}
	})
}

func TestSchemaBuildNormalizesAndValidates(t *testing.T) {
	in := userSchema().Build(map[string]any{
		"name":                  "  Ada   Lovelace ",
		"email":                 " ADA@Example.com ",
		"password":              "secret",
		"password_confirmation": "secret",
	})

	require.True(t, in.IsValid(), in.Errors())
	assert.NoError(t, in.Err())
	assert.Equal(t, "Ada Lovelace", in.Get("name"))
	assert.Equal(t, "ada@example.com", in.Get("email"))

	id, ok := in.Get("uuid").(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	assert.Equal(t, []string{"uuid", "name", "email", "password", "password_confirmation"}, in.AttributeKeys())
	assert.Equal(t, in.AttributeKeys(), process.AttributesOf(in).Keys())
}

func TestSchemaBuildReportsErrors(t *testing.T) {
	in := userSchema().Build(map[string]any{
		"uuid":                  "not-a-uuid",
		"email":                 "nope",
		"password":              "a",
		"password_confirmation": "b",
		"role":                  "admin",
	})

	require.False(t, in.IsValid())
	errs := in.Errors()
	for _, key := range []string{"uuid", "name", "email", "password_confirmation", "role"} {
		assert.Contains(t, errs, key)
	}
	assert.NotContains(t, errs, "password")
	assert.Error(t, in.Err())
	assert.Contains(t, in.String(), "#<User::Creation::Input uuid=not-a-uuid")
}

func TestSchemaDefaultsDoNotOverrideValues(t *testing.T) {
	s := NewSchema("Token", Attr("ttl", Default(15), Rules(ID)), Attr("active", Default(true), Rules(Bool)))

	in := s.Build(nil)
	require.True(t, in.IsValid(), in.Errors())
	assert.Equal(t, 15, in.Get("ttl"))
	assert.Equal(t, true, in.Get("active"))

	in = s.Build(map[string]any{"ttl": -1, "active": "yes"})
	assert.False(t, in.IsValid())
	assert.Contains(t, in.Errors(), "ttl")
	assert.Contains(t, in.Errors(), "active")
}

func TestCustomRules(t *testing.T) {
	assert.NoError(t, validation.Validate("6f9c2b1e-8a7d-4c3b-9e2f-1a2b3c4d5e6f", UUID(true)...))
	assert.Error(t, validation.Validate("6F9C2B1E-8A7D-4C3B-9E2F-1A2B3C4D5E6F", UUID(true)...))
	assert.NoError(t, validation.Validate("6F9C2B1E-8A7D-4C3B-9E2F-1A2B3C4D5E6F", UUID(false)...))

	assert.NoError(t, validation.Validate(false, Bool))
	assert.Error(t, validation.Validate(1, Bool))

	assert.NoError(t, validation.Validate(3, ID))
	assert.Error(t, validation.Validate(0, ID))
	assert.Error(t, validation.Validate("x", ID))

	assert.NoError(t, validation.Validate("s", KindOf[string]()))
	assert.Error(t, validation.Validate(1, KindOf[string]()))
}

func TestSchemaFactoryWithProcess(t *testing.T) {
	def := process.MustDefine("User::Creation", func(ctx context.Context, p *process.Process, attrs process.Values) (process.Outcome, error) {
		return process.Given(ctx, attrs).Expose("user_created", "email").Result()
	}, process.WithInput(userSchema().Factory()))

	out, err := def.Call(context.Background(), map[string]any{"email": "bad"})
	require.NoError(t, err)
	require.True(t, out.IsFailure(process.TypeInvalidInput))

	raw, _ := out.Value().Get("input")
	in, ok := raw.(*Input)
	require.True(t, ok)
	assert.Contains(t, in.Errors(), "email")

	out, err = def.Call(context.Background(), map[string]any{
		"name":                  "Ada",
		"email":                 "ada@example.com",
		"password":              "x",
		"password_confirmation": "x",
	})
	require.NoError(t, err)
	email, _ := process.Lookup[string](out.Value(), "email")
	assert.Equal(t, "ada@example.com", email)
}
