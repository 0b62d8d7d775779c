package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomePredicates(t *testing.T) {
	ok := Success("ok", "a", 1)
	assert.True(t, ok.Is("ok"))
	assert.True(t, ok.IsType("ok"))
	assert.True(t, ok.IsSuccess())
	assert.True(t, ok.IsSuccess("ok"))
	assert.True(t, ok.IsSuccess("other", "ok"))
	assert.False(t, ok.IsSuccess("other"))
	assert.False(t, ok.IsFailure())
	assert.True(t, ok.IsTerminal())

	err := Failure("err")
	assert.False(t, err.Is("ok"))
	assert.True(t, err.Is("err"))
	assert.True(t, err.IsFailure("err"))
	assert.False(t, err.IsSuccess("err"))
}

func TestReservedTypesNeverMatch(t *testing.T) {
	c := Continue("a", 1)
	assert.False(t, c.Is(TypeContinue))
	assert.False(t, c.IsTerminal())
	assert.True(t, c.IsContinue())

	g := Seed(NewValues("a", 1))
	assert.False(t, g.Is(TypeGiven))
	assert.Equal(t, TypeGiven, g.Type())
	assert.Equal(t, KindContinue, g.Kind())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Success(:user_created, user:, token:)", Success("user_created", "user", 1, "token", 2).String())
	assert.Equal(t, "Failure(:email_already_taken)", Failure("email_already_taken").String())
	assert.Equal(t, "Continue()", Continue().String())
	assert.Equal(t, "Continue(user:)", Continue("user", 1).String())
	assert.Equal(t, "Given(uuid:, owner:)", Seed(NewValues("uuid", "x", "owner", nil)).String())
}

func TestOutcomeEqualAndUnpack(t *testing.T) {
	a := Success("ok", "a", 1)
	b := Success("ok", "a", 1)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Success("ok", "a", 2)))
	assert.False(t, a.Equal(Failure("ok", "a", 1)))

	kind, typ, v := a.Unpack()
	assert.Equal(t, KindSuccess, kind)
	assert.Equal(t, "ok", typ)
	assert.Equal(t, []string{"a"}, v.Keys())
}

func TestMatch(t *testing.T) {
	cases := Cases[string]{
		Success:  func(typ string, v Values) string { return "s:" + typ },
		Failure:  func(typ string, v Values) string { return "f:" + typ },
		Continue: func(v Values) string { return "c:" + v.String() },
	}

	assert.Equal(t, "s:ok", Match(Success("ok"), cases))
	assert.Equal(t, "f:bad", Match(Failure("bad"), cases))
	assert.Equal(t, "c:a:", Match(Continue("a", 1), cases))
	assert.Equal(t, "", Match(Outcome{}, cases))
	assert.Equal(t, "", Match(Success("ok"), Cases[string]{}))
}

func TestExpose(t *testing.T) {
	ctx := context.Background()

	out, err := Continue("user", "u", "token", "t", "tmp", 1).Expose(ctx, "user_created", "user", "token")
	require.NoError(t, err)
	assert.True(t, out.IsSuccess("user_created"))
	assert.Equal(t, []string{"user", "token"}, out.Value().Keys())
	assert.False(t, out.Value().Has("tmp"))

	_, err = Continue("user", "u").Expose(ctx, "user_created", "user", "token")
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingKey, ErrorCode(err))
	assert.True(t, IsContractViolation(err))

	failed := Failure("nope")
	out, err = failed.Expose(ctx, "user_created", "user")
	require.NoError(t, err)
	assert.True(t, out.Equal(failed))

	_, err = Success("done").Expose(ctx, "again")
	assert.Equal(t, ErrCodeInvalidTransition, ErrorCode(err))
}
