package process

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinition(name string) *Definition {
	return MustDefine(name, func(ctx context.Context, p *Process, attrs Values) (Outcome, error) {
		return SuccessWith("done", attrs), nil
	})
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.Names())

	_, err := r.Lookup("anything")
	assert.Equal(t, ErrCodeRegistryNotReady, ErrorCode(err))
}

func TestRegisterDefinition(t *testing.T) {
	tests := []struct {
		name     string
		def      *Definition
		wantCode string
	}{
		{name: "valid definition", def: testDefinition("CreateUser")},
		{name: "nil definition", def: nil, wantCode: "NIL_DEFINITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.def)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(testDefinition("CreateUser")))

	err := r.Register(testDefinition("CreateUser"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryDuplicate, ErrorCode(err))
}

func TestInitialize(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		r := NewRegistry().MustRegister(testDefinition("B"), testDefinition("A"))
		require.NoError(t, r.Initialize())
		assert.Equal(t, []string{"B", "A"}, r.Names())

		def, err := r.Lookup("A")
		require.NoError(t, err)
		assert.Equal(t, "A", def.Name())
	})

	t.Run("already initialized", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Initialize())
		err := r.Initialize()
		assert.Equal(t, ErrCodeRegistryFrozen, ErrorCode(err))
	})

	t.Run("register after initialize", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Initialize())
		err := r.Register(testDefinition("Late"))
		assert.Equal(t, ErrCodeRegistryFrozen, ErrorCode(err))
	})
}

func TestLookupUnknownListsAvailable(t *testing.T) {
	r := NewRegistry().MustRegister(testDefinition("Zeta"), testDefinition("Alpha"))
	require.NoError(t, r.Initialize())

	_, err := r.Lookup("Missing")
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryUnknown, ErrorCode(err))

	var ge *apperrors.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, []string{"Alpha", "Zeta"}, ge.Metadata["available"])
}

func TestRegistryCall(t *testing.T) {
	r := NewRegistry().MustRegister(testDefinition("Echo"))
	require.NoError(t, r.Initialize())

	out, err := r.Call(context.Background(), "Echo", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.True(t, out.IsSuccess("done"))
	assert.Equal(t, []string{"name"}, out.Value().Keys())

	_, err = r.Call(context.Background(), "Nope", nil)
	assert.Equal(t, ErrCodeRegistryUnknown, ErrorCode(err))
}

func TestMustRegisterPanics(t *testing.T) {
	r := NewRegistry().MustRegister(testDefinition("Dup"))
	assert.Panics(t, func() { r.MustRegister(testDefinition("Dup")) })
}

func TestRegistryConcurrency(t *testing.T) {
	r := NewRegistry()
	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Register(testDefinition(fmt.Sprintf("proc-%02d", i))))
		}(i)
	}
	wg.Wait()
	require.NoError(t, r.Initialize())
	assert.Len(t, r.Names(), n)

	wg = sync.WaitGroup{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Call(context.Background(), fmt.Sprintf("proc-%02d", i), map[string]any{"i": i})
			assert.NoError(t, err)
			assert.True(t, out.IsSuccess("done"))
		}(i)
	}
	wg.Wait()
}
