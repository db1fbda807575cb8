package gridstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OpenClose(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	a, err := reg.Open(ctx, "a", newMemBackend())
	require.NoError(t, err)
	_, err = reg.Open(ctx, "b", newMemBackend())
	require.NoError(t, err)

	_, err = reg.Open(ctx, "a", newMemBackend())
	assert.ErrorIs(t, err, ErrNameInUse)

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	require.NoError(t, a.Close(ctx))
	_, ok = reg.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())

	// The name is free again.
	_, err = reg.Open(ctx, "a", newMemBackend())
	require.NoError(t, err)

	require.NoError(t, reg.CloseAll(ctx))
	assert.Zero(t, reg.Len())
}

func TestRegistry_FailedOpenReleasesName(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	_, err := reg.Open(ctx, "a", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = reg.Open(ctx, "a", newMemBackend())
	assert.NoError(t, err)
}

func TestRegistry_Isolated(t *testing.T) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := NewRegistry()
			ds, err := reg.Open(ctx, "shared-name", newMemBackend())
			if !assert.NoError(t, err) {
				return
			}
			_, err = ds.DefineDim(ctx, "x", 4)
			assert.NoError(t, err)
			assert.NoError(t, reg.CloseAll(ctx))
		}()
	}
	wg.Wait()
}
