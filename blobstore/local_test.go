package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstore/resource"
)

func testStoreLifecycle(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	data := []byte("hello world, this is a chunk")
	require.NoError(t, store.Put(ctx, "temp/0.1", data))
	require.NoError(t, store.Put(ctx, "temp/.meta", []byte("{}")))
	require.NoError(t, store.Put(ctx, "wind/0.0", []byte("w")))

	blob, err := store.Open(ctx, "temp/0.1")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	n, err = blob.ReadAt(ctx, make([]byte, 10), int64(len(data))-3)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)

	got, err := Get(ctx, store, "temp/0.1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "temp/")
	require.NoError(t, err)
	assert.Equal(t, []string{"temp/.meta", "temp/0.1"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Replace
	require.NoError(t, store.Put(ctx, "wind/0.0", []byte("gust")))
	got, err = Get(ctx, store, "wind/0.0")
	require.NoError(t, err)
	assert.Equal(t, "gust", string(got))

	require.NoError(t, store.Delete(ctx, "wind/0.0"))
	require.NoError(t, store.Delete(ctx, "wind/0.0"), "deleting a missing blob is not an error")

	_, err = store.Open(ctx, "wind/0.0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestLocalStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewLocalStore(t.TempDir()))
}

func TestLocalStore_RateLimited(t *testing.T) {
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	dir := t.TempDir()
	store := NewLocalStore(dir, WithResourceController(rc))

	require.NoError(t, store.Put(context.Background(), "a/b", []byte("payload")))

	raw, err := os.ReadFile(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(raw))
	assert.Equal(t, dir, store.Root())
}

func TestLocalStore_InvalidNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", "../escape", "/abs"} {
		assert.ErrorIs(t, store.Put(ctx, name, []byte("x")), ErrInvalidName, name)
		_, err := store.Open(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "empty", nil))
	got, err := Get(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'X'

	got, err := Get(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, store.Len())
	assert.ErrorIs(t, store.Put(ctx, "", data), ErrInvalidName)
}
