package flat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/internal/fs"
	"github.com/hupe1980/gridstore/resource"
)

func openDataset(t *testing.T, dir string) (*gridstore.Dataset, *Store) {
	t.Helper()
	ctx := context.Background()

	store, err := New(dir, WithResourceController(resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})))
	require.NoError(t, err)
	ds, err := gridstore.Open(ctx, t.Name(), store)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ds.Close(ctx)
		_ = store.Close()
	})
	return ds, store
}

func TestStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ds, _ := openDataset(t, dir)

	_, err := ds.DefineDim(ctx, "y", 3)
	require.NoError(t, err)
	_, err = ds.DefineDim(ctx, "x", 4)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "v", []string{"y", "x"}, 2)
	require.NoError(t, err)

	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{3, 4}), data))

	raw, err := os.ReadFile(filepath.Join(dir, "var0.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	got, err := ds.Read(ctx, "v", gridstore.Slab([]int64{1, 1}, []int64{2, 2}).WithStride(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 11, 14, 15, 18, 19, 22, 23}, got)

	// A partial overwrite is visible to the next read.
	require.NoError(t, ds.Write(ctx, "v", gridstore.Slab([]int64{2, 3}, []int64{1, 1}), []byte{0xAA, 0xBB}))
	got, err = ds.Read(ctx, "v", gridstore.Slab([]int64{2, 2}, []int64{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []byte{20, 21, 0xAA, 0xBB}, got)
}

func TestStore_ShortFileReadsZero(t *testing.T) {
	ctx := context.Background()
	ds, _ := openDataset(t, t.TempDir())

	_, err := ds.DefineDim(ctx, "n", 6)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "v", []string{"n"}, 1)
	require.NoError(t, err)

	got, err := ds.Read(ctx, "v", gridstore.Whole([]int64{6}))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 6), got, "no file yet")

	require.NoError(t, ds.Write(ctx, "v", gridstore.Slab([]int64{1}, []int64{2}), []byte{7, 8}))
	got, err = ds.Read(ctx, "v", gridstore.Slab([]int64{0}, []int64{6}).WithStride(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 7, 8, 0, 0, 0}, got)
}

func TestStore_ReopenAndGrow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ds, store := openDataset(t, dir)
	_, err := ds.DefineDim(ctx, "time", gridstore.Unlimited)
	require.NoError(t, err)
	_, err = ds.DefineDim(ctx, "k", 2)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "series", []string{"time", "k"}, 1)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, "series", gridstore.Slab([]int64{0, 0}, []int64{2, 2}), []byte{1, 2, 3, 4}))
	require.NoError(t, ds.Close(ctx))
	require.NoError(t, store.Close())

	ds2, _ := openDataset(t, dir)
	v, err := ds2.Var(ctx, "series")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2}, v.Shape)

	require.NoError(t, ds2.Write(ctx, "series", gridstore.Slab([]int64{2, 0}, []int64{1, 2}), []byte{5, 6}))
	got, err := ds2.Read(ctx, "series", gridstore.Slab([]int64{1, 0}, []int64{2, 2}))
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5, 6}, got)
}

func TestStore_DropVar(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ds, _ := openDataset(t, dir)

	_, err := ds.DefineVar(ctx, "s", nil, 8)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, "s", gridstore.Hyperslab{}, []byte("12345678")))
	_, err = ds.Read(ctx, "s", gridstore.Hyperslab{})
	require.NoError(t, err)

	require.NoError(t, ds.DeleteVar(ctx, "s"))
	_, err = os.Stat(filepath.Join(dir, "var0.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir(), WithCodec(codec.JSON{}))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	v := gridstore.Var{ID: 0, Name: "v", Dims: []int{0}, ElemSize: 1, Shape: []int64{2}}
	_, err = store.Fetch(ctx, gridstore.FetchRequest{Var: v, Slab: gridstore.Whole(v.Shape)})
	assert.ErrorIs(t, err, ErrClosed)
	err = store.Write(ctx, gridstore.WriteRequest{Var: v, Slab: gridstore.Whole(v.Shape), Data: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrClosed)

	schema, err := store.LoadSchema(ctx)
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestStore_WriteFaults(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store, err := New(t.TempDir(), WithFileSystem(ffs))
	require.NoError(t, err)
	defer store.Close()

	ds, err := gridstore.Open(ctx, "faulty", store, gridstore.WithMinCacheBytes(1))
	require.NoError(t, err)
	defer ds.Close(ctx)

	_, err = ds.DefineDim(ctx, "n", 8)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "v", []string{"n"}, 1)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{8}), []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	_, err = ds.Read(ctx, "v", gridstore.Whole([]int64{8}))
	require.NoError(t, err)

	ffs.AddRule("var0.bin", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	err = ds.Write(ctx, "v", gridstore.Slab([]int64{0}, []int64{2}), []byte{9, 9})
	assert.ErrorIs(t, err, fs.ErrInjected)

	// The data reached the file before the sync failed; the cached copy
	// must not hide it.
	got, err := ds.Read(ctx, "v", gridstore.Whole([]int64{8}))
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 3, 4, 5, 6, 7, 8}, got)

	ffs.AddRule("var0.bin", fs.Fault{FailAfterBytes: -1, FailOnRemove: true})
	assert.NoError(t, ds.DeleteVar(ctx, "v"), "drop failures are logged, not returned")
}
