package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/resource"
)

func seq(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func openDataset(t *testing.T, blobs blobstore.BlobStore, opts ...Option) (*gridstore.Dataset, *Store) {
	t.Helper()
	ctx := context.Background()

	store, err := New(ctx, blobs, opts...)
	require.NoError(t, err)
	ds, err := gridstore.Open(ctx, t.Name(), store, gridstore.WithMinCacheBytes(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close(ctx) })
	return ds, store
}

func defineGrid(t *testing.T, ds *gridstore.Dataset) {
	t.Helper()
	ctx := context.Background()

	_, err := ds.DefineDim(ctx, "y", 5)
	require.NoError(t, err)
	_, err = ds.DefineDim(ctx, "x", 7)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "v", []string{"y", "x"}, 1, gridstore.WithChunking(2, 3))
	require.NoError(t, err)
}

func TestStore_ChunkLayout(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	ds, _ := openDataset(t, blobs)
	defineGrid(t, ds)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Slab([]int64{0, 0}, []int64{2, 3}), seq(6)))

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{".gridstore", ".schema", "0/.meta", "0/0.0"}, names)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{5, 7}), seq(35)))
	names, err = blobs.List(ctx, "0/")
	require.NoError(t, err)
	// 3 x 3 chunk grid plus metadata.
	assert.Len(t, names, 10)
	assert.Contains(t, names, "0/2.2")
}

func TestStore_ReadBack(t *testing.T) {
	ctx := context.Background()
	ds, _ := openDataset(t, blobstore.NewMemoryStore())
	defineGrid(t, ds)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{5, 7}), seq(35)))

	tests := []struct {
		name string
		slab gridstore.Hyperslab
		want []byte
	}{
		{"whole", gridstore.Whole([]int64{5, 7}), seq(35)},
		{"crosses chunks", gridstore.Slab([]int64{1, 2}, []int64{2, 3}), []byte{9, 10, 11, 16, 17, 18}},
		{"strided", gridstore.Slab([]int64{0, 0}, []int64{3, 3}).WithStride(2, 3), []byte{0, 3, 6, 14, 17, 20, 28, 31, 34}},
		{"column", gridstore.Slab([]int64{0, 6}, []int64{5, 1}), []byte{6, 13, 20, 27, 34}},
		{"single", gridstore.Slab([]int64{4, 6}, []int64{1, 1}), []byte{34}},
		{"empty", gridstore.Slab([]int64{2, 2}, []int64{0, 3}), []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.Read(ctx, "v", tt.slab)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_PartialWriteKeepsNeighbours(t *testing.T) {
	ctx := context.Background()
	ds, _ := openDataset(t, blobstore.NewMemoryStore())
	defineGrid(t, ds)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{5, 7}), seq(35)))
	require.NoError(t, ds.Write(ctx, "v", gridstore.Slab([]int64{1, 1}, []int64{1, 3}).WithStride(1, 2), []byte{100, 101, 102}))

	got, err := ds.Read(ctx, "v", gridstore.Slab([]int64{1, 0}, []int64{1, 7}))
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 100, 9, 101, 11, 102, 13}, got)
}

func TestStore_MissingChunksReadZero(t *testing.T) {
	ctx := context.Background()
	ds, _ := openDataset(t, blobstore.NewMemoryStore())
	defineGrid(t, ds)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Slab([]int64{4, 6}, []int64{1, 1}), []byte{9}))

	got, err := ds.Read(ctx, "v", gridstore.Slab([]int64{3, 4}, []int64{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 9}, got)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	ds, _ := openDataset(t, blobs, WithCompression(CompressionZSTD))
	defineGrid(t, ds)
	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{5, 7}), seq(35)))
	require.NoError(t, ds.RenameVar(ctx, "v", "renamed"))
	require.NoError(t, ds.Close(ctx))

	store, err := New(ctx, blobs)
	require.NoError(t, err)
	ds2, err := gridstore.Open(ctx, "reopened", store)
	require.NoError(t, err)
	defer ds2.Close(ctx)

	v, err := ds2.Var(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, v.Shape)
	assert.Equal(t, []int64{2, 3}, v.Chunk)

	got, err := ds2.Read(ctx, "renamed", gridstore.Slab([]int64{3, 0}, []int64{1, 7}))
	require.NoError(t, err)
	assert.Equal(t, []byte{21, 22, 23, 24, 25, 26, 27}, got)
}

func TestStore_DropVar(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	ds, _ := openDataset(t, blobs)
	defineGrid(t, ds)

	require.NoError(t, ds.Write(ctx, "v", gridstore.Whole([]int64{5, 7}), seq(35)))
	require.NoError(t, ds.DeleteVar(ctx, "v"))

	names, err := blobs.List(ctx, "0/")
	require.NoError(t, err)
	assert.Empty(t, names)

	id, err := ds.DefineVar(ctx, "w", []string{"y", "x"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	got, err := ds.Read(ctx, "w", gridstore.Slab([]int64{0, 0}, []int64{1, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, got)
}

func TestStore_UnlimitedAxis(t *testing.T) {
	ctx := context.Background()
	ds, store := openDataset(t, blobstore.NewMemoryStore())

	_, err := ds.DefineDim(ctx, "time", gridstore.Unlimited)
	require.NoError(t, err)
	_, err = ds.DefineDim(ctx, "station", 3)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "obs", []string{"time", "station"}, 2)
	require.NoError(t, err)

	v, err := ds.Var(ctx, "obs")
	require.NoError(t, err)
	m, err := store.meta(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, m.Chunk)

	for rec := range 3 {
		row := make([]byte, 6)
		for i := range row {
			row[i] = byte(10*rec + i)
		}
		require.NoError(t, ds.Write(ctx, "obs", gridstore.Slab([]int64{int64(rec), 0}, []int64{1, 3}), row))
	}

	got, err := ds.Read(ctx, "obs", gridstore.Slab([]int64{0, 1}, []int64{3, 1}))
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 12, 13, 22, 23}, got)
}

func TestStore_UnlimitedAxisDefinedAfterGrowth(t *testing.T) {
	ctx := context.Background()
	ds, store := openDataset(t, blobstore.NewMemoryStore())

	_, err := ds.DefineDim(ctx, "time", gridstore.Unlimited)
	require.NoError(t, err)
	_, err = ds.DefineVar(ctx, "first", []string{"time"}, 1)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, "first", gridstore.Slab([]int64{0}, []int64{100}), make([]byte, 100)))

	// time already has 100 records when the second variable appears.
	_, err = ds.DefineVar(ctx, "second", []string{"time"}, 1)
	require.NoError(t, err)
	v, err := ds.Var(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, v.Shape)
	assert.True(t, v.Unlimited)

	m, err := store.meta(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, m.Chunk)

	require.NoError(t, ds.Write(ctx, "second", gridstore.Slab([]int64{100}, []int64{1}), []byte{7}))
	got, err := ds.Read(ctx, "second", gridstore.Slab([]int64{99}, []int64{2}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 7}, got)
}

func TestStore_Scalar(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	ds, _ := openDataset(t, blobs)

	_, err := ds.DefineVar(ctx, "answer", nil, 4)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, "answer", gridstore.Hyperslab{}, []byte{42, 0, 0, 0}))

	got, err := ds.Read(ctx, "answer", gridstore.Hyperslab{})
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, got)

	_, err = blobstore.Get(ctx, blobs, "0/0")
	assert.NoError(t, err)
}

func TestStore_DirectFetch(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MaxConcurrentFetch: 2})
	store, err := New(ctx, blobstore.NewMemoryStore(),
		WithResourceController(rc),
		WithChunkCache(cache.Config{MaxNodes: 4}),
		WithCompression(CompressionLZ4),
	)
	require.NoError(t, err)

	v := gridstore.Var{ID: 3, Name: "v", Dims: []int{0}, ElemSize: 1, Chunk: []int64{4}, Shape: []int64{10}}
	require.NoError(t, store.Write(ctx, gridstore.WriteRequest{Var: v, Slab: gridstore.Whole(v.Shape), Data: seq(10)}))
	assert.Equal(t, 3, store.chunks.Len())

	got, err := store.Fetch(ctx, gridstore.FetchRequest{Var: v, Slab: gridstore.Slab([]int64{3}, []int64{6})})
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5, 6, 7, 8}, got)
	assert.Equal(t, int64(3), store.chunks.Stats().Hits)

	err = store.Write(ctx, gridstore.WriteRequest{Var: v, Slab: gridstore.Whole(v.Shape), Data: seq(3)})
	assert.Error(t, err)
}

func TestStore_CorruptChunk(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store, err := New(ctx, blobs, WithChunkCache(cache.Config{}))
	require.NoError(t, err)

	v := gridstore.Var{ID: 0, Name: "v", Dims: []int{0}, ElemSize: 1, Chunk: []int64{4}, Shape: []int64{4}}
	require.NoError(t, store.Write(ctx, gridstore.WriteRequest{Var: v, Slab: gridstore.Whole(v.Shape), Data: seq(4)}))
	require.NoError(t, blobs.Put(ctx, "0/0", []byte("garbage frame")))

	_, err = store.Fetch(ctx, gridstore.FetchRequest{Var: v, Slab: gridstore.Whole(v.Shape)})
	assert.ErrorIs(t, err, ErrCorruptChunk)
}

func TestStore_Manifest(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	_, err := New(ctx, blobs, WithCodec(codec.JSON{}))
	require.NoError(t, err)

	// The recorded codec wins over the option.
	store, err := New(ctx, blobs, WithCodec(codec.GoJSON{}))
	require.NoError(t, err)
	assert.Equal(t, "json", store.codec.Name())

	require.NoError(t, blobs.Put(ctx, manifestName, []byte(`{"version":99}`)))
	_, err = New(ctx, blobs)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = New(ctx, blobstore.NewMemoryStore(), WithDefaultChunkLen(0))
	assert.Error(t, err)
	_, err = New(ctx, blobstore.NewMemoryStore(), WithCompression(Compression(5)))
	assert.Error(t, err)
}

func TestLayoutWalk(t *testing.T) {
	v := gridstore.Var{Shape: []int64{4, 5}}
	l := newLayout(v, &varMeta{Chunk: []int64{2, 2}, ElemSize: 1})
	assert.Equal(t, []int64{2, 3}, l.grid)

	type piece struct{ chunk, off, pos, n int64 }
	var got []piece
	err := l.walk(gridstore.Slab([]int64{1, 1}, []int64{1, 4}), func(chunk, off, pos, n int64) {
		got = append(got, piece{chunk, off, pos, n})
	})
	require.NoError(t, err)
	assert.Equal(t, []piece{{0, 3, 0, 1}, {1, 2, 1, 2}, {2, 2, 3, 1}}, got)

	chunks, err := l.span(gridstore.Slab([]int64{1, 1}, []int64{2, 4}))
	require.NoError(t, err)
	assert.Len(t, chunks, 6)
	assert.Equal(t, []int64{1, 2}, chunks[5].coords)
}
