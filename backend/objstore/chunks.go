package objstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/odometer"
)

// layout maps element coordinates of one variable onto its chunk grid.
type layout struct {
	id       int
	shape    []int64
	chunk    []int64
	grid     []int64 // chunks per axis
	elemSize int64
}

func newLayout(v gridstore.Var, m *varMeta) layout {
	grid := make([]int64, len(v.Shape))
	for i, n := range v.Shape {
		grid[i] = (n + m.Chunk[i] - 1) / m.Chunk[i]
	}
	return layout{id: v.ID, shape: v.Shape, chunk: m.Chunk, grid: grid, elemSize: int64(m.ElemSize)}
}

// chunkBytes is the size of a full chunk; edge chunks are stored padded.
func (l layout) chunkBytes() int64 {
	n := l.elemSize
	for _, c := range l.chunk {
		n *= c
	}
	return n
}

// touched is a chunk a selection reads or writes.
type touched struct {
	coords []int64
	data   []byte
}

// span lists the chunks the selection touches, keyed by their linear index
// in the chunk grid.
func (l layout) span(slab gridstore.Hyperslab) (map[int64]*touched, error) {
	span, err := odometer.ChunkSpan(slab.Start, slab.Count, slab.Stride, l.chunk)
	if err != nil {
		return nil, err
	}

	lens := make([]int64, len(span))
	for i, s := range span {
		lens[i] = int64(len(s))
	}
	od, err := odometer.New(make([]int64, len(lens)), lens, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*touched)
	for idx := range od.All() {
		coords := make([]int64, len(idx))
		for i, k := range idx {
			coords[i] = span[i][k]
		}
		out[odometer.LinearOffset(coords, l.grid)] = &touched{coords: coords}
	}
	return out, nil
}

// walk calls fn for every piece of the selection that is contiguous both in
// the packed selection and inside one chunk. Offsets are in elements: off
// within the chunk, pos within the selection.
func (l layout) walk(slab gridstore.Hyperslab, fn func(chunk, off, pos, n int64)) error {
	runs, err := odometer.Runs(l.shape, slab.Start, slab.Count, slab.Stride)
	if err != nil {
		return err
	}

	rank := len(l.shape)
	idx := make([]int64, rank)
	cidx := make([]int64, rank)
	within := make([]int64, rank)

	for r := range runs {
		odometer.Unravel(r.Offset, l.shape, idx)
		pos, left := r.Pos, r.Len
		for left > 0 {
			for i := range rank {
				cidx[i] = idx[i] / l.chunk[i]
				within[i] = idx[i] % l.chunk[i]
			}
			n := left
			if rank > 0 {
				n = min(left, l.chunk[rank-1]-within[rank-1])
				idx[rank-1] += n
			}
			fn(odometer.LinearOffset(cidx, l.grid), odometer.LinearOffset(within, l.chunk), pos, n)
			pos += n
			left -= n
		}
	}
	return nil
}

func (l layout) cacheKey(coords []int64) cache.Key {
	return cache.Key(chunkName(l.id, coords))
}

func (l layout) extent(coords []int64) cache.Extent {
	e := cache.Extent{Start: make([]int64, len(coords)), Stop: make([]int64, len(coords))}
	for i, c := range coords {
		e.Start[i] = c * l.chunk[i]
		e.Stop[i] = e.Start[i] + l.chunk[i]
	}
	return e
}

// Fetch implements gridstore.Fetcher.
func (s *Store) Fetch(ctx context.Context, req gridstore.FetchRequest) ([]byte, error) {
	m, err := s.meta(ctx, req.Var)
	if err != nil {
		return nil, err
	}
	l := newLayout(req.Var, m)

	n, err := req.Slab.NumElements()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n*l.elemSize)
	if n == 0 {
		return out, nil
	}

	chunks, err := l.span(req.Slab)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, l, chunks, false); err != nil {
		return nil, err
	}

	es := l.elemSize
	err = l.walk(req.Slab, func(chunk, off, pos, n int64) {
		if data := chunks[chunk].data; data != nil {
			copy(out[pos*es:(pos+n)*es], data[off*es:])
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write implements gridstore.Writer by rewriting every touched chunk.
func (s *Store) Write(ctx context.Context, req gridstore.WriteRequest) error {
	m, err := s.meta(ctx, req.Var)
	if err != nil {
		return err
	}
	l := newLayout(req.Var, m)

	n, err := req.Slab.NumElements()
	if err != nil {
		return err
	}
	if int64(len(req.Data)) != n*l.elemSize {
		return fmt.Errorf("objstore: write of %d bytes, selection holds %d", len(req.Data), n*l.elemSize)
	}
	if n == 0 {
		return nil
	}

	chunks, err := l.span(req.Slab)
	if err != nil {
		return err
	}
	if err := s.load(ctx, l, chunks, true); err != nil {
		return err
	}

	es := l.elemSize
	err = l.walk(req.Slab, func(chunk, off, pos, n int64) {
		copy(chunks[chunk].data[off*es:], req.Data[pos*es:(pos+n)*es])
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rc.MaxConcurrentFetch())
	for _, t := range chunks {
		g.Go(func() error {
			frame, err := encodeChunk(t.data, s.compression)
			if err != nil {
				return err
			}
			return s.put(gctx, chunkName(l.id, t.coords), frame)
		})
	}
	err = g.Wait()

	// Written chunks replace their cached copies; on failure the store may
	// hold a mix, so drop them instead.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range chunks {
		key := l.cacheKey(t.coords)
		if err != nil || !s.chunks.Admit(int64(len(t.data))) {
			s.chunks.Evict(key)
			continue
		}
		if s.chunks.Insert(key, t.data, cache.Vars(l.id), l.extent(t.coords)) != nil {
			s.chunks.Evict(key)
		}
	}
	return err
}

// load fills the data of every touched chunk from the chunk cache or the
// blob store. Missing chunks stay nil unless zero is set, in which case
// they become zeroed buffers. Loaded data is private to the caller when
// zero is set, since it will be modified.
func (s *Store) load(ctx context.Context, l layout, chunks map[int64]*touched, zero bool) error {
	var misses []*touched

	s.mu.Lock()
	for _, t := range chunks {
		if data, ok := s.chunks.Lookup(l.cacheKey(t.coords)); ok {
			if zero {
				data = append([]byte(nil), data...)
			}
			t.data = data
			continue
		}
		misses = append(misses, t)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rc.MaxConcurrentFetch())
	for _, t := range misses {
		g.Go(func() error {
			if err := s.rc.AcquireFetch(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseFetch()

			data, err := s.readChunk(gctx, chunkName(l.id, t.coords), l.chunkBytes())
			if err != nil {
				return err
			}
			if data == nil && zero {
				data = make([]byte, l.chunkBytes())
			}
			t.data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if zero {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range misses {
		if t.data != nil && s.chunks.Admit(int64(len(t.data))) {
			// A refused insert only costs a later reload.
			_ = s.chunks.Insert(l.cacheKey(t.coords), t.data, cache.Vars(l.id), l.extent(t.coords))
		}
	}
	return nil
}

// readChunk returns the decoded chunk, or nil if it was never written.
func (s *Store) readChunk(ctx context.Context, name string, size int64) ([]byte, error) {
	b, err := s.blobs.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if err := s.rc.AcquireIO(ctx, int(b.Size())); err != nil {
		return nil, err
	}
	frame, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("objstore: read %s: %w", name, err)
	}

	data, err := decodeChunk(frame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", ErrCorruptChunk, name, len(data), size)
	}
	return data, nil
}
