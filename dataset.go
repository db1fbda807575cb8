package gridstore

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/internal/lock"
	"github.com/hupe1980/gridstore/internal/nameindex"
	"github.com/hupe1980/gridstore/odometer"
)

// Where the bytes of a read came from.
const (
	sourceEmpty    = "empty"
	sourcePrefetch = "prefetch"
	sourceCache    = "cache"
	sourceFetch    = "fetch"
)

// CacheStats is a snapshot of a dataset's chunk cache.
type CacheStats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Nodes         int
	Bytes         int64
	PrefetchBytes int64
}

// Dataset is an open dataset handle: a schema of named dimensions and
// variables, a backend that materializes selections, and a chunk cache that
// memoizes them.
//
// Every public method holds the handle's reentrant lock for its whole
// duration, including backend calls. Calls made with the context a Fetcher
// receives re-enter the lock instead of deadlocking. Different handles
// share nothing except an optional resource.Controller.
type Dataset struct {
	name     string
	fetcher  Fetcher
	writer   Writer  // nil if read-only
	catalog  Catalog // nil if the schema is not persisted
	registry *Registry

	opts   options
	logger *Logger
	mu     *lock.Reentrant
	cache  *cache.ChunkCache

	dimIndex *nameindex.Index
	varIndex *nameindex.Index
	dims     []*Dim
	vars     []*Var // nil once deleted
	closed   bool
}

// Open opens a dataset on fetcher. If fetcher implements Catalog the stored
// schema is loaded; if it implements Writer the dataset is writable.
func Open(ctx context.Context, name string, fetcher Fetcher, optFns ...Option) (*Dataset, error) {
	return open(ctx, name, fetcher, nil, optFns)
}

func open(ctx context.Context, name string, fetcher Fetcher, reg *Registry, optFns []Option) (*Dataset, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: nil fetcher", ErrInvalidArgument)
	}
	o := applyOptions(optFns)

	d := &Dataset{
		name:     name,
		fetcher:  fetcher,
		registry: reg,
		opts:     o,
		logger:   o.logger.WithDataset(name),
		mu:       lock.New(),
		cache:    cache.New(o.cache, o.rc),
		dimIndex: nameindex.New(o.nameIndexHint),
		varIndex: nameindex.New(o.nameIndexHint),
	}
	d.writer, _ = fetcher.(Writer)
	d.catalog, _ = fetcher.(Catalog)

	d.cache.OnEvict(func(e *cache.Entry) {
		d.opts.metricsCollector.RecordEviction(e.Size())
		d.logger.LogEviction(context.Background(), string(e.Key), e.Size())
	})

	if d.catalog != nil {
		s, err := d.catalog.LoadSchema(ctx)
		if err == nil && s != nil {
			err = d.restore(s)
		}
		if err != nil {
			err = translateError(err)
			d.logger.LogOpen(ctx, 0, 0, err)
			return nil, err
		}
	}

	if o.prefetchOnOpen {
		if err := d.PrefetchSmall(ctx); err != nil {
			d.logger.LogOpen(ctx, 0, 0, err)
			return nil, err
		}
	}

	d.logger.LogOpen(ctx, len(d.dims), d.varIndex.Len(), nil)
	return d, nil
}

// restore rebuilds the name indexes from a stored schema. Ids are kept.
func (d *Dataset) restore(s *Schema) error {
	for _, dim := range s.Dims {
		if dim.ID < 0 || dim.ID > math.MaxInt32 || !validName(dim.Name) || dim.Len < 0 {
			return fmt.Errorf("%w: stored dimension %d %q", ErrInvalidArgument, dim.ID, dim.Name)
		}
		if _, ok := d.lookupDim(dim.Name); ok {
			return fmt.Errorf("%w: stored dimension %q", ErrNameInUse, dim.Name)
		}
		for len(d.dims) <= dim.ID {
			d.dims = append(d.dims, nil)
		}
		d.dims[dim.ID] = &dim
		d.dimIndex.Insert(dim.Name, dim.ID)
	}

	for _, v := range s.Vars {
		if v.ID < 0 || v.ID > math.MaxInt32 || !validName(v.Name) {
			return fmt.Errorf("%w: stored variable %d %q", ErrInvalidArgument, v.ID, v.Name)
		}
		if _, ok := d.lookupVar(v.Name); ok {
			return fmt.Errorf("%w: stored variable %q", ErrNameInUse, v.Name)
		}
		for i, id := range v.Dims {
			if id < 0 || id >= len(d.dims) || d.dims[id] == nil {
				return fmt.Errorf("%w: stored variable %q: unknown dimension %d", ErrInvalidArgument, v.Name, id)
			}
			if i > 0 && d.dims[id].Unlimited {
				return fmt.Errorf("%w: stored variable %q: unlimited dimension on axis %d", ErrInvalidArgument, v.Name, i)
			}
		}
		for len(d.vars) <= v.ID {
			d.vars = append(d.vars, nil)
		}
		v.DimNames, v.Shape = nil, nil
		d.vars[v.ID] = &v
		d.varIndex.Insert(v.Name, v.ID)
	}
	if s.NextVar > math.MaxInt32 {
		return fmt.Errorf("%w: stored next variable id %d", ErrInvalidArgument, s.NextVar)
	}
	for len(d.vars) < s.NextVar {
		d.vars = append(d.vars, nil)
	}
	return nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string {
	return d.name
}

// ReadOnly reports whether Write is unavailable.
func (d *Dataset) ReadOnly() bool {
	return d.writer == nil
}

func (d *Dataset) enter(ctx context.Context) (context.Context, func(), error) {
	ctx, unlock, err := d.mu.Lock(ctx)
	if err != nil {
		return ctx, unlock, err
	}
	if d.closed {
		unlock()
		return ctx, func() {}, ErrClosed
	}
	return ctx, unlock, nil
}

func validName(name string) bool {
	return name != "" && utf8.ValidString(name)
}

// The name indexes compare hashes only; the stored name settles collisions.
func (d *Dataset) lookupDim(name string) (*Dim, bool) {
	id, ok := d.dimIndex.Get(name)
	if !ok || id >= len(d.dims) || d.dims[id] == nil || d.dims[id].Name != name {
		return nil, false
	}
	return d.dims[id], true
}

func (d *Dataset) lookupVar(name string) (*Var, bool) {
	id, ok := d.varIndex.Get(name)
	if !ok || id >= len(d.vars) || d.vars[id] == nil || d.vars[id].Name != name {
		return nil, false
	}
	return d.vars[id], true
}

// A hash collision with another name also counts as in use.
func (d *Dataset) dimInUse(name string) bool {
	_, ok := d.dimIndex.Get(name)
	return ok
}

func (d *Dataset) varInUse(name string) bool {
	_, ok := d.varIndex.Get(name)
	return ok
}

// snapshot returns a copy of v with current shape and dimension names.
func (d *Dataset) snapshot(v *Var) Var {
	out := *v
	out.Dims = append([]int(nil), v.Dims...)
	out.Chunk = append([]int64(nil), v.Chunk...)
	out.DimNames = make([]string, len(v.Dims))
	out.Shape = make([]int64, len(v.Dims))
	for i, id := range v.Dims {
		out.DimNames[i] = d.dims[id].Name
		out.Shape[i] = d.dims[id].Len
	}
	out.Unlimited = len(v.Dims) > 0 && d.dims[v.Dims[0]].Unlimited
	return out
}

func (d *Dataset) schema() *Schema {
	s := &Schema{}
	for _, dim := range d.dims {
		if dim != nil {
			s.Dims = append(s.Dims, *dim)
		}
	}
	for _, v := range d.vars {
		if v != nil {
			s.Vars = append(s.Vars, d.snapshot(v))
		}
	}
	s.NextVar = len(d.vars)
	return s
}

// persist saves the schema after a mutation, running undo if that fails
// so the handle matches what is stored.
func (d *Dataset) persist(ctx context.Context, undo func()) error {
	d.cache.ClearPrefetch()
	if d.catalog == nil {
		return nil
	}
	if err := d.catalog.SaveSchema(ctx, d.schema()); err != nil {
		undo()
		return translateError(err)
	}
	return nil
}

// DefineDim defines a dimension and returns its id. A length of Unlimited
// defines a growable dimension with current length zero.
func (d *Dataset) DefineDim(ctx context.Context, name string, length int64) (int, error) {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return -1, err
	}
	defer unlock()

	if !validName(name) {
		return -1, fmt.Errorf("%w: dimension name %q", ErrInvalidArgument, name)
	}
	if length < 0 && length != Unlimited {
		return -1, fmt.Errorf("%w: dimension %q: length %d", ErrInvalidArgument, name, length)
	}
	if d.dimInUse(name) {
		return -1, fmt.Errorf("%w: dimension %q", ErrNameInUse, name)
	}

	dim := &Dim{ID: len(d.dims), Name: name, Len: length}
	if length == Unlimited {
		dim.Len, dim.Unlimited = 0, true
	}
	d.dims = append(d.dims, dim)
	d.dimIndex.Insert(name, dim.ID)

	err = d.persist(ctx, func() {
		d.dimIndex.Remove(name)
		d.dims = d.dims[:dim.ID]
	})
	if err != nil {
		return -1, err
	}
	return dim.ID, nil
}

// VarOption configures DefineVar.
type VarOption func(*Var)

// WithChunking sets the chunk shape a chunked backend stores the variable
// with. Backends without chunks ignore it.
func WithChunking(chunk ...int64) VarOption {
	return func(v *Var) {
		v.Chunk = chunk
	}
}

// DefineVar defines a variable over the named dimensions and returns its
// id. elemSize is the byte size of one element. Only axis 0 may use an
// unlimited dimension.
func (d *Dataset) DefineVar(ctx context.Context, name string, dimNames []string, elemSize int, optFns ...VarOption) (int, error) {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return -1, err
	}
	defer unlock()

	if !validName(name) {
		return -1, fmt.Errorf("%w: variable name %q", ErrInvalidArgument, name)
	}
	if elemSize <= 0 {
		return -1, fmt.Errorf("%w: variable %q: element size %d", ErrInvalidArgument, name, elemSize)
	}
	if len(dimNames) > odometer.MaxRank {
		return -1, fmt.Errorf("%w: variable %q: rank %d exceeds %d", ErrInvalidArgument, name, len(dimNames), odometer.MaxRank)
	}
	if d.varInUse(name) {
		return -1, fmt.Errorf("%w: variable %q", ErrNameInUse, name)
	}

	v := &Var{ID: len(d.vars), Name: name, Dims: make([]int, len(dimNames)), ElemSize: elemSize}
	for i, dn := range dimNames {
		dim, ok := d.lookupDim(dn)
		if !ok {
			return -1, fmt.Errorf("%w: dimension %q", ErrNotFound, dn)
		}
		if dim.Unlimited && i > 0 {
			return -1, fmt.Errorf("%w: variable %q: unlimited dimension %q must be axis 0", ErrInvalidArgument, name, dn)
		}
		v.Dims[i] = dim.ID
	}
	for _, fn := range optFns {
		fn(v)
	}
	if v.Chunk != nil {
		if len(v.Chunk) != len(v.Dims) {
			return -1, fmt.Errorf("%w: variable %q: chunk rank %d", ErrInvalidArgument, name, len(v.Chunk))
		}
		for i, c := range v.Chunk {
			if c <= 0 {
				return -1, fmt.Errorf("%w: variable %q: chunk axis %d length %d", ErrInvalidArgument, name, i, c)
			}
		}
		v.Chunk = append([]int64(nil), v.Chunk...)
	}

	d.vars = append(d.vars, v)
	d.varIndex.Insert(name, v.ID)

	err = d.persist(ctx, func() {
		d.varIndex.Remove(name)
		d.vars = d.vars[:v.ID]
	})
	if err != nil {
		return -1, err
	}
	return v.ID, nil
}

// RenameDim gives a dimension a new name. The id is unchanged.
func (d *Dataset) RenameDim(ctx context.Context, oldName, newName string) error {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	dim, ok := d.lookupDim(oldName)
	if !ok {
		return fmt.Errorf("%w: dimension %q", ErrNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if !validName(newName) {
		return fmt.Errorf("%w: dimension name %q", ErrInvalidArgument, newName)
	}
	if d.dimInUse(newName) {
		return fmt.Errorf("%w: dimension %q", ErrNameInUse, newName)
	}

	d.dimIndex.Remove(oldName)
	d.dimIndex.Insert(newName, dim.ID)
	dim.Name = newName

	return d.persist(ctx, func() {
		d.dimIndex.Remove(newName)
		d.dimIndex.Insert(oldName, dim.ID)
		dim.Name = oldName
	})
}

// RenameVar gives a variable a new name. The id is unchanged, so cached
// fragments stay valid.
func (d *Dataset) RenameVar(ctx context.Context, oldName, newName string) error {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	v, ok := d.lookupVar(oldName)
	if !ok {
		return fmt.Errorf("%w: variable %q", ErrNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if !validName(newName) {
		return fmt.Errorf("%w: variable name %q", ErrInvalidArgument, newName)
	}
	if d.varInUse(newName) {
		return fmt.Errorf("%w: variable %q", ErrNameInUse, newName)
	}

	d.varIndex.Remove(oldName)
	d.varIndex.Insert(newName, v.ID)
	v.Name = newName

	return d.persist(ctx, func() {
		d.varIndex.Remove(newName)
		d.varIndex.Insert(oldName, v.ID)
		v.Name = oldName
	})
}

// DeleteVar removes a variable, its cached fragments and, when the backend
// is a Catalog, its stored data. Its id is not reused.
func (d *Dataset) DeleteVar(ctx context.Context, name string) error {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	v, ok := d.lookupVar(name)
	if !ok {
		return fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	info := d.snapshot(v)

	d.varIndex.Remove(name)
	d.vars[v.ID] = nil
	err = d.persist(ctx, func() {
		d.vars[v.ID] = v
		d.varIndex.Insert(name, v.ID)
	})
	if err != nil {
		return err
	}

	d.cache.Invalidate(func(e *cache.Entry) bool { return e.Covers(v.ID) })

	if d.catalog != nil {
		if err := d.catalog.DropVar(ctx, info); err != nil {
			// The schema no longer names the variable; leftover data is unreachable.
			d.logger.WarnContext(ctx, "drop variable data failed", "var", name, "error", err)
		}
	}
	return nil
}

// SetDimLen sets the current length of an unlimited dimension. Lengths
// only grow; positions past the written data read as zero.
func (d *Dataset) SetDimLen(ctx context.Context, name string, length int64) error {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	dim, ok := d.lookupDim(name)
	if !ok {
		return fmt.Errorf("%w: dimension %q", ErrNotFound, name)
	}
	if !dim.Unlimited {
		return fmt.Errorf("%w: dimension %q is not unlimited", ErrInvalidArgument, name)
	}
	if length < dim.Len {
		return fmt.Errorf("%w: dimension %q: cannot shrink from %d to %d", ErrInvalidArgument, name, dim.Len, length)
	}
	if length == dim.Len {
		return nil
	}

	old := dim.Len
	dim.Len = length
	return d.persist(ctx, func() { dim.Len = old })
}

// Dim returns a dimension by name.
func (d *Dataset) Dim(ctx context.Context, name string) (Dim, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return Dim{}, err
	}
	defer unlock()

	dim, ok := d.lookupDim(name)
	if !ok {
		return Dim{}, fmt.Errorf("%w: dimension %q", ErrNotFound, name)
	}
	return *dim, nil
}

// DimID resolves a dimension name to its id.
func (d *Dataset) DimID(ctx context.Context, name string) (int, error) {
	dim, err := d.Dim(ctx, name)
	if err != nil {
		return -1, err
	}
	return dim.ID, nil
}

// VarID resolves a variable name to its id.
func (d *Dataset) VarID(ctx context.Context, name string) (int, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return -1, err
	}
	defer unlock()

	v, ok := d.lookupVar(name)
	if !ok {
		return -1, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return v.ID, nil
}

// Dims returns all dimensions in id order.
func (d *Dataset) Dims(ctx context.Context) ([]Dim, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return d.schema().Dims, nil
}

// Var returns a variable by name.
func (d *Dataset) Var(ctx context.Context, name string) (Var, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return Var{}, err
	}
	defer unlock()

	v, ok := d.lookupVar(name)
	if !ok {
		return Var{}, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return d.snapshot(v), nil
}

// Vars returns all variables in id order.
func (d *Dataset) Vars(ctx context.Context) ([]Var, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return d.schema().Vars, nil
}

// checkSlab normalizes slab and checks it against the current shape of v.
// With grow set, axis 0 of a variable on an unlimited dimension may extend
// past its current length.
func (d *Dataset) checkSlab(v Var, slab Hyperslab, grow bool) (Hyperslab, error) {
	if slab.Rank() != v.Rank() {
		return slab, &ErrRankMismatch{Var: v.Name, Expected: v.Rank(), Actual: slab.Rank()}
	}
	slab, err := slab.normalize()
	if err != nil {
		return slab, err
	}
	for i := range v.Shape {
		if grow && i == 0 && d.dims[v.Dims[0]].Unlimited {
			continue
		}
		if slab.End(i) > v.Shape[i] {
			return slab, &ErrOutOfBounds{Var: v.Name, Axis: i, Length: v.Shape[i], Last: slab.Last(i)}
		}
	}
	return slab, nil
}

func byteSize(slab Hyperslab, elemSize int) (int, error) {
	n, err := slab.NumElements()
	if err != nil {
		return 0, translateError(err)
	}
	if n > int64(math.MaxInt/elemSize) {
		return 0, fmt.Errorf("%w: selection of %d elements is too large", ErrInvalidArgument, n)
	}
	return int(n) * elemSize, nil
}

// Read returns the elements of variable name selected by slab, packed in
// row-major selection order. The bytes come from the prefetch slot when it
// covers the variable, else from the chunk cache, else from one backend
// fetch whose result is cached when the cache admits it. The returned slice
// belongs to the caller.
func (d *Dataset) Read(ctx context.Context, name string, slab Hyperslab) ([]byte, error) {
	start := time.Now()
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, source, err := d.read(ctx, name, &slab)
	d.opts.metricsCollector.RecordRead(len(data), source == sourcePrefetch || source == sourceCache, time.Since(start), err)
	d.logger.LogRead(ctx, name, slab, len(data), source, err)
	return data, err
}

func (d *Dataset) read(ctx context.Context, name string, slabp *Hyperslab) ([]byte, string, error) {
	v, ok := d.lookupVar(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	info := d.snapshot(v)

	slab, err := d.checkSlab(info, *slabp, false)
	if err != nil {
		return nil, "", err
	}
	*slabp = slab

	size, err := byteSize(slab, info.ElemSize)
	if err != nil {
		return nil, "", err
	}
	if size == 0 {
		return []byte{}, sourceEmpty, nil
	}

	if e, ok := d.cache.Prefetch(); ok && e.Covers(v.ID) {
		out, err := d.fromPrefetch(e, info, slab, size)
		return out, sourcePrefetch, err
	}

	key := slab.key(v.ID)
	if b, ok := d.cache.Lookup(key); ok {
		return bytes.Clone(b), sourceCache, nil
	}

	data, err := d.fetch(ctx, FetchRequest{Var: info, Slab: slab})
	if err == nil && len(data) != size {
		err = fmt.Errorf("gridstore: backend returned %d bytes for variable %q, want %d", len(data), name, size)
	}
	if err != nil {
		d.logger.LogFetch(ctx, name, 0, false, err)
		return nil, sourceFetch, err
	}

	cached := false
	if d.cache.Admit(int64(size)) {
		if err := d.cache.Insert(key, data, cache.Vars(v.ID), slab.extent()); err != nil {
			// The read still succeeds; the fragment just is not memoized.
			d.logger.LogCacheBypass(ctx, name, size, translateError(err))
		} else {
			cached = true
			data = bytes.Clone(data)
		}
	}
	d.logger.LogFetch(ctx, name, size, cached, nil)
	return data, sourceFetch, nil
}

func (d *Dataset) fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	start := time.Now()
	data, err := d.fetcher.Fetch(ctx, req)
	d.opts.metricsCollector.RecordFetch(len(data), time.Since(start), err)
	return data, translateError(err)
}

// The prefetch buffer holds whole variables back to back in ascending id
// order. Every schema change and write clears it, so current shapes give
// the layout.
func (d *Dataset) fromPrefetch(e *cache.Entry, v Var, slab Hyperslab, size int) ([]byte, error) {
	var base int64
	it := e.Vars.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if id == v.ID {
			break
		}
		n, err := odometer.NumElements(d.snapshot(d.vars[id]).Shape)
		if err != nil {
			return nil, translateError(err)
		}
		base += n * int64(d.vars[id].ElemSize)
	}

	n, err := odometer.NumElements(v.Shape)
	if err != nil {
		return nil, translateError(err)
	}
	end := base + n*int64(v.ElemSize)
	if end > int64(len(e.Data)) {
		return nil, fmt.Errorf("gridstore: prefetch buffer too short for variable %q", v.Name)
	}

	out := make([]byte, size)
	if err := odometer.Gather(out, e.Data[base:end], v.Shape, slab.Start, slab.Count, slab.Stride, v.ElemSize); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// Write stores data, the packed elements of slab, into variable name.
// A write may extend axis 0 of a variable on an unlimited dimension. The
// write invalidates every cached fragment of the variable whose extent
// intersects the written region, and clears the prefetch slot.
func (d *Dataset) Write(ctx context.Context, name string, slab Hyperslab, data []byte) error {
	start := time.Now()
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	invalidated, err := d.write(ctx, name, &slab, data)
	d.opts.metricsCollector.RecordWrite(len(data), time.Since(start), err)
	d.logger.LogWrite(ctx, name, slab, invalidated, err)
	return err
}

func (d *Dataset) write(ctx context.Context, name string, slabp *Hyperslab, data []byte) (int, error) {
	if d.writer == nil {
		return 0, ErrReadOnly
	}
	v, ok := d.lookupVar(name)
	if !ok {
		return 0, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	info := d.snapshot(v)

	slab, err := d.checkSlab(info, *slabp, true)
	if err != nil {
		return 0, err
	}
	*slabp = slab

	size, err := byteSize(slab, info.ElemSize)
	if err != nil {
		return 0, err
	}
	if len(data) != size {
		return 0, fmt.Errorf("%w: variable %q: got %d bytes for %d", ErrInvalidArgument, name, len(data), size)
	}
	if size == 0 {
		return 0, nil
	}

	var grown *Dim
	if info.Rank() > 0 && slab.End(0) > info.Shape[0] {
		grown = d.dims[v.Dims[0]]
		info.Shape[0] = slab.End(0)
	}

	werr := d.writer.Write(ctx, WriteRequest{Var: info, Slab: slab, Data: data})

	// A failed write may have stored part of the data.
	ext := slab.extent()
	invalidated := d.cache.Invalidate(func(e *cache.Entry) bool {
		return e.Covers(v.ID) && e.Extent.Intersects(ext)
	})
	d.cache.ClearPrefetch()
	if werr != nil {
		return invalidated, translateError(werr)
	}

	if grown != nil {
		old := grown.Len
		grown.Len = info.Shape[0]
		if err := d.persist(ctx, func() { grown.Len = old }); err != nil {
			return invalidated, err
		}
	}
	return invalidated, nil
}

// Prefetch loads the named variables whole into the prefetch slot,
// replacing its previous content. With no names every variable is loaded.
// Reads of a covered variable are then served without fetching until the
// next schema change or write.
func (d *Dataset) Prefetch(ctx context.Context, names ...string) error {
	start := time.Now()
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	n, size, err := d.prefetch(ctx, names)
	d.opts.metricsCollector.RecordPrefetch(size, time.Since(start), err)
	d.logger.LogPrefetch(ctx, n, size, err)
	return err
}

func (d *Dataset) prefetch(ctx context.Context, names []string) (int, int64, error) {
	var ids []int
	if len(names) == 0 {
		for _, v := range d.vars {
			if v != nil {
				ids = append(ids, v.ID)
			}
		}
	}
	for _, name := range names {
		v, ok := d.lookupVar(name)
		if !ok {
			return 0, 0, fmt.Errorf("%w: variable %q", ErrNotFound, name)
		}
		ids = append(ids, v.ID)
	}

	vars := cache.Vars(ids...)
	var buf []byte
	it := vars.Iterator()
	for it.HasNext() {
		info := d.snapshot(d.vars[int(it.Next())])
		whole := Whole(info.Shape)
		size, err := byteSize(whole, info.ElemSize)
		if err != nil {
			return 0, 0, err
		}
		if size == 0 {
			continue
		}
		whole, err = whole.normalize()
		if err != nil {
			return 0, 0, err
		}

		data, err := d.fetch(ctx, FetchRequest{Var: info, Slab: whole})
		if err == nil && len(data) != size {
			err = fmt.Errorf("gridstore: backend returned %d bytes for variable %q, want %d", len(data), info.Name, size)
		}
		if err != nil {
			return 0, 0, err
		}
		buf = append(buf, data...)
	}

	if err := d.cache.SetPrefetch(buf, vars); err != nil {
		return 0, 0, translateError(err)
	}
	return int(vars.GetCardinality()), int64(len(buf)), nil
}

// PrefetchSmall prefetches every variable with at most the configured
// prefetch limit of elements. It does nothing when no variable qualifies.
func (d *Dataset) PrefetchSmall(ctx context.Context) error {
	ctx, unlock, err := d.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var names []string
	for _, v := range d.vars {
		if v == nil {
			continue
		}
		n, err := odometer.NumElements(d.snapshot(v).Shape)
		if err == nil && n <= d.opts.prefetchLimit {
			names = append(names, v.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return d.Prefetch(ctx, names...)
}

// CacheStats returns a snapshot of the chunk cache counters.
func (d *Dataset) CacheStats(ctx context.Context) (CacheStats, error) {
	_, unlock, err := d.enter(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	defer unlock()

	return d.cacheStats(), nil
}

func (d *Dataset) cacheStats() CacheStats {
	s := d.cache.Stats()
	return CacheStats{
		Hits:          s.Hits,
		Misses:        s.Misses,
		Evictions:     s.Evictions,
		Nodes:         s.Nodes,
		Bytes:         s.Bytes,
		PrefetchBytes: s.PrefetchBytes,
	}
}

// Close drops every cached fragment and the prefetch slot and removes the
// dataset from its registry. The backend is not closed. Closing twice is a
// no-op.
func (d *Dataset) Close(ctx context.Context) error {
	ctx, unlock, err := d.mu.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if d.closed {
		return nil
	}

	stats := d.cacheStats()
	d.cache.InvalidateAll()
	d.closed = true
	if d.registry != nil {
		d.registry.remove(d)
	}

	d.logger.LogClose(ctx, stats)
	return nil
}
