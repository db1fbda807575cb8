package flat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/internal/fs"
	"github.com/hupe1980/gridstore/internal/mmap"
	"github.com/hupe1980/gridstore/odometer"
	"github.com/hupe1980/gridstore/resource"
)

const schemaFile = "schema.json"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("flat: store is closed")

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the schema encoding. Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithFileSystem replaces the file system used for variable files.
func WithFileSystem(files fs.FileSystem) Option {
	return func(s *Store) {
		s.files = files
	}
}

// WithResourceController throttles file IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Store) {
		s.rc = rc
	}
}

// Store keeps every variable in its own file, laid out row-major without
// padding. Reads go through a memory mapping of the file; positions past
// its end read as zeros.
type Store struct {
	dir   string
	codec codec.Codec
	files fs.FileSystem
	rc    *resource.Controller

	mu     sync.Mutex
	maps   map[int]*mmap.Mapping
	closed bool
}

// New creates a Store in dir, creating the directory if needed.
func New(dir string, optFns ...Option) (*Store, error) {
	s := &Store{
		dir:   dir,
		codec: codec.Default,
		files: fs.Default,
		maps:  make(map[int]*mmap.Mapping),
	}
	for _, fn := range optFns {
		fn(s)
	}

	if err := s.files.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}
	return s, nil
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) varPath(id int) string {
	return filepath.Join(s.dir, "var"+strconv.Itoa(id)+".bin")
}

// mapping returns the cached mapping of variable id, opening it on first
// use. It returns nil if the variable has no file yet.
func (s *Store) mapping(id int) (*mmap.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if m, ok := s.maps[id]; ok {
		return m, nil
	}

	m, err := mmap.Open(s.varPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flat: map variable %d: %w", id, err)
	}
	// Hyperslab reads jump between rows.
	_ = m.Advise(mmap.AccessRandom)
	s.maps[id] = m
	return m, nil
}

// unmap drops the cached mapping of id so the next read sees the current
// file size.
func (s *Store) unmap(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.maps[id]
	if !ok {
		return nil
	}
	delete(s.maps, id)
	return m.Close()
}

// Fetch implements gridstore.Fetcher.
func (s *Store) Fetch(ctx context.Context, req gridstore.FetchRequest) ([]byte, error) {
	n, err := req.Slab.NumElements()
	if err != nil {
		return nil, err
	}
	es := int64(req.Var.ElemSize)
	out := make([]byte, n*es)
	if n == 0 {
		return out, nil
	}

	runs, err := odometer.Runs(req.Var.Shape, req.Slab.Start, req.Slab.Count, req.Slab.Stride)
	if err != nil {
		return nil, err
	}

	m, err := s.mapping(req.Var.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return out, nil
	}
	if err := s.rc.AcquireIO(ctx, len(out)); err != nil {
		return nil, err
	}

	for r := range runs {
		m.CopyAt(out[r.Pos*es:(r.Pos+r.Len)*es], r.Offset*es)
	}
	return out, nil
}

// Write implements gridstore.Writer.
func (s *Store) Write(ctx context.Context, req gridstore.WriteRequest) error {
	n, err := req.Slab.NumElements()
	if err != nil {
		return err
	}
	es := int64(req.Var.ElemSize)
	if int64(len(req.Data)) != n*es {
		return fmt.Errorf("flat: write of %d bytes, selection holds %d", len(req.Data), n*es)
	}
	if n == 0 {
		return nil
	}

	runs, err := odometer.Runs(req.Var.Shape, req.Slab.Start, req.Slab.Count, req.Slab.Stride)
	if err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := s.rc.AcquireIO(ctx, len(req.Data)); err != nil {
		return err
	}

	f, err := s.files.OpenFile(s.varPath(req.Var.ID), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("flat: %w", err)
	}

	for r := range runs {
		if _, err = f.WriteAt(req.Data[r.Pos*es:(r.Pos+r.Len)*es], r.Offset*es); err != nil {
			break
		}
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if uerr := s.unmap(req.Var.ID); err == nil {
		err = uerr
	}
	if err != nil {
		return fmt.Errorf("flat: write variable %d: %w", req.Var.ID, err)
	}
	return nil
}

// LoadSchema implements gridstore.Catalog.
func (s *Store) LoadSchema(context.Context) (*gridstore.Schema, error) {
	data, err := s.files.ReadFile(filepath.Join(s.dir, schemaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}

	var schema gridstore.Schema
	if err := s.codec.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("flat: decode schema: %w", err)
	}
	return &schema, nil
}

// SaveSchema implements gridstore.Catalog. The file is replaced atomically.
func (s *Store) SaveSchema(_ context.Context, schema *gridstore.Schema) error {
	data, err := s.codec.Marshal(schema)
	if err != nil {
		return fmt.Errorf("flat: encode schema: %w", err)
	}
	return atomic.WriteFile(filepath.Join(s.dir, schemaFile), bytes.NewReader(data))
}

// DropVar implements gridstore.Catalog by removing the variable's file.
func (s *Store) DropVar(_ context.Context, v gridstore.Var) error {
	if err := s.unmap(v.ID); err != nil {
		return err
	}
	err := s.files.Remove(s.varPath(v.ID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Close releases all mappings. It is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for id, m := range s.maps {
		errs = append(errs, m.Close())
		delete(s.maps, id)
	}
	return errors.Join(errs...)
}

var (
	_ gridstore.Fetcher = (*Store)(nil)
	_ gridstore.Writer  = (*Store)(nil)
	_ gridstore.Catalog = (*Store)(nil)
)
