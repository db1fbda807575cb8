package objstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/odometer"
	"github.com/hupe1980/gridstore/resource"
)

// FormatVersion is the layout version written to the manifest.
const FormatVersion = 1

// DefaultChunkLen is the per-axis chunk length used for variables defined
// without explicit chunking.
const DefaultChunkLen = 64

const (
	manifestName = ".gridstore"
	schemaName   = ".schema"
	metaName     = ".meta"
)

// ErrFormat is returned when the manifest of a store cannot be used.
var ErrFormat = errors.New("objstore: unsupported store format")

type manifest struct {
	Version     int    `json:"version"`
	Codec       string `json:"codec"`
	Compression string `json:"compression"`
}

// varMeta is fixed when a variable is first saved. Later chunking changes
// in the schema do not move existing chunks.
type varMeta struct {
	Chunk    []int64 `json:"chunk"`
	ElemSize int     `json:"elem_size"`
}

// Option configures a Store.
type Option func(*Store)

// WithCompression sets the codec for chunks written from now on.
// Default: CompressionNone.
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithCodec sets the encoding of the schema and metadata objects of a new
// store. An existing store keeps the codec named in its manifest.
// Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithDefaultChunkLen sets the chunk length of axes without explicit
// chunking.
func WithDefaultChunkLen(n int64) Option {
	return func(s *Store) {
		s.defaultChunk = n
	}
}

// WithResourceController bounds concurrent chunk loads and IO throughput.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Store) {
		s.rc = rc
	}
}

// WithChunkCache sets the policy of the decoded chunk cache. A MaxNodes of
// zero disables it.
func WithChunkCache(cfg cache.Config) Option {
	return func(s *Store) {
		s.chunkCfg = cfg
	}
}

// Store keeps a dataset in a blobstore.BlobStore, one object per chunk:
//
//	.gridstore          manifest
//	.schema             dataset schema
//	<var id>/.meta      chunk shape and element size
//	<var id>/<i.j.k>    chunk at chunk coordinates (i, j, k)
//
// Data is keyed by variable id, so renames never touch chunks. Missing
// chunks read as zeros.
type Store struct {
	blobs        blobstore.BlobStore
	codec        codec.Codec
	compression  Compression
	defaultChunk int64
	rc           *resource.Controller
	chunkCfg     cache.Config

	mu     sync.Mutex
	metas  map[int]*varMeta
	chunks *cache.ChunkCache
}

// New opens or initializes a chunked store on blobs.
func New(ctx context.Context, blobs blobstore.BlobStore, optFns ...Option) (*Store, error) {
	s := &Store{
		blobs:        blobs,
		codec:        codec.Default,
		defaultChunk: DefaultChunkLen,
		chunkCfg:     cache.Config{MaxBytes: 64 << 20, MaxNodes: 256},
		metas:        make(map[int]*varMeta),
	}
	for _, fn := range optFns {
		fn(s)
	}

	if s.defaultChunk <= 0 {
		return nil, fmt.Errorf("objstore: default chunk length %d", s.defaultChunk)
	}
	if s.compression > CompressionZSTD {
		return nil, fmt.Errorf("objstore: unknown compression %d", s.compression)
	}
	s.chunks = cache.New(s.chunkCfg, s.rc)

	if err := s.loadManifest(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadManifest(ctx context.Context) error {
	data, err := blobstore.Get(ctx, s.blobs, manifestName)
	if errors.Is(err, blobstore.ErrNotFound) {
		m := manifest{Version: FormatVersion, Codec: s.codec.Name(), Compression: s.compression.String()}
		// The manifest itself is always JSON so any reader can find the codec.
		raw, err := codec.Default.Marshal(m)
		if err != nil {
			return err
		}
		return s.blobs.Put(ctx, manifestName, raw)
	}
	if err != nil {
		return err
	}

	var m manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: version %d", ErrFormat, m.Version)
	}
	c, ok := codec.ByName(m.Codec)
	if !ok {
		return fmt.Errorf("%w: codec %q", ErrFormat, m.Codec)
	}
	s.codec = c
	return nil
}

// Compression returns the codec applied to new chunks.
func (s *Store) Compression() Compression {
	return s.compression
}

// LoadSchema implements gridstore.Catalog.
func (s *Store) LoadSchema(ctx context.Context) (*gridstore.Schema, error) {
	data, err := blobstore.Get(ctx, s.blobs, schemaName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var schema gridstore.Schema
	if err := s.codec.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("objstore: decode schema: %w", err)
	}
	return &schema, nil
}

// SaveSchema implements gridstore.Catalog. Variables seen for the first
// time get their chunk metadata written before the schema, so a stored
// schema never names a variable without it.
func (s *Store) SaveSchema(ctx context.Context, schema *gridstore.Schema) error {
	for _, v := range schema.Vars {
		if _, err := s.meta(ctx, v); err != nil {
			return err
		}
	}

	data, err := s.codec.Marshal(schema)
	if err != nil {
		return fmt.Errorf("objstore: encode schema: %w", err)
	}
	return s.put(ctx, schemaName, data)
}

// DropVar implements gridstore.Catalog by deleting every object of v.
func (s *Store) DropVar(ctx context.Context, v gridstore.Var) error {
	s.mu.Lock()
	delete(s.metas, v.ID)
	s.chunks.Invalidate(func(e *cache.Entry) bool { return e.Covers(v.ID) })
	s.mu.Unlock()

	names, err := s.blobs.List(ctx, varPrefix(v.ID))
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		if err := s.blobs.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func varPrefix(id int) string {
	return strconv.Itoa(id) + "/"
}

func chunkName(id int, coords []int64) string {
	return varPrefix(id) + odometer.ChunkKey(coords, '.')
}

// meta returns the chunk metadata of v, creating it on first use.
func (s *Store) meta(ctx context.Context, v gridstore.Var) (*varMeta, error) {
	s.mu.Lock()
	m, ok := s.metas[v.ID]
	s.mu.Unlock()
	if ok {
		return m, nil
	}

	name := varPrefix(v.ID) + metaName
	data, err := blobstore.Get(ctx, s.blobs, name)
	switch {
	case err == nil:
		m = &varMeta{}
		if err := s.codec.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("objstore: decode %s: %w", name, err)
		}
		if len(m.Chunk) != v.Rank() || m.ElemSize != v.ElemSize {
			return nil, fmt.Errorf("%w: %s does not match variable %q", ErrFormat, name, v.Name)
		}
	case errors.Is(err, blobstore.ErrNotFound):
		m = &varMeta{Chunk: s.chunkShape(v), ElemSize: v.ElemSize}
		raw, err := s.codec.Marshal(m)
		if err != nil {
			return nil, err
		}
		if err := s.put(ctx, name, raw); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.mu.Lock()
	s.metas[v.ID] = m
	s.mu.Unlock()
	return m, nil
}

func (s *Store) chunkShape(v gridstore.Var) []int64 {
	if len(v.Chunk) == v.Rank() {
		return append([]int64(nil), v.Chunk...)
	}
	chunk := make([]int64, v.Rank())
	for i, n := range v.Shape {
		switch {
		case i == 0 && v.Unlimited, n <= 0:
			// Record axes grow one record at a time.
			chunk[i] = 1
		default:
			chunk[i] = min(n, s.defaultChunk)
		}
	}
	return chunk
}

func (s *Store) put(ctx context.Context, name string, data []byte) error {
	if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return s.blobs.Put(ctx, name, data)
}

var (
	_ gridstore.Fetcher = (*Store)(nil)
	_ gridstore.Writer  = (*Store)(nil)
	_ gridstore.Catalog = (*Store)(nil)
)
