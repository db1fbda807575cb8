package cache

import (
	"errors"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrOutOfMemory is returned when the resource controller refuses the
// memory an insertion needs. The cache is left unchanged.
var ErrOutOfMemory = errors.New("cache: out of memory")

// Default policy values.
const (
	DefaultMaxBytes = 100_000_000
	DefaultMaxNodes = 100
	DefaultMinBytes = 64
)

// Config holds the cache policy.
type Config struct {
	// MaxBytes is the aggregate byte budget of the bounded nodes.
	// If <= 0, only the node count bounds the cache.
	MaxBytes int64

	// MaxNodes is the maximum number of bounded nodes.
	// If <= 0, no nodes are kept (the prefetch slot still works).
	MaxNodes int

	// MinBytes is the smallest fetch result worth caching.
	MinBytes int64
}

// DefaultConfig returns the default cache policy.
func DefaultConfig() Config {
	return Config{
		MaxBytes: DefaultMaxBytes,
		MaxNodes: DefaultMaxNodes,
		MinBytes: DefaultMinBytes,
	}
}

// Key identifies the selection that produced a cached fragment.
type Key string

// SlabKey builds the canonical key of a hyperslab request on one variable,
// e.g. "7:2,0:3,20:1,1". A nil stride is encoded as all ones.
func SlabKey(varID int, start, count, stride []int64) Key {
	var b strings.Builder
	b.WriteString(strconv.Itoa(varID))
	for _, part := range [][]int64{start, count, stride} {
		b.WriteByte(':')
		for i := range start {
			if i > 0 {
				b.WriteByte(',')
			}
			v := int64(1)
			if part != nil {
				v = part[i]
			}
			b.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return Key(b.String())
}

// Extent is the half-open bounding box [Start, Stop) of a cached fragment
// in element coordinates. The zero Extent covers the whole variable.
type Extent struct {
	Start []int64
	Stop  []int64
}

// SlabExtent returns the bounding box of a start/count/stride selection.
func SlabExtent(start, count, stride []int64) Extent {
	e := Extent{Start: make([]int64, len(start)), Stop: make([]int64, len(start))}
	for i := range start {
		st := int64(1)
		if stride != nil {
			st = stride[i]
		}
		e.Start[i] = start[i]
		if count[i] > 0 {
			e.Stop[i] = start[i] + (count[i]-1)*st + 1
		} else {
			e.Stop[i] = start[i]
		}
	}
	return e
}

// Whole reports whether the extent covers the whole variable.
func (e Extent) Whole() bool {
	return e.Start == nil && e.Stop == nil
}

// Intersects reports whether two extents share at least one element.
// Extents of different rank are treated as overlapping.
func (e Extent) Intersects(o Extent) bool {
	if e.Whole() || o.Whole() || len(e.Start) != len(o.Start) {
		return true
	}
	for i := range e.Start {
		if e.Start[i] >= o.Stop[i] || o.Start[i] >= e.Stop[i] {
			return false
		}
	}
	return true
}

// Entry is a cached fragment. Data must be treated as read-only.
type Entry struct {
	Key    Key
	Data   []byte
	Vars   *roaring.Bitmap // variable ids the bytes satisfy
	Extent Extent
	Seq    uint64 // insertion sequence number
}

// Covers reports whether the entry holds bytes of variable id.
func (e *Entry) Covers(id int) bool {
	return e.Vars != nil && id >= 0 && e.Vars.Contains(uint32(id))
}

// Size returns the number of bytes held by the entry.
func (e *Entry) Size() int64 {
	return int64(len(e.Data))
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Nodes         int
	Bytes         int64
	PrefetchBytes int64
}

// Vars builds a variable set from ids.
func Vars(ids ...int) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range ids {
		bm.Add(uint32(id))
	}
	return bm
}
