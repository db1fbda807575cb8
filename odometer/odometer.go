package odometer

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// MaxRank is the largest number of axes a variable may have.
const MaxRank = 1024

// ErrInvalidArgument is returned for malformed rank, bounds or strides.
var ErrInvalidArgument = errors.New("odometer: invalid argument")

// Slice describes the walk along one axis: positions Start, Start+Stride, ...
// strictly below Stop. Max is the declared extent of the axis and is used
// only for offset arithmetic.
type Slice struct {
	Start  int64
	Stop   int64
	Stride int64
	Max    int64
}

// Odometer enumerates the coordinate vectors of a hyperslab in row-major
// order.
type Odometer struct {
	start  []int64
	stop   []int64
	stride []int64
	max    []int64
	index  []int64

	// done is set once a rank-0 walk has produced its single position, or
	// immediately when any axis selects nothing.
	done bool
	cur  []int64
}

// New creates an Odometer from per-axis start, stop, stride and declared
// extent. A nil extent uses stop as the extent; a nil stride means 1 on every
// axis.
func New(start, stop, stride, extent []int64) (*Odometer, error) {
	rank := len(start)
	if rank > MaxRank {
		return nil, fmt.Errorf("%w: rank %d exceeds %d", ErrInvalidArgument, rank, MaxRank)
	}
	if stride == nil {
		stride = ones(rank)
	}
	if extent == nil {
		extent = stop
	}
	if len(stop) != rank || len(stride) != rank || len(extent) != rank {
		return nil, fmt.Errorf("%w: axis vectors differ in length", ErrInvalidArgument)
	}

	for i := range rank {
		switch {
		case stride[i] <= 0:
			return nil, fmt.Errorf("%w: axis %d: stride %d", ErrInvalidArgument, i, stride[i])
		case start[i] < 0:
			return nil, fmt.Errorf("%w: axis %d: negative start %d", ErrInvalidArgument, i, start[i])
		case start[i] > stop[i]:
			return nil, fmt.Errorf("%w: axis %d: start %d > stop %d", ErrInvalidArgument, i, start[i], stop[i])
		}
	}

	o := &Odometer{
		start:  clone(start),
		stop:   clone(stop),
		stride: clone(stride),
		max:    clone(extent),
		index:  make([]int64, rank),
	}
	o.Reset()
	return o, nil
}

// FromSlab creates an Odometer from a start/count/stride request, the form
// callers use for hyperslab reads and writes. Stop is start+count*stride.
func FromSlab(start, count, stride, extent []int64) (*Odometer, error) {
	rank := len(start)
	if len(count) != rank || (stride != nil && len(stride) != rank) {
		return nil, fmt.Errorf("%w: axis vectors differ in length", ErrInvalidArgument)
	}
	if stride == nil {
		stride = ones(rank)
	}

	stop := make([]int64, rank)
	for i := range rank {
		if count[i] < 0 {
			return nil, fmt.Errorf("%w: axis %d: negative count %d", ErrInvalidArgument, i, count[i])
		}
		s, err := slabStop(start[i], count[i], stride[i])
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		stop[i] = s
	}
	return New(start, stop, stride, extent)
}

// FromSlices creates an Odometer from a list of axis slices.
func FromSlices(slices []Slice) (*Odometer, error) {
	n := len(slices)
	start := make([]int64, n)
	stop := make([]int64, n)
	stride := make([]int64, n)
	extent := make([]int64, n)
	for i, s := range slices {
		start[i], stop[i], stride[i], extent[i] = s.Start, s.Stop, s.Stride, s.Max
	}
	return New(start, stop, stride, extent)
}

func slabStop(start, count, stride int64) (int64, error) {
	if stride <= 0 {
		return 0, fmt.Errorf("%w: stride %d", ErrInvalidArgument, stride)
	}
	if count > 0 && stride > (math.MaxInt64-start)/count {
		return 0, fmt.Errorf("%w: start+count*stride overflows", ErrInvalidArgument)
	}
	return start + count*stride, nil
}

// Rank returns the number of axes.
func (o *Odometer) Rank() int {
	return len(o.start)
}

// HasMore reports whether the current position is inside the hyperslab.
func (o *Odometer) HasMore() bool {
	if o.done {
		return false
	}
	if len(o.index) == 0 {
		return true
	}
	return o.index[0] < o.stop[0]
}

// Advance moves to the next position. The carry ripples from the last axis
// toward axis 0; axis 0 is never reset, so its overflow ends the walk.
func (o *Odometer) Advance() {
	if o.done {
		return
	}
	rank := len(o.index)
	if rank == 0 {
		o.done = true
		return
	}

	for i := rank - 1; i >= 0; i-- {
		o.index[i] += o.stride[i]
		if i == 0 || o.index[i] < o.stop[i] {
			return
		}
		o.index[i] = o.start[i]
	}
}

// Next returns the current position and advances past it. The returned
// slice is reused by the following call.
func (o *Odometer) Next() ([]int64, bool) {
	if !o.HasMore() {
		return nil, false
	}
	o.cur = append(o.cur[:0], o.index...)
	o.Advance()
	return o.cur, true
}

// Offset returns the row-major linear offset of the current position
// against the declared extents.
func (o *Odometer) Offset() int64 {
	return LinearOffset(o.index, o.max)
}

// MemOffset returns the offset of the current position inside the selected
// sub-array, where steps[i] is the distance between consecutive selected
// elements along axis i in the destination buffer.
func (o *Odometer) MemOffset(steps []int64) int64 {
	var off int64
	for i, idx := range o.index {
		off += ((idx - o.start[i]) / o.stride[i]) * steps[i]
	}
	return off
}

// Indices returns a read-only view of the current position. It is valid
// until the next call to Advance or Reset.
func (o *Odometer) Indices() []int64 {
	return o.index
}

// Count returns the number of positions in the full walk. Counts that do
// not fit in an int64 saturate at math.MaxInt64.
func (o *Odometer) Count() int64 {
	n := int64(1)
	for i := range o.start {
		c := axisCount(o.start[i], o.stop[i], o.stride[i])
		if c == 0 {
			return 0
		}
		if n > math.MaxInt64/c {
			return math.MaxInt64
		}
		n *= c
	}
	return n
}

// Shape returns the number of selected positions along each axis.
func (o *Odometer) Shape() []int64 {
	shape := make([]int64, len(o.start))
	for i := range o.start {
		shape[i] = axisCount(o.start[i], o.stop[i], o.stride[i])
	}
	return shape
}

// Reset rewinds the walk to its first position.
func (o *Odometer) Reset() {
	copy(o.index, o.start)
	o.done = false
	for i := range o.start {
		if o.start[i] >= o.stop[i] {
			o.done = true
			return
		}
	}
}

// All returns an iterator over the remaining positions. The yielded slice
// is the live index vector and must be copied if retained.
func (o *Odometer) All() iter.Seq[[]int64] {
	return func(yield func([]int64) bool) {
		for o.HasMore() {
			if !yield(o.index) {
				return
			}
			o.Advance()
		}
	}
}

func axisCount(start, stop, stride int64) int64 {
	if start >= stop {
		return 0
	}
	return (stop-start-1)/stride + 1
}

func ones(n int) []int64 {
	s := make([]int64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func clone(s []int64) []int64 {
	return append(make([]int64, 0, len(s)), s...)
}
