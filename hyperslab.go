package gridstore

import (
	"strconv"
	"strings"

	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/odometer"
)

// Hyperslab selects, for every axis i, the positions
// Start[i], Start[i]+Stride[i], ... of which there are Count[i].
// A nil Stride means 1 on every axis. The zero Hyperslab selects the single
// element of a scalar variable.
type Hyperslab struct {
	Start  []int64
	Count  []int64
	Stride []int64
}

// Slab returns a unit-stride hyperslab.
func Slab(start, count []int64) Hyperslab {
	return Hyperslab{Start: start, Count: count}
}

// Whole returns the hyperslab selecting every element of shape.
func Whole(shape []int64) Hyperslab {
	return Hyperslab{Start: make([]int64, len(shape)), Count: append([]int64(nil), shape...)}
}

// WithStride returns a copy of h with the given strides.
func (h Hyperslab) WithStride(stride ...int64) Hyperslab {
	h.Stride = stride
	return h
}

// Rank returns the number of axes.
func (h Hyperslab) Rank() int {
	return len(h.Start)
}

// NumElements returns the number of selected elements.
func (h Hyperslab) NumElements() (int64, error) {
	return odometer.NumElements(h.Count)
}

// Odometer returns a walker over the selected positions of an array with
// the given shape.
func (h Hyperslab) Odometer(shape []int64) (*odometer.Odometer, error) {
	return odometer.FromSlab(h.Start, h.Count, h.Stride, shape)
}

// Last returns the position of the last selected element along axis i.
// It is before Start[i] when the axis selects nothing.
func (h Hyperslab) Last(i int) int64 {
	return h.Start[i] + (h.Count[i]-1)*h.stride(i)
}

// End returns one past the last selected position along axis i.
func (h Hyperslab) End(i int) int64 {
	if h.Count[i] == 0 {
		return h.Start[i]
	}
	return h.Last(i) + 1
}

func (h Hyperslab) stride(i int) int64 {
	if h.Stride == nil {
		return 1
	}
	return h.Stride[i]
}

// normalize fills in the stride and checks the shape of the request.
// Bounds against the variable's extents are checked by the dataset.
func (h Hyperslab) normalize() (Hyperslab, error) {
	rank := len(h.Start)
	if len(h.Count) != rank || (h.Stride != nil && len(h.Stride) != rank) {
		return h, ErrInvalidArgument
	}
	if h.Stride == nil {
		h.Stride = make([]int64, rank)
		for i := range h.Stride {
			h.Stride[i] = 1
		}
	}
	// Validates strides, starts and overflow.
	if _, err := odometer.FromSlab(h.Start, h.Count, h.Stride, nil); err != nil {
		return h, translateError(err)
	}
	return h, nil
}

func (h Hyperslab) key(varID int) cache.Key {
	return cache.SlabKey(varID, h.Start, h.Count, h.Stride)
}

func (h Hyperslab) extent() cache.Extent {
	return cache.SlabExtent(h.Start, h.Count, h.Stride)
}

// String formats the hyperslab as start:count:stride per axis, e.g.
// "[2:3:1 0:20:1]".
func (h Hyperslab) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range h.Start {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(h.Start[i], 10))
		b.WriteByte(':')
		if i < len(h.Count) {
			b.WriteString(strconv.FormatInt(h.Count[i], 10))
		}
		b.WriteByte(':')
		if h.Stride == nil {
			b.WriteByte('1')
		} else if i < len(h.Stride) {
			b.WriteString(strconv.FormatInt(h.Stride[i], 10))
		}
	}
	b.WriteByte(']')
	return b.String()
}
