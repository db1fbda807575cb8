package odometer

import (
	"fmt"
	"math"
	"strconv"
)

// LinearOffset returns the row-major offset of indices within an array of
// the given shape: offset = offset*shape[i] + indices[i].
func LinearOffset(indices, shape []int64) int64 {
	var off int64
	for i, idx := range indices {
		off = off*shape[i] + idx
	}
	return off
}

// Unravel converts a row-major offset back into indices for shape. The
// result is written to dst when it has room.
func Unravel(offset int64, shape []int64, dst []int64) []int64 {
	if cap(dst) < len(shape) {
		dst = make([]int64, len(shape))
	}
	dst = dst[:len(shape)]
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = offset % shape[i]
		offset /= shape[i]
	}
	return dst
}

// ChunkKey joins chunk indices into a storage key such as "2.0.13". A
// rank-0 key is "0".
func ChunkKey(indices []int64, sep byte) string {
	if len(indices) == 0 {
		return "0"
	}
	buf := make([]byte, 0, len(indices)*4)
	for i, idx := range indices {
		if i > 0 {
			buf = append(buf, sep)
		}
		buf = strconv.AppendInt(buf, idx, 10)
	}
	return string(buf)
}

// Strides returns the row-major element distance of each axis of shape.
func Strides(shape []int64) []int64 {
	s := make([]int64, len(shape))
	step := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = step
		step *= shape[i]
	}
	return s
}

// NumElements returns the product of shape. A rank-0 shape holds one
// element.
func NumElements(shape []int64) (int64, error) {
	n := int64(1)
	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: axis %d: negative length %d", ErrInvalidArgument, i, d)
		}
		if d != 0 && n > math.MaxInt64/d {
			return 0, fmt.Errorf("%w: element count overflows", ErrInvalidArgument)
		}
		n *= d
	}
	return n, nil
}

// ChunkSpan returns, for every axis, the ascending chunk indices that a
// start/count/stride selection touches when the array is split into chunks
// of the given shape.
func ChunkSpan(start, count, stride, chunk []int64) ([][]int64, error) {
	rank := len(start)
	if len(count) != rank || len(chunk) != rank || (stride != nil && len(stride) != rank) {
		return nil, fmt.Errorf("%w: axis vectors differ in length", ErrInvalidArgument)
	}

	span := make([][]int64, rank)
	for i := range rank {
		st := int64(1)
		if stride != nil {
			st = stride[i]
		}
		if chunk[i] <= 0 {
			return nil, fmt.Errorf("%w: axis %d: chunk length %d", ErrInvalidArgument, i, chunk[i])
		}
		if count[i] < 0 {
			return nil, fmt.Errorf("%w: axis %d: negative count %d", ErrInvalidArgument, i, count[i])
		}
		if _, err := slabStop(start[i], count[i], st); err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		span[i] = axisChunks(start[i], count[i], st, chunk[i])
	}
	return span, nil
}

func axisChunks(start, count, stride, chunk int64) []int64 {
	if count == 0 {
		return nil
	}
	last := start + (count-1)*stride
	first, end := start/chunk, last/chunk

	// Sparse selections touch at most count chunks; walk the positions.
	if count <= end-first+1 {
		out := make([]int64, 0, count)
		for k := range count {
			c := (start + k*stride) / chunk
			if len(out) == 0 || out[len(out)-1] != c {
				out = append(out, c)
			}
		}
		return out
	}

	// Dense selections: test every chunk in range for a selected position.
	out := make([]int64, 0, end-first+1)
	for c := first; c <= end; c++ {
		lo := c * chunk
		k := int64(0)
		if lo > start {
			k = (lo - start + stride - 1) / stride
		}
		if pos := start + k*stride; k < count && pos < lo+chunk {
			out = append(out, c)
		}
	}
	return out
}
