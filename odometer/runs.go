package odometer

import (
	"fmt"
	"iter"
	"math"
)

// Run is a contiguous stretch of selected elements. Offset is the element
// offset of its first element in the full array, Pos its element offset in
// the packed selection, and Len the number of elements.
type Run struct {
	Offset int64
	Pos    int64
	Len    int64
}

// Runs returns the contiguous runs of a start/count/stride selection on a
// row-major array of the given shape, in selection order. When the last
// axis has stride 1 each run is a whole selected row; otherwise every run
// is a single element. The selection must lie inside shape.
func Runs(shape, start, count, stride []int64) (iter.Seq[Run], error) {
	rank := len(shape)
	if len(start) != rank || len(count) != rank || (stride != nil && len(stride) != rank) {
		return nil, fmt.Errorf("%w: axis vectors differ in length", ErrInvalidArgument)
	}
	if stride == nil {
		stride = ones(rank)
	}

	for i := range rank {
		if count[i] < 0 || stride[i] <= 0 || start[i] < 0 {
			return nil, fmt.Errorf("%w: axis %d: start %d count %d stride %d",
				ErrInvalidArgument, i, start[i], count[i], stride[i])
		}
		if count[i] == 0 {
			continue
		}
		if last := start[i] + (count[i]-1)*stride[i]; last < start[i] || last >= shape[i] {
			return nil, fmt.Errorf("%w: axis %d: selection exceeds length %d", ErrInvalidArgument, i, shape[i])
		}
	}

	run := int64(1)
	outer := count
	if rank > 0 && stride[rank-1] == 1 {
		run = count[rank-1]
		outer = clone(count)
		outer[rank-1] = min(run, 1)
	}

	od, err := FromSlab(start, outer, stride, shape)
	if err != nil {
		return nil, err
	}

	return func(yield func(Run) bool) {
		var pos int64
		for od.HasMore() {
			if !yield(Run{Offset: od.Offset(), Pos: pos, Len: run}) {
				return
			}
			pos += run
			od.Advance()
		}
	}, nil
}

// Gather copies the selection out of src, a row-major array of shape with
// elemSize-byte elements, into dst packed in selection order. Elements past
// the end of src read as zero. dst must hold the whole selection.
func Gather(dst, src []byte, shape, start, count, stride []int64, elemSize int) error {
	runs, err := Runs(shape, start, count, stride)
	if err != nil {
		return err
	}
	es := int64(elemSize)
	need, err := byteLen(count, elemSize)
	if err != nil {
		return err
	}
	if int64(len(dst)) < need {
		return fmt.Errorf("%w: destination holds %d bytes, selection needs %d", ErrInvalidArgument, len(dst), need)
	}
	for r := range runs {
		d := dst[r.Pos*es : (r.Pos+r.Len)*es]
		lo, hi := r.Offset*es, (r.Offset+r.Len)*es
		n := 0
		if lo < int64(len(src)) {
			n = copy(d, src[lo:min(hi, int64(len(src)))])
		}
		clear(d[n:])
	}
	return nil
}

// Scatter is the inverse of Gather: it copies the packed selection in src
// into dst, a row-major array of shape. src must hold exactly the
// selection and dst the whole array.
func Scatter(dst, src []byte, shape, start, count, stride []int64, elemSize int) error {
	runs, err := Runs(shape, start, count, stride)
	if err != nil {
		return err
	}
	es := int64(elemSize)
	need, err := byteLen(count, elemSize)
	if err != nil {
		return err
	}
	if int64(len(src)) != need {
		return fmt.Errorf("%w: source holds %d bytes, selection needs %d", ErrInvalidArgument, len(src), need)
	}
	total, err := byteLen(shape, elemSize)
	if err != nil {
		return err
	}
	if int64(len(dst)) < total {
		return fmt.Errorf("%w: destination holds %d bytes, array needs %d", ErrInvalidArgument, len(dst), total)
	}
	for r := range runs {
		copy(dst[r.Offset*es:(r.Offset+r.Len)*es], src[r.Pos*es:(r.Pos+r.Len)*es])
	}
	return nil
}

// byteLen returns the byte size of an array of shape with elemSize-byte
// elements.
func byteLen(shape []int64, elemSize int) (int64, error) {
	if elemSize <= 0 {
		return 0, fmt.Errorf("%w: element size %d", ErrInvalidArgument, elemSize)
	}
	n, err := NumElements(shape)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64/int64(elemSize) {
		return 0, fmt.Errorf("%w: byte size overflows", ErrInvalidArgument)
	}
	return n * int64(elemSize), nil
}
