// Package odometer walks the coordinates of a hyperslab and converts them to
// linear storage offsets.
//
// A hyperslab selects, for every axis i, the positions
//
//	start[i], start[i]+stride[i], ..., < start[i]+count[i]*stride[i]
//
// An Odometer enumerates the cartesian product of those positions in
// row-major order: the last axis varies fastest, axis 0 slowest. Advancing
// works like a mechanical counter. The last axis is incremented by its
// stride; on overflow it resets to its start and carries into the previous
// axis. Axis 0 is never reset; its overflow ends the walk.
//
// # Usage
//
//	od, err := odometer.FromSlab(
//		[]int64{2, 0},   // start
//		[]int64{3, 20},  // count
//		[]int64{1, 1},   // stride
//		[]int64{10, 20}, // declared shape
//	)
//	if err != nil {
//		return err
//	}
//	for od.HasMore() {
//		off := od.Offset() // element offset into the full array
//		_ = off
//		od.Advance()
//	}
//
// Or with range-over-func:
//
//	for idx := range od.All() {
//		fmt.Println(idx)
//	}
//
// An Odometer is single-owner and not safe for concurrent use. It never
// owns the buffers it indexes.
//
// The package also holds the small key and offset helpers shared by the
// cache and the backends: LinearOffset, Unravel, ChunkKey, Strides,
// NumElements and ChunkSpan, plus Runs, Gather and Scatter for moving a
// selection between a packed buffer and a row-major array.
package odometer
