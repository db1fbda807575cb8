// Package main provides slabinspect, a tool that shows how a hyperslab
// selection walks an array and which chunks it touches.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/backend/flat"
	"github.com/hupe1980/gridstore/odometer"
)

const usage = `Usage: slabinspect --shape 10,20 [flags]
       slabinspect --dir <flat dataset> [--var name] [flags]

Prints the positions a start/count/stride selection visits, the contiguous
runs it reads, and the chunks it touches. With --dir the shape and chunking
come from a variable of a flat dataset.`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	shape, start, count, stride, chunk []int64
	dir, varName                       string
	limit                              int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("slabinspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Int64SliceVar(&o.shape, "shape", nil, "array shape")
	fs.Int64SliceVar(&o.start, "start", nil, "first position per axis (default 0)")
	fs.Int64SliceVar(&o.count, "count", nil, "positions per axis (default: to the end)")
	fs.Int64SliceVar(&o.stride, "stride", nil, "step per axis (default 1)")
	fs.Int64SliceVar(&o.chunk, "chunk", nil, "chunk shape")
	fs.StringVar(&o.dir, "dir", "", "flat dataset directory")
	fs.StringVar(&o.varName, "var", "", "variable to inspect in --dir (default: list variables)")
	fs.IntVarP(&o.limit, "limit", "n", 20, "maximum positions to print")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stdout, usage)
			fmt.Fprintln(stdout, "\nFlags:")
			fs.SetOutput(stdout)
			fs.PrintDefaults()
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	if err := inspect(ctx, o, stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func inspect(ctx context.Context, o options, w io.Writer) error {
	if o.dir != "" {
		done, err := fromDataset(ctx, &o, w)
		if err != nil || done {
			return err
		}
	}
	if len(o.shape) == 0 {
		return errors.New("--shape or --dir is required")
	}

	rank := len(o.shape)
	if o.start == nil {
		o.start = make([]int64, rank)
	}
	if o.count == nil {
		o.count = make([]int64, rank)
		for i := range min(rank, len(o.start)) {
			o.count[i] = max(o.shape[i]-o.start[i], 0)
		}
	}
	slab := gridstore.Hyperslab{Start: o.start, Count: o.count, Stride: o.stride}

	od, err := slab.Odometer(o.shape)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "selection %s of %v: %d elements\n", slab, o.shape, od.Count())

	printed := 0
	for idx := range od.All() {
		if printed == o.limit {
			fmt.Fprintln(w, "  ...")
			break
		}
		fmt.Fprintf(w, "  %v -> %d\n", idx, odometer.LinearOffset(idx, o.shape))
		printed++
	}

	runs, err := odometer.Runs(o.shape, slab.Start, slab.Count, slab.Stride)
	if err != nil {
		return err
	}
	var n, longest int64
	for r := range runs {
		n++
		longest = max(longest, r.Len)
	}
	fmt.Fprintf(w, "runs: %d (longest %d)\n", n, longest)

	if o.chunk == nil {
		return nil
	}
	span, err := odometer.ChunkSpan(slab.Start, slab.Count, slab.Stride, o.chunk)
	if err != nil {
		return err
	}
	total := 1
	for i, axis := range span {
		fmt.Fprintf(w, "axis %d chunks: %v\n", i, axis)
		total *= len(axis)
	}
	fmt.Fprintf(w, "chunks touched: %d\n", total)
	return nil
}

// fromDataset fills the shape and chunking from a flat dataset. It reports
// done when it only listed the variables.
func fromDataset(ctx context.Context, o *options, w io.Writer) (bool, error) {
	store, err := flat.New(o.dir)
	if err != nil {
		return false, err
	}
	defer store.Close()

	ds, err := gridstore.Open(ctx, o.dir, store, gridstore.WithLogger(gridstore.NoopLogger()))
	if err != nil {
		return false, err
	}
	defer ds.Close(ctx)

	if o.varName == "" {
		vars, err := ds.Vars(ctx)
		if err != nil {
			return false, err
		}
		for _, v := range vars {
			fmt.Fprintf(w, "%s(%s) shape %v elem %dB\n", v.Name, strings.Join(v.DimNames, ", "), v.Shape, v.ElemSize)
		}
		return true, nil
	}

	v, err := ds.Var(ctx, o.varName)
	if err != nil {
		return false, err
	}
	o.shape = v.Shape
	if o.chunk == nil && v.Chunk != nil {
		o.chunk = v.Chunk
	}
	return false, nil
}
