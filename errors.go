package gridstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/odometer"
	"github.com/hupe1980/gridstore/resource"
)

var (
	// ErrInvalidArgument is returned for malformed ranks, bounds, strides,
	// buffer sizes and names.
	ErrInvalidArgument = errors.New("gridstore: invalid argument")

	// ErrOutOfMemory is returned when the resource controller refuses the
	// memory an operation needs. Nothing is changed.
	ErrOutOfMemory = errors.New("gridstore: out of memory")

	// ErrNotFound is returned for unknown dimension or variable names.
	ErrNotFound = errors.New("gridstore: not found")

	// ErrNameInUse is returned when defining or renaming to a name that is
	// already taken in the namespace, or opening a dataset name twice in a
	// registry.
	ErrNameInUse = errors.New("gridstore: name in use")

	// ErrClosed is returned for operations on a closed dataset.
	ErrClosed = errors.New("gridstore: dataset closed")

	// ErrReadOnly is returned by Write when the backend cannot write.
	ErrReadOnly = errors.New("gridstore: dataset is read-only")
)

// ErrRankMismatch indicates a hyperslab whose rank differs from the
// variable's. It matches ErrInvalidArgument.
type ErrRankMismatch struct {
	Var      string
	Expected int
	Actual   int
}

func (e *ErrRankMismatch) Error() string {
	return fmt.Sprintf("gridstore: variable %q has rank %d, hyperslab has rank %d", e.Var, e.Expected, e.Actual)
}

func (e *ErrRankMismatch) Unwrap() error { return ErrInvalidArgument }

// ErrOutOfBounds indicates a hyperslab that selects positions past the
// current length of an axis. It matches ErrInvalidArgument.
type ErrOutOfBounds struct {
	Var    string
	Axis   int
	Length int64
	Last   int64
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("gridstore: variable %q axis %d: index %d out of bounds for length %d", e.Var, e.Axis, e.Last, e.Length)
}

func (e *ErrOutOfBounds) Unwrap() error { return ErrInvalidArgument }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already ours.
	for _, sentinel := range []error{ErrInvalidArgument, ErrOutOfMemory, ErrNotFound, ErrNameInUse, ErrClosed, ErrReadOnly} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, odometer.ErrInvalidArgument) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if errors.Is(err, cache.ErrOutOfMemory) || errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
