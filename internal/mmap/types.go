package mmap

import "errors"

// AccessPattern hints how a mapping will be read.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	// AccessSequential suits whole-variable scans.
	AccessSequential
	// AccessRandom suits strided selections.
	AccessRandom
	// AccessWillNeed asks the kernel to read ahead.
	AccessWillNeed
)

var (
	// ErrClosed is returned when a closed mapping is accessed.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
