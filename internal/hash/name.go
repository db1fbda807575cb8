package hash

import "github.com/cespare/xxhash/v2"

// Name returns the 64-bit key of a dimension or variable name.
func Name(name string) uint64 {
	return xxhash.Sum64String(name)
}
