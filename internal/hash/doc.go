// Package hash provides the hashing utilities used by the storage core.
//
// # Name hashing
//
// Dimension and variable names are reduced to a 64-bit key with xxHash64
// before they enter a name index:
//
//	key := hash.Name("time")
//
// The index compares keys, not strings, so the hash must be stable across
// processes and wide enough that two distinct names in one namespace never
// collide in practice.
//
// # CRC32-Castagnoli (CRC32C)
//
// Chunk frames written by the object-store backend carry a CRC32C of the
// uncompressed payload:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(part1)
//	h.Write(part2)
//	checksum := h.Sum32()
//
// The crc32cTable is pre-computed at package init time. Go's crc32 package
// uses hardware instructions (SSE4.2, ARM CRC) when available.
package hash
