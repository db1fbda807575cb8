// Package nameindex implements the open-addressing table that resolves
// dimension and variable names to small integer ids.
//
// # Layout
//
// The table is a flat slice of slots. Each slot stores an active flag, the
// id plus one, and the 64-bit hash of the name. Storing id+1 lets a zero
// value mean "never occupied", which is how lookups distinguish an empty
// slot (end of probe) from a tombstone left by Remove (keep probing).
//
//	┌──────────┬──────────┬──────────┬──────────┐
//	│ active=1 │ active=0 │ active=0 │ active=1 │
//	│ value=3  │ value=0  │ value=5  │ value=1  │
//	│ hash=h(a)│ (empty)  │ tombstone│ hash=h(b)│
//	└──────────┴──────────┴──────────┴──────────┘
//
// # Probing
//
// The capacity is always prime. A name with hash h probes slot h mod cap,
// then advances by (h mod (cap-2)) + 1. Because the step is in [1, cap-2]
// and cap is prime, the sequence visits every slot exactly once.
//
// # Growth
//
// The table keeps count ≤ ¾·cap. An insert that would break that bound
// first rehashes into the first prime ≥ 2·cap, recomputing every probe
// sequence. Rehashing also drops tombstones.
//
// # Thread Safety
//
// An Index is not safe for concurrent use. The owning dataset handle
// serializes access.
package nameindex
