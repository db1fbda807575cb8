// Package cache provides the ChunkCache that memoizes materialized array
// fragments for one dataset handle.
//
// # Bounded Nodes
//
// Every node holds the bytes produced by one selection (its Key), the set of
// variable ids those bytes satisfy (a roaring bitmap), and the bounding box
// of the selection. Nodes are evicted in insertion order (FIFO); a Lookup
// never reorders them.
//
//	 oldest                                  newest
//	┌───────┐   ┌───────┐   ┌───────┐   ┌───────┐
//	│ seq 3 │ → │ seq 4 │ → │ seq 7 │ → │ seq 8 │
//	└───────┘   └───────┘   └───────┘   └───────┘
//	    ↑ next eviction
//
// Two budgets bound the nodes: MaxBytes and MaxNodes. Fetch results smaller
// than MinBytes are not worth caching; callers check Admit first.
//
// # Prefetch Slot
//
// A single whole-variable snapshot lives outside the bounded nodes. Setting
// it never evicts a node and inserting nodes never drops it. Any mutation of
// the dataset clears it.
//
// # Memory Accounting
//
// Node and prefetch bytes are charged to an optional resource.Controller.
// A refused reservation surfaces as ErrOutOfMemory before the cache is
// touched.
package cache
