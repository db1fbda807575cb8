// Package resource governs the memory, fetch concurrency and IO bandwidth
// shared by every dataset handle of a process.
//
//	┌───────────────────────────────────────────────────────────┐
//	│                        Controller                         │
//	├──────────────────┬──────────────────┬─────────────────────┤
//	│  Memory budget   │  Fetch slots     │  IO rate            │
//	│  (weighted sem)  │  (weighted sem)  │  (token bucket)     │
//	├──────────────────┼──────────────────┼─────────────────────┤
//	│  TryAcquireMem   │  AcquireFetch    │  AcquireIO          │
//	│  AcquireMemory   │  TryAcquireFetch │  RateLimitedReader  │
//	│  ReleaseMemory   │  ReleaseFetch    │  RateLimitedWriter  │
//	└──────────────────┴──────────────────┴─────────────────────┘
//
// Chunk caches charge every cached byte against the memory budget and
// report ErrOutOfMemory when TryAcquireMemory refuses. Backends that load
// chunks in parallel take one fetch slot per in-flight load, and throttle
// file and object IO through the rate limiter:
//
//	rc := resource.NewController(resource.Config{
//		MemoryLimitBytes:   512 << 20,
//		MaxConcurrentFetch: 8,
//		IOLimitBytesPerSec: 64 << 20,
//	})
//
// All methods are safe for concurrent use, and all of them accept a nil
// *Controller, turning into no-ops. Callers never need a nil check.
package resource
