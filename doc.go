// Package gridstore is the chunked-array access engine of a self-describing
// multidimensional array store.
//
// A Dataset names dimensions and variables, resolves names through
// open-addressing name indexes, walks hyperslab requests with an odometer,
// and memoizes materialized selections in a bounded FIFO chunk cache with a
// single prefetch slot. The bytes themselves come from a backend that
// implements Fetcher (and optionally Writer and Catalog).
//
// # Quick Start
//
//	ctx := context.Background()
//	backend, _ := flat.Open("./data")
//	ds, _ := gridstore.Open(ctx, "climate", backend)
//	defer ds.Close(ctx)
//
//	ds.DefineDim(ctx, "time", gridstore.Unlimited)
//	ds.DefineDim(ctx, "lat", 10)
//	ds.DefineVar(ctx, "temp", []string{"time", "lat"}, 4)
//
//	ds.Write(ctx, "temp", gridstore.Slab([]int64{0, 0}, []int64{1, 10}), row)
//	data, _ := ds.Read(ctx, "temp", gridstore.Slab([]int64{0, 2}, []int64{1, 5}))
//
// # Backends
//
//   - flat: one row-major file per variable, memory-mapped reads
//   - objstore: chunk objects in any blobstore.BlobStore (memory, local
//     directory, MinIO, S3) with none/lz4/zstd compression
//
// Any function can serve as a read-only backend through FetchFunc.
//
// # Caching
//
// A read is served from the prefetch slot when it covers the variable,
// else from the chunk cache, else by one Fetch call whose result is cached
// when it is at least WithMinCacheBytes large. Eviction is strictly
// first-in first-out; hits do not promote. A Write invalidates every cached
// fragment of the variable that intersects the written region and clears
// the prefetch slot.
//
// # Concurrency
//
// Each Dataset serializes its public methods behind a reentrant lock that
// travels in the context. A Fetcher that calls back into the dataset with
// the context it was given re-enters the lock. Different datasets proceed
// independently; a Registry tracks open datasets without global state.
package gridstore
