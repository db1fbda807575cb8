// Package objstore is a chunked gridstore backend on any blobstore.BlobStore.
//
// Every variable is split into fixed-shape chunks, each stored as one
// object named after the variable id and the chunk coordinates. Chunks are
// framed with a CRC32C checksum and optionally compressed with LZ4 or ZSTD.
// Reads load the touched chunks concurrently, bounded by the resource
// controller's fetch slots, and keep recently decoded chunks in memory.
//
//	blobs := blobstore.NewLocalStore("/data/climate")
//	store, err := objstore.New(ctx, blobs, objstore.WithCompression(objstore.CompressionZSTD))
//	ds, err := gridstore.Open(ctx, "climate", store)
//
// A Store implements gridstore.Fetcher, gridstore.Writer and
// gridstore.Catalog. It is meant to back one open Dataset at a time.
package objstore
