// Package blobstore abstracts the object stores that hold chunked variables.
//
// A BlobStore is a flat namespace of immutable-per-version objects: a Put
// replaces an object as a whole, and readers that opened the previous
// version keep seeing it. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and scratch datasets
//   - LocalStore: a directory; mmap reads, atomic rename writes
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//
// # Custom Implementations
//
//	type BlobStore interface {
//		Open(ctx, name) (Blob, error)
//		Put(ctx, name, data) error
//		Delete(ctx, name) error
//		List(ctx, prefix) ([]string, error)
//	}
//
// Open must return an error matching ErrNotFound for missing objects; the
// chunked backend reads missing chunks as fill values.
package blobstore
