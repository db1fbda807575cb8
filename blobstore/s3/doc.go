// Package s3 stores dataset blobs in Amazon S3.
//
// # Usage
//
//	store, err := s3.NewFromConfig(ctx, "my-bucket", "datasets/climate")
//
//	ds, err := objstore.Open(ctx, store, objstore.WithChunkShape("temp", 100, 100))
//
// # Features
//
//   - Range reads, so a chunk fetch reads only its frame
//   - Multipart uploads above the configured part size
//   - CRC32C checksums on every upload
//   - Automatic pagination for listing
package s3
