// Package minio provides a BlobStore on MinIO and other S3-compatible
// servers (Ceph, Garage, SeaweedFS) using the official MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//		Secure: false,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "grids", "era5/")
//	backend, err := objstore.New(ctx, store)
//
// Reads issue ranged GETs, so a chunked backend only transfers the chunk
// objects a hyperslab touches.
package minio
