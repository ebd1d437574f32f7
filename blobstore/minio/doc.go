// Package minio provides a BlobStore on MinIO and other S3-compatible object
// stores (Ceph, Garage, SeaweedFS) using the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "soma", "census/")
//	sctx, err := arraystream.NewContext(arraystream.WithBlobStore(store))
//
// Fragment reads are ranged GETs, so a reader touching a few columns of a
// large fragment only transfers what it decodes.
package minio
