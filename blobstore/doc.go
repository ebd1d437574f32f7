// Package blobstore provides the storage abstraction under array persistence.
//
// BlobStore is the interface for reading and writing immutable blobs (array
// schemas, fragments, manifests). Implementations must be safe for concurrent
// use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process, for tests and scratch arrays
//   - LocalStore: local file system, reads via mmap
//   - minio.Store: MinIO and S3-compatible object stores
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB for atomic CURRENT pointers
//
// CachingStore wraps any BlobStore with a shared block cache, so several
// readers streaming the same fragments fetch each block once.
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Open must return an error satisfying errors.Is(err, ErrNotFound) for a
// missing blob.
package blobstore
