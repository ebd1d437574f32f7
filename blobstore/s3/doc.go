// Package s3 provides BlobStore implementations on Amazon S3.
//
// Store serves fragment reads as ranged GETs and streams writes through the
// SDK's multipart upload manager. Small puts carry a CRC32C checksum.
//
// S3 has no compare-and-swap, so two writers committing to the same array can
// lose an update. DDBCommitStore wraps a Store and keeps every array's CURRENT
// pointer in DynamoDB instead, committed with a conditional write.
package s3
