// Package hash provides the hashing primitives used by arraystream.
//
// # CRC32-Castagnoli (CRC32C)
//
// Fragment column blocks and S3 uploads are checksummed with CRC32C:
//
//	checksum := hash.CRC32C(block)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
//
// # Key hashing
//
// Int64 hashes a single integer key with xxHash64. The KeyIndex uses it to
// route keys to shards, so it must be stable across processes and
// independent of worker count.
package hash
