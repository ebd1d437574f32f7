// Package intindex implements KeyIndex, a concurrent positional index over
// unique int64 keys.
//
// A KeyIndex maps every key of a key array to its zero-based position in that
// array. It is built once and is immutable afterwards, so any number of
// goroutines may look keys up concurrently without locking.
//
// # Construction
//
// Build cuts the key array into threadCount contiguous chunks and runs two
// data-parallel phases on a fixed-size worker pool:
//
//	scatter:  worker w hashes its chunk's keys into S shard buckets
//	          buckets[w][s] = positions (ascending)
//	build:    shard s walks buckets[0][s], buckets[1][s], ... in order and
//	          fills a private map[int64]int64
//
// No structure is written by more than one worker. Because every shard sees
// its positions in ascending order, the merge is deterministic: the index and
// any DuplicateKeyError are identical for every threadCount.
//
// # Lookup
//
// Lookup splits the lookup array into threadCount contiguous slices; each
// worker writes only its own slice of the output. Absent values map to
// NotFound (-1). Repeated lookup values are legal and map to the same position.
package intindex
