// Package array is a compact sparse array store on top of a blobstore.
//
// An array lives under a URI prefix:
//
//	<uri>/__schema.json                  dimensions, attributes, compression
//	<uri>/__fragments/<ts>_<uuid>.frag   immutable write batches
//	<uri>/__manifest/<version>.json      ordered fragment list with bounds
//	<uri>/CURRENT                        name of the live manifest
//
// Every Write adds one fragment and commits a new manifest by replacing
// CURRENT. Readers open a snapshot: the manifest named by CURRENT at Open.
//
// # Fragments
//
// A fragment stores one block per column, dimensions first, in schema order.
// Column payloads use the Arrow memory layout (little-endian values, LSB
// validity bitmaps, int32 string offsets), so decoding wraps the block bytes
// as Arrow arrays without copying. Each block is
//
//	[crc32c u32][uncompressed u32][compressed u32][data]
//
// where compressed == 0 marks a raw block. Blocks compress with zstd or lz4
// and fall back to raw when compression saves less than 10%.
//
// # Queries
//
// A Query restricts dimensions by point sets or ranges, optionally takes one
// positional partition of one dimension, filters by a condition and projects
// columns. A Cursor visits fragments in manifest order, skipping those whose
// bounds miss a restriction, and emits batches no larger than the buffer
// budget. IsComplete reports whether the last batch ended the query.
package array
