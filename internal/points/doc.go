// Package points holds the coordinate restrictions pushed down to an array
// query: deduplicated point sets, inclusive range sets, and the positional
// partitioning that splits either one across cooperating readers.
//
// Point sets are stored in a roaring64 bitmap. int64 coordinates are mapped
// onto uint64 with the sign bit flipped, which preserves order, so ranks in
// the bitmap are ranks in coordinate order.
package points
