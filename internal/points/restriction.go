package points

// Restriction limits one dimension of a query to a subset of coordinates.
type Restriction interface {
	// Contains reports whether coordinate v is selected.
	Contains(v int64) bool
	// Overlaps reports whether any selected coordinate lies in [lo, hi].
	Overlaps(lo, hi int64) bool
	// Bounds returns the smallest and largest selected coordinate.
	Bounds() (lo, hi int64, ok bool)
	// Partition returns the selected coordinates whose ranks fall in p.
	Partition(p Partition) (Restriction, error)
}

var (
	_ Restriction = (*Set)(nil)
	_ Restriction = (*RangeSet)(nil)
)
