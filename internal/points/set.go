package points

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

const signBit = uint64(1) << 63

func encode(v int64) uint64 { return uint64(v) ^ signBit }
func decode(u uint64) int64 { return int64(u ^ signBit) }

// Set is an ordered, deduplicated set of int64 coordinates.
type Set struct {
	bm *roaring64.Bitmap
}

// NewSet returns the set of the given values. Duplicates collapse.
func NewSet(values []int64) *Set {
	bm := roaring64.NewBitmap()
	for _, v := range values {
		bm.Add(encode(v))
	}
	bm.RunOptimize()
	return &Set{bm: bm}
}

// Len returns the number of distinct coordinates.
func (s *Set) Len() uint64 { return s.bm.GetCardinality() }

// Contains reports whether v is in the set.
func (s *Set) Contains(v int64) bool { return s.bm.Contains(encode(v)) }

// Bounds returns the smallest and largest coordinate, or false when empty.
func (s *Set) Bounds() (lo, hi int64, ok bool) {
	if s.bm.IsEmpty() {
		return 0, 0, false
	}
	return decode(s.bm.Minimum()), decode(s.bm.Maximum()), true
}

// Overlaps reports whether any coordinate lies in [lo, hi].
func (s *Set) Overlaps(lo, hi int64) bool {
	if lo > hi || s.bm.IsEmpty() {
		return false
	}
	it := s.bm.Iterator()
	it.AdvanceIfNeeded(encode(lo))
	return it.HasNext() && it.PeekNext() <= encode(hi)
}

// Values returns the coordinates in ascending order.
func (s *Set) Values() []int64 {
	out := make([]int64, 0, s.bm.GetCardinality())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, decode(it.Next()))
	}
	return out
}

// Partition returns the coordinates whose ranks fall in part p.
func (s *Set) Partition(p Partition) (Restriction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsWhole() {
		return s, nil
	}

	lo, hi := p.Bounds(s.Len())
	part := roaring64.NewBitmap()
	if lo < hi {
		start, err := s.bm.Select(lo)
		if err != nil {
			return nil, err
		}
		it := s.bm.Iterator()
		it.AdvanceIfNeeded(start)
		for n := hi - lo; n > 0 && it.HasNext(); n-- {
			part.Add(it.Next())
		}
	}
	part.RunOptimize()
	return &Set{bm: part}, nil
}
