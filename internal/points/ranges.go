package points

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidRange is returned for a range whose lower bound exceeds its
// upper bound.
var ErrInvalidRange = errors.New("points: invalid range")

// ErrRangeTooLarge is returned when a range set is too large to be
// partitioned by coordinate count.
var ErrRangeTooLarge = errors.New("points: range set too large to partition")

// Range is an inclusive coordinate range.
type Range struct {
	Lo, Hi int64
}

func (r Range) count() uint64 { return uint64(r.Hi-r.Lo) + 1 }

// RangeSet is a sorted union of disjoint inclusive ranges.
type RangeSet struct {
	ranges []Range
}

// NewRangeSet normalizes ranges into a RangeSet. Overlapping and adjacent
// ranges merge.
func NewRangeSet(ranges [][2]int64) (*RangeSet, error) {
	rs := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r[0] > r[1] {
			return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, r[0], r[1])
		}
		rs = append(rs, Range{Lo: r[0], Hi: r[1]})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo < rs[j].Lo })

	merged := rs[:0]
	for _, r := range rs {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Hi == math.MaxInt64 || r.Lo <= last.Hi+1 {
				if r.Hi > last.Hi {
					last.Hi = r.Hi
				}
				continue
			}
		}
		merged = append(merged, r)
	}
	return &RangeSet{ranges: merged}, nil
}

// Ranges returns the normalized ranges.
func (s *RangeSet) Ranges() []Range { return s.ranges }

// Count returns the number of coordinates covered. It fails if the count does
// not fit in a uint64.
func (s *RangeSet) Count() (uint64, error) {
	var total uint64
	for _, r := range s.ranges {
		if r.Lo == math.MinInt64 && r.Hi == math.MaxInt64 {
			return 0, ErrRangeTooLarge
		}
		c := r.count()
		if total+c < total {
			return 0, ErrRangeTooLarge
		}
		total += c
	}
	return total, nil
}

// Contains reports whether v lies in one of the ranges.
func (s *RangeSet) Contains(v int64) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Hi >= v })
	return i < len(s.ranges) && s.ranges[i].Lo <= v
}

// Overlaps reports whether any range intersects [lo, hi].
func (s *RangeSet) Overlaps(lo, hi int64) bool {
	if lo > hi {
		return false
	}
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Hi >= lo })
	return i < len(s.ranges) && s.ranges[i].Lo <= hi
}

// Bounds returns the smallest and largest covered coordinate.
func (s *RangeSet) Bounds() (lo, hi int64, ok bool) {
	if len(s.ranges) == 0 {
		return 0, 0, false
	}
	return s.ranges[0].Lo, s.ranges[len(s.ranges)-1].Hi, true
}

// Partition returns the coordinates whose ranks, counted across all ranges in
// ascending order, fall in part p.
func (s *RangeSet) Partition(p Partition) (Restriction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsWhole() {
		return s, nil
	}

	total, err := s.Count()
	if err != nil {
		return nil, err
	}
	lo, hi := p.Bounds(total)

	var (
		out    []Range
		offset uint64
	)
	for _, r := range s.ranges {
		c := r.count()
		start, end := offset, offset+c
		offset = end
		if end <= lo {
			continue
		}
		if start >= hi {
			break
		}
		from := r.Lo + int64(max(lo, start)-start)
		to := r.Lo + int64(min(hi, end)-start) - 1
		out = append(out, Range{Lo: from, Hi: to})
	}
	return &RangeSet{ranges: out}, nil
}
