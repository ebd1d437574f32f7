package array

import (
	"context"
	"fmt"

	"github.com/hupe1980/arraystream/internal/condition"
	"github.com/hupe1980/arraystream/internal/points"
)

// Query selects cells of an array. The zero Query selects every column of
// every cell.
type Query struct {
	// Columns lists the output columns in order. Empty means all columns,
	// dimensions first.
	Columns []string
	// Condition filters cells by attribute values.
	Condition *condition.Expr
	// Points restricts dimensions to explicit coordinates.
	Points map[string]*points.Set
	// Ranges restricts dimensions to inclusive ranges.
	Ranges map[string]*points.RangeSet
	// Partition keeps one positional slice of one dimension's coordinates.
	Partition *DimPartition
}

// DimPartition selects partition Index of Count over the coordinates of Dim.
// The coordinates are the dimension's point set or range set when the query
// restricts it, and its non-empty domain otherwise.
type DimPartition struct {
	Dim string
	points.Partition
}

// Query starts a read. Fragments are visited in manifest order and skipped
// when their bounds miss a restriction.
func (a *Array) Query(_ context.Context, q Query) (*Cursor, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if a.mode != ModeRead {
		return nil, fmt.Errorf("%w: query on %s handle", ErrMode, a.mode)
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = a.schema.ColumnNames()
	}
	out := make([]int, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		idx, _, _, ok := a.schema.column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q selected twice", ErrUnknownColumn, name)
		}
		seen[name] = true
		out[i] = idx
	}
	outSchema, err := a.schema.arrowSchema(columns)
	if err != nil {
		return nil, err
	}

	if q.Condition != nil {
		if err := q.Condition.Validate(a.schema.ArrowSchema()); err != nil {
			return nil, err
		}
	}

	restrict := make([][]points.Restriction, len(a.schema.Dimensions))
	for dim, set := range q.Points {
		idx, err := a.dimIndex(dim)
		if err != nil {
			return nil, err
		}
		restrict[idx] = append(restrict[idx], set)
	}
	for dim, rs := range q.Ranges {
		idx, err := a.dimIndex(dim)
		if err != nil {
			return nil, err
		}
		restrict[idx] = append(restrict[idx], rs)
	}

	if p := q.Partition; p != nil {
		if err := a.applyPartition(q, p, restrict); err != nil {
			return nil, err
		}
	}

	var frags []FragmentInfo
	for _, f := range a.Fragments() {
		if fragmentMatches(&f, restrict) {
			frags = append(frags, f)
		}
	}

	need := make(map[int]bool)
	for _, idx := range out {
		need[idx] = true
	}
	for dim, rs := range restrict {
		if len(rs) > 0 {
			need[dim] = true
		}
	}
	if q.Condition != nil {
		for _, name := range q.Condition.Columns() {
			idx, _, _, _ := a.schema.column(name)
			need[idx] = true
		}
	}

	return &Cursor{
		arr:      a,
		schema:   outSchema,
		out:      out,
		need:     need,
		restrict: restrict,
		cond:     q.Condition,
		frags:    frags,
	}, nil
}

// applyPartition replaces the partitioned dimension's base restriction with
// its selected slice.
func (a *Array) applyPartition(q Query, p *DimPartition, restrict [][]points.Restriction) error {
	idx, err := a.dimIndex(p.Dim)
	if err != nil {
		return err
	}
	if err := p.Partition.Validate(); err != nil {
		return err
	}

	var base points.Restriction
	switch {
	case q.Points[p.Dim] != nil:
		base = q.Points[p.Dim]
	case q.Ranges[p.Dim] != nil:
		base = q.Ranges[p.Dim]
	default:
		bounds, ok, err := a.NonEmptyDomain(p.Dim)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rs, err := points.NewRangeSet([][2]int64{bounds})
		if err != nil {
			return err
		}
		base = rs
	}

	part, err := base.Partition(p.Partition)
	if err != nil {
		return err
	}
	rs := restrict[idx][:0]
	for _, r := range restrict[idx] {
		if r != base {
			rs = append(rs, r)
		}
	}
	restrict[idx] = append(rs, part)
	return nil
}

func fragmentMatches(f *FragmentInfo, restrict [][]points.Restriction) bool {
	for dim, rs := range restrict {
		for _, r := range rs {
			if !r.Overlaps(f.Bounds[dim][0], f.Bounds[dim][1]) {
				return false
			}
		}
	}
	return true
}
