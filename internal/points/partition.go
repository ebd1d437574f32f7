package points

import (
	"errors"
	"fmt"
)

// ErrInvalidPartition is returned for a partition descriptor that does not
// describe one of Count parts.
var ErrInvalidPartition = errors.New("points: invalid partition")

// Partition selects part Index of Count equal positional parts.
type Partition struct {
	Index int
	Count int
}

// Validate reports whether p describes a valid part.
func (p Partition) Validate() error {
	switch {
	case p.Count < 1:
		return fmt.Errorf("%w: count %d < 1", ErrInvalidPartition, p.Count)
	case p.Index < 0:
		return fmt.Errorf("%w: index %d < 0", ErrInvalidPartition, p.Index)
	case p.Index >= p.Count:
		return fmt.Errorf("%w: index %d >= count %d", ErrInvalidPartition, p.Index, p.Count)
	}
	return nil
}

// IsWhole reports whether p covers everything.
func (p Partition) IsWhole() bool { return p.Count == 1 }

// Bounds returns the half-open rank range [lo, hi) of part p among n items.
// The parts of all indexes tile [0, n) without overlap.
func (p Partition) Bounds(n uint64) (lo, hi uint64) {
	return mulDiv(n, uint64(p.Index), uint64(p.Count)), mulDiv(n, uint64(p.Index+1), uint64(p.Count))
}

func (p Partition) String() string {
	return fmt.Sprintf("%d/%d", p.Index, p.Count)
}

// mulDiv computes n*k/c without overflowing for k <= c.
func mulDiv(n, k, c uint64) uint64 {
	return (n/c)*k + (n%c)*k/c
}
