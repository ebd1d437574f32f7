package intindex

import (
	"math/bits"

	"github.com/hupe1980/arraystream/internal/hash"
)

// NotFound is the position reported for a value that is not a key.
const NotFound int64 = -1

const (
	shardsPerThread = 4
	maxShards       = 1 << 12

	// Lookups smaller than this run on the calling goroutine.
	parallelLookupThreshold = 1 << 14
)

// KeyIndex maps unique int64 keys to their positions in the key array.
type KeyIndex struct {
	shards      []map[int64]int64
	mask        uint64
	n           int
	threadCount int
}

// Build constructs a KeyIndex over keys using threadCount workers.
//
// The result does not depend on threadCount. If keys contains a duplicate,
// Build returns a *DuplicateKeyError and no index.
func Build(keys []int64, threadCount int) (*KeyIndex, error) {
	if threadCount < 1 {
		return nil, ErrInvalidThreadCount
	}

	n := len(keys)
	workers := threadCount
	if workers > n {
		workers = max(n, 1)
	}

	numShards := shardCount(threadCount)
	idx := &KeyIndex{
		shards:      make([]map[int64]int64, numShards),
		mask:        uint64(numShards - 1),
		n:           n,
		threadCount: threadCount,
	}

	if n == 0 {
		for s := range idx.shards {
			idx.shards[s] = map[int64]int64{}
		}
		return idx, nil
	}

	// Scatter: buckets[w][s] holds the positions of chunk w that hash to s.
	buckets := make([][][]int, workers)
	err := parallel(workers, workers, func(w int) {
		lo, hi := chunkBounds(n, workers, w)
		local := make([][]int, numShards)
		hint := (hi-lo)/numShards + 1
		for i := lo; i < hi; i++ {
			s := idx.shardOf(keys[i])
			if local[s] == nil {
				local[s] = make([]int, 0, hint)
			}
			local[s] = append(local[s], i)
		}
		buckets[w] = local
	})
	if err != nil {
		return nil, err
	}

	// Build: shard s consumes the buckets of every worker in chunk order.
	dups := make([]*DuplicateKeyError, numShards)
	err = parallel(threadCount, numShards, func(s int) {
		size := 0
		for w := range buckets {
			size += len(buckets[w][s])
		}
		m := make(map[int64]int64, size)
		for w := range buckets {
			for _, p := range buckets[w][s] {
				k := keys[p]
				if first, ok := m[k]; ok {
					if dups[s] == nil {
						dups[s] = &DuplicateKeyError{Key: k, First: int(first), Second: int(p)}
					}
					continue
				}
				m[k] = int64(p)
			}
		}
		idx.shards[s] = m
	})
	if err != nil {
		return nil, err
	}

	var dup *DuplicateKeyError
	for _, d := range dups {
		if d != nil && (dup == nil || d.Second < dup.Second) {
			dup = d
		}
	}
	if dup != nil {
		return nil, dup
	}

	return idx, nil
}

// Len returns the number of keys in the index.
func (idx *KeyIndex) Len() int { return idx.n }

// ThreadCount returns the worker count the index was built with. It is also
// used for lookups.
func (idx *KeyIndex) ThreadCount() int { return idx.threadCount }

// Position returns the position of v, or false if v is not a key.
func (idx *KeyIndex) Position(v int64) (int64, bool) {
	p, ok := idx.shards[idx.shardOf(v)][v]
	return p, ok
}

// Lookup returns, for every value, its position in the key array or NotFound.
func (idx *KeyIndex) Lookup(values []int64) []int64 {
	out := make([]int64, len(values))
	idx.LookupInto(out, values)
	return out
}

// LookupInto writes the positions of values into dst, which must be at least
// len(values) long.
func (idx *KeyIndex) LookupInto(dst, values []int64) {
	n := len(values)
	if n == 0 {
		return
	}
	_ = dst[n-1]

	workers := idx.threadCount
	if n < parallelLookupThreshold {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	err := parallel(workers, workers, func(w int) {
		lo, hi := chunkBounds(n, workers, w)
		idx.lookupRange(dst[lo:hi], values[lo:hi])
	})
	if err != nil {
		// The pool could not be created; fall back to the caller's goroutine.
		idx.lookupRange(dst[:n], values)
	}
}

func (idx *KeyIndex) lookupRange(dst, values []int64) {
	for i, v := range values {
		if p, ok := idx.shards[idx.shardOf(v)][v]; ok {
			dst[i] = p
		} else {
			dst[i] = NotFound
		}
	}
}

func (idx *KeyIndex) shardOf(k int64) int {
	return int(hash.Int64(k) & idx.mask)
}

func shardCount(threadCount int) int {
	want := threadCount * shardsPerThread
	if want >= maxShards {
		return maxShards
	}
	return 1 << bits.Len(uint(want-1))
}
