package cache

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/arraystream/internal/resource"
)

const numShards = 64

// ShardedLRU is a BlockCache split across 64 LRU shards.
type ShardedLRU struct {
	shards [numShards]*LRU
}

// NewShardedLRU creates a sharded cache. The capacity is divided evenly
// across all shards.
func NewShardedLRU(capacity int64, rc *resource.Controller) *ShardedLRU {
	shardCapacity := max(capacity/numShards, 1)

	s := &ShardedLRU{}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, rc)
	}
	return s
}

func (s *ShardedLRU) shard(key Key) *LRU {
	d := xxhash.New()
	_, _ = d.WriteString(key.Path)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key.Block))
	_, _ = d.Write(buf[:])
	return s.shards[d.Sum64()%numShards]
}

// Get returns a cached block.
func (s *ShardedLRU) Get(ctx context.Context, key Key) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

// Set caches a block.
func (s *ShardedLRU) Set(ctx context.Context, key Key, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

// Invalidate removes every block of path from all shards.
func (s *ShardedLRU) Invalidate(path string) {
	for _, sh := range s.shards {
		sh.Invalidate(path)
	}
}

// Stats returns aggregated hit/miss statistics.
func (s *ShardedLRU) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total size across all shards.
func (s *ShardedLRU) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}

var (
	_ BlockCache = (*LRU)(nil)
	_ BlockCache = (*ShardedLRU)(nil)
)
