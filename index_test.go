package arraystream

import (
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexScenarios(t *testing.T) {
	tests := []struct {
		name    string
		keys    []int64
		lookups []int64
		want    []int64
	}{
		{"single key repeated lookups", []int64{1}, []int64{1, 1, 1, 1}, []int64{0, 0, 0, 0}},
		{"absent and negative", []int64{-1, 1, 2, 3, 4, 5}, []int64{-10000, 1, 2, 3, 5, 6}, []int64{-1, 1, 2, 3, 5, -1}},
		{"empty keys", nil, []int64{0, 7}, []int64{NotFound, NotFound}},
	}

	for _, tt := range tests {
		for _, threads := range []int{1, 2, 8} {
			t.Run(fmt.Sprintf("%s/threads=%d", tt.name, threads), func(t *testing.T) {
				idx, err := BuildIndex(tt.keys, WithThreadCount(threads))
				require.NoError(t, err)
				assert.Equal(t, len(tt.keys), idx.Len())
				assert.Equal(t, tt.want, idx.GetPositions(tt.lookups))
			})
		}
	}
}

func TestBuildIndexDuplicateKeys(t *testing.T) {
	for _, threads := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			idx, err := BuildIndex([]int64{-1, -1, -1, 0, 0, 0}, WithThreadCount(threads))
			require.Error(t, err)
			assert.Nil(t, idx)

			var dup *ErrDuplicateKey
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, int64(-1), dup.Key)
			assert.Equal(t, 0, dup.First)
			assert.Equal(t, 1, dup.Second)

			var iq *ErrInvalidQuery
			assert.False(t, errors.As(err, &iq))
		})
	}
}

func TestBuildIndexThreadCount(t *testing.T) {
	keys := []int64{3, 1, 2}

	idx, err := BuildIndex(keys)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreadCount, idx.ThreadCount())

	for _, n := range []int{0, -3} {
		_, err := BuildIndex(keys, WithThreadCount(n))
		var tc *ErrInvalidThreadCount
		require.True(t, errors.As(err, &tc), "n=%d", n)
		assert.Equal(t, n, tc.ThreadCount)
	}

	tests := []struct {
		level string
		want  int
	}{
		{"", 5},
		{"6", 3},
		{"1", 1},
		{"3", 1},
	}
	for _, tt := range tests {
		t.Run("level="+tt.level, func(t *testing.T) {
			cfg := map[string]string{}
			if tt.level != "" {
				cfg[ConfigComputeConcurrency] = tt.level
			}
			c, err := NewContext(WithConfig(cfg))
			require.NoError(t, err)

			idx, err := BuildIndex(keys, WithIndexContext(c))
			require.NoError(t, err)
			assert.Equal(t, tt.want, idx.ThreadCount())

			idx, err = BuildIndex(keys, WithIndexContext(c), WithThreadCount(2))
			require.NoError(t, err)
			assert.Equal(t, 2, idx.ThreadCount())
		})
	}
}

func TestIndexProperties(t *testing.T) {
	rng := testutil.NewRNG(4711)
	keys := rng.UniqueInt64s(50_000, -1<<40, 1<<40)

	lookups := make([]int64, 0, 30_000)
	for i := 0; i < 20_000; i++ {
		lookups = append(lookups, keys[rng.Intn(len(keys))])
	}
	for i := 0; i < 10_000; i++ {
		lookups = append(lookups, rng.Int64Range(-1<<41, 1<<41))
	}
	rng.ShuffleInt64s(lookups)

	var first []int64
	for _, threads := range []int{1, 2, 8} {
		idx, err := BuildIndex(keys, WithThreadCount(threads))
		require.NoError(t, err)

		self := idx.GetPositions(keys)
		for i, p := range self {
			require.Equal(t, int64(i), p)
		}

		got := idx.GetPositions(lookups)
		require.Len(t, got, len(lookups))
		for i, p := range got {
			if p != NotFound {
				require.Equal(t, lookups[i], keys[p])
			}
		}
		if first == nil {
			first = got
		} else {
			require.Equal(t, first, got, "threads=%d", threads)
		}
	}

	// Lookup commutes with permutation of its input.
	idx, err := BuildIndex(keys)
	require.NoError(t, err)
	perm := make([]int64, len(lookups))
	order := rng.UniqueInt64s(len(lookups), 0, int64(len(lookups)))
	for i, j := range order {
		perm[i] = lookups[j]
	}
	permuted := idx.GetPositions(perm)
	for i, j := range order {
		require.Equal(t, first[j], permuted[i])
	}
}

func TestIndexPositionAndInto(t *testing.T) {
	idx, err := BuildIndex([]int64{-1, 7})
	require.NoError(t, err)

	p, ok := idx.Position(-1)
	assert.True(t, ok)
	assert.Equal(t, int64(0), p)

	_, ok = idx.Position(8)
	assert.False(t, ok)

	dst := make([]int64, 3)
	require.NoError(t, idx.GetPositionsInto(dst, []int64{7, 8, -1}))
	assert.Equal(t, []int64{1, -1, 0}, dst)

	assert.ErrorIs(t, idx.GetPositionsInto(dst[:2], []int64{7, 8, -1}), ErrLengthMismatch)
}

func TestIndexGetPositionsArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	idx, err := BuildIndex([]int64{10, 20, 30})
	require.NoError(t, err)

	b := array.NewInt64Builder(mem)
	b.AppendValues([]int64{30, 0, 10}, []bool{true, false, true})
	b.Append(99)
	col := b.NewInt64Array()
	b.Release()
	defer col.Release()

	pos, err := idx.GetPositionsArray(mem, col)
	require.NoError(t, err)
	defer pos.Release()
	assert.Equal(t, []int64{2, -1, 0, -1}, pos.Int64Values())

	fb := array.NewFloat64Builder(mem)
	fb.Append(1)
	fcol := fb.NewFloat64Array()
	fb.Release()
	defer fcol.Release()

	_, err = idx.GetPositionsArray(mem, fcol)
	var iq *ErrInvalidQuery
	assert.True(t, errors.As(err, &iq))
}

func TestIndexMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	idx, err := BuildIndex([]int64{1, 2, 3}, WithIndexMetrics(metrics))
	require.NoError(t, err)
	idx.GetPositions([]int64{1, 5})

	_, err = BuildIndex([]int64{1, 1}, WithIndexMetrics(metrics))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.IndexBuildCount)
	assert.Equal(t, int64(1), stats.IndexBuildErrors)
	assert.Equal(t, int64(3), stats.IndexBuildKeys)
	assert.Equal(t, int64(1), stats.LookupCount)
	assert.Equal(t, int64(2), stats.LookupValues)
	assert.Equal(t, int64(1), stats.LookupMissing)
}
