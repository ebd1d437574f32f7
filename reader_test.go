package arraystream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, optFns ...Option) *Context {
	t.Helper()
	c, err := NewContext(optFns...)
	require.NoError(t, err)
	return c
}

// writeObs stores obs rows with joinids 0..n-1; cell types cycle through
// b, t, macrophage and n_genes equals the joinid.
func writeObs(t *testing.T, c *Context, uri string, n int, fragments int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.CreateArray(ctx, uri, testutil.ObsSchema()))

	types := []string{"b", "t", "macrophage"}
	per := (n + fragments - 1) / fragments
	for lo := 0; lo < n; lo += per {
		hi := min(lo+per, n)
		var (
			ids    []int64
			cts    []string
			nGenes []int32
		)
		for i := lo; i < hi; i++ {
			ids = append(ids, int64(i))
			cts = append(cts, types[i%3])
			nGenes = append(nGenes, int32(i))
		}
		rec := testutil.ObsRecord(memory.DefaultAllocator, ids, cts, nGenes)
		require.NoError(t, c.WriteArray(ctx, uri, rec))
		rec.Release()
	}
}

func readAllIDs(t *testing.T, r *Reader) []int64 {
	t.Helper()
	var ids []int64
	for {
		rec, ok, err := r.ReadNext(context.Background())
		require.NoError(t, err)
		if !ok {
			return ids
		}
		idx := rec.Schema().FieldIndices(testutil.JoinID)
		ids = append(ids, rec.Column(idx[0]).(*array.Int64).Int64Values()...)
		rec.Release()
	}
}

func TestReaderLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 30, 2)

	r, err := c.NewReader(ctx, "obs", WithName("cells"))
	require.NoError(t, err)
	assert.Equal(t, "cells", r.Name())
	assert.Equal(t, ReaderCreated, r.State())
	assert.Nil(t, r.Schema())

	_, _, err = r.ReadNext(ctx)
	assert.ErrorIs(t, err, ErrReaderState)

	require.NoError(t, r.SetDimPoints(testutil.JoinID, []int64{4, 2, 2, 29, 100}))
	require.NoError(t, r.Submit(ctx))
	assert.Equal(t, ReaderSubmitted, r.State())
	assert.NotNil(t, r.Schema())

	assert.ErrorIs(t, r.Submit(ctx), ErrReaderState)
	assert.ErrorIs(t, r.SetDimPoints(testutil.JoinID, []int64{1}), ErrReaderState)
	assert.ErrorIs(t, r.SetDimRanges(testutil.JoinID, [][2]int64{{1, 2}}), ErrReaderState)
	assert.ErrorIs(t, r.SetDimPartition(testutil.JoinID, Partition{Index: 0, Count: 2}), ErrReaderState)

	rec, ok, err := r.ReadNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ReaderBatchReady, r.State())
	assert.True(t, r.ResultsComplete())
	assert.Equal(t, []int64{2, 4, 29}, rec.Column(0).(*array.Int64).Int64Values())
	rec.Release()

	for i := 0; i < 3; i++ {
		rec, ok, err = r.ReadNext(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, rec)
		assert.Equal(t, ReaderExhausted, r.State())
	}

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, ReaderClosed, r.State())
	_, _, err = r.ReadNext(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestReaderCloseBeforeExhaustion(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 100, 4)

	r, err := c.NewReader(ctx, "obs", WithPlatformConfig(map[string]string{ConfigInitBufferBytes: "256"}))
	require.NoError(t, err)
	require.NoError(t, r.Submit(ctx))
	assert.Equal(t, int64(256), c.MemoryUsage())

	rec, ok, err := r.ReadNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	rec.Release()
	assert.False(t, r.ResultsComplete())

	require.NoError(t, r.Close())
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestReaderMissingArray(t *testing.T) {
	c := newTestContext(t)
	_, err := c.NewReader(context.Background(), "nope")

	var su *ErrStoreUnavailable
	require.True(t, errors.As(err, &su))
	assert.Equal(t, "nope", su.URI)
	assert.Equal(t, "open", su.Op)
	assert.ErrorIs(t, err, ErrArrayNotFound)
}

func TestReaderSubmitValidation(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 10, 1)

	tests := []struct {
		name  string
		opts  []ReaderOption
		setup func(r *Reader) error
	}{
		{"unknown points dimension", nil, func(r *Reader) error {
			return r.SetDimPoints("obs_id", []int64{1})
		}},
		{"unknown ranges dimension", nil, func(r *Reader) error {
			return r.SetDimRanges("obs_id", [][2]int64{{1, 2}})
		}},
		{"unknown partition dimension", nil, func(r *Reader) error {
			return r.SetDimPartition("obs_id", Partition{Index: 0, Count: 1})
		}},
		{"unknown column", []ReaderOption{WithColumnNames("soma_joinid", "tissue")}, nil},
		{"condition syntax", []ReaderOption{WithQueryCondition("cell_type ==")}, nil},
		{"condition unknown column", []ReaderOption{WithQueryCondition("tissue == 'lung'")}, nil},
		{"condition type mismatch", []ReaderOption{WithQueryCondition("n_genes == 'many'")}, nil},
		{"two partitions", nil, func(r *Reader) error {
			if err := r.SetDimPoints(testutil.JoinID, []int64{1, 2}, Partition{Index: 0, Count: 2}); err != nil {
				return err
			}
			return r.SetDimPartition(testutil.JoinID, Partition{Index: 1, Count: 2})
		}},
		{"count below one", nil, func(r *Reader) error {
			return r.SetDimPoints(testutil.JoinID, []int64{1}, Partition{Index: 0, Count: 0})
		}},
		{"index not below count", nil, func(r *Reader) error {
			return r.SetDimPoints(testutil.JoinID, []int64{1}, Partition{Index: 2, Count: 2})
		}},
		{"negative index", nil, func(r *Reader) error {
			return r.SetDimPoints(testutil.JoinID, []int64{1}, Partition{Index: -1, Count: 2})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.NewReader(ctx, "obs", tt.opts...)
			require.NoError(t, err)
			defer r.Close()

			if tt.setup != nil {
				require.NoError(t, tt.setup(r))
			}
			err = r.Submit(ctx)
			var iq *ErrInvalidQuery
			require.True(t, errors.As(err, &iq), "got %v", err)
			assert.NotEmpty(t, iq.Reason)
			assert.Equal(t, ReaderCreated, r.State())
			assert.Equal(t, int64(0), c.MemoryUsage())
		})
	}

	r, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r.Close()
	err = r.SetDimRanges(testutil.JoinID, [][2]int64{{5, 1}})
	var iq *ErrInvalidQuery
	assert.True(t, errors.As(err, &iq))
}

func TestReaderCondition(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 60, 3)

	r, err := c.NewReader(ctx, "obs",
		WithColumnNames(testutil.JoinID),
		WithQueryCondition("cell_type == 'macrophage' and n_genes >= 30"))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Submit(ctx))

	assert.Equal(t, []int64{32, 35, 38, 41, 44, 47, 50, 53, 56, 59}, readAllIDs(t, r))
}

func TestReaderConditionNullable(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)

	schema := ArraySchema{
		Dimensions: []Dimension{{Name: testutil.JoinID, Domain: [2]int64{0, 99}}},
		Attributes: []Attribute{{Name: "tissue", Type: TypeString, Nullable: true}},
	}
	require.NoError(t, c.CreateArray(ctx, "obs", schema))

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema.ArrowSchema())
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{0, 1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues(
		[]string{"lung", "", "blood", "lung"},
		[]bool{true, false, true, true})
	rec := b.NewRecord()
	b.Release()
	require.NoError(t, c.WriteArray(ctx, "obs", rec))
	rec.Release()

	read := func(cond string) []int64 {
		r, err := c.NewReader(ctx, "obs", WithQueryCondition(cond))
		require.NoError(t, err)
		defer r.Close()
		require.NoError(t, r.Submit(ctx))
		return readAllIDs(t, r)
	}

	assert.Equal(t, []int64{2}, read("tissue != 'lung'"))
	assert.Equal(t, []int64{2}, read("not (tissue == 'lung')"))
	assert.Equal(t, []int64{0, 3}, read("not tissue in ['blood']"))
}

func TestReaderTruncatedResults(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 100, 2)

	// soma_joinid alone is 8 bytes per row.
	r, err := c.NewReader(ctx, "obs",
		WithColumnNames(testutil.JoinID),
		WithPlatformConfig(map[string]string{ConfigInitBufferBytes: "320"}))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Submit(ctx))

	var (
		ids      []int64
		complete []bool
	)
	for {
		rec, ok, err := r.ReadNext(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.LessOrEqual(t, rec.NumRows(), int64(40))
		ids = append(ids, rec.Column(0).(*array.Int64).Int64Values()...)
		complete = append(complete, r.ResultsComplete())
		rec.Release()
	}
	assert.Len(t, ids, 100)
	assert.Equal(t, []bool{false, false, true}, complete)
}

func TestReaderBufferTooSmall(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 10, 1)

	r, err := c.NewReader(ctx, "obs", WithPlatformConfig(map[string]string{ConfigInitBufferBytes: "4"}))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Submit(ctx))

	_, _, err = r.ReadNext(ctx)
	var re *ErrResourceExhausted
	assert.True(t, errors.As(err, &re))
}

func TestReaderMemoryBudget(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t, WithConfig(map[string]string{
		ConfigMemoryBudgetBytes: "1000",
		ConfigInitBufferBytes:   "600",
	}))
	writeObs(t, c, "obs", 10, 1)

	r1, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	require.NoError(t, r1.Submit(ctx))

	r2, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r2.Close()
	err = r2.Submit(ctx)
	var re *ErrResourceExhausted
	require.True(t, errors.As(err, &re))

	require.NoError(t, r1.Close())
	r3, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r3.Close()
	require.NoError(t, r3.Submit(ctx))
}

func TestReaderStoreFailure(t *testing.T) {
	ctx := context.Background()
	fs := testutil.NewFaultyStore(blobstore.NewMemoryStore(), io.ErrUnexpectedEOF)
	c := newTestContext(t, WithBlobStore(fs))
	writeObs(t, c, "obs", 20, 2)

	r, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Submit(ctx))

	fs.FailOpens("__fragments/", 0)
	_, ok, err := r.ReadNext(ctx)
	assert.False(t, ok)

	var su *ErrStoreUnavailable
	require.True(t, errors.As(err, &su))
	assert.Equal(t, "read", su.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, ReaderDraining, r.State())
	assert.Equal(t, err, r.Err())

	fs.Heal()
	assert.Len(t, readAllIDs(t, r), 20)
	assert.NoError(t, r.Err())
}

func TestReaderPartitions(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 50, 3)

	cases := []struct {
		name  string
		setup func(r *Reader, p Partition) error
		want  int
	}{
		{"points", func(r *Reader, p Partition) error {
			return r.SetDimPoints(testutil.JoinID, []int64{1, 3, 5, 7, 9, 11, 13, 47, 48}, p)
		}, 9},
		{"ranges", func(r *Reader, p Partition) error {
			return r.SetDimRanges(testutil.JoinID, [][2]int64{{0, 9}, {40, 44}}, p)
		}, 15},
		{"domain", func(r *Reader, p Partition) error {
			return r.SetDimPartition(testutil.JoinID, p)
		}, 50},
	}

	for _, tc := range cases {
		for _, k := range []int{1, 2, 3, 5} {
			seen := map[int64]int{}
			for i := 0; i < k; i++ {
				r, err := c.NewReader(ctx, "obs")
				require.NoError(t, err)
				require.NoError(t, tc.setup(r, Partition{Index: i, Count: k}))
				require.NoError(t, r.Submit(ctx))
				for _, id := range readAllIDs(t, r) {
					seen[id]++
				}
				require.NoError(t, r.Close())
			}
			assert.Len(t, seen, tc.want, "%s k=%d", tc.name, k)
			for id, n := range seen {
				assert.Equal(t, 1, n, "%s k=%d id=%d", tc.name, k, id)
			}
		}
	}
}

func TestReaderRestrictionReplaced(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 50, 2)

	r, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetDimPoints(testutil.JoinID, []int64{1, 2, 3, 4}, Partition{Index: 0, Count: 2}))
	require.NoError(t, r.SetDimPoints(testutil.JoinID, []int64{10, 11, 12, 13, 14, 15}, Partition{Index: 1, Count: 3}))
	require.NoError(t, r.Submit(ctx))
	assert.Equal(t, []int64{12, 13}, readAllIDs(t, r))

	r2, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r2.Close()

	require.NoError(t, r2.SetDimRanges(testutil.JoinID, [][2]int64{{20, 29}}, Partition{Index: 0, Count: 2}))
	require.NoError(t, r2.SetDimPartition(testutil.JoinID, Partition{Index: 1, Count: 2}))
	require.NoError(t, r2.Submit(ctx))
	assert.Equal(t, []int64{25, 26, 27, 28, 29}, readAllIDs(t, r2))

	r3, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r3.Close()

	require.NoError(t, r3.SetDimPoints(testutil.JoinID, []int64{1, 2}, Partition{Index: 1, Count: 2}))
	require.NoError(t, r3.SetDimPoints(testutil.JoinID, []int64{7, 8}))
	require.NoError(t, r3.Submit(ctx))
	assert.Equal(t, []int64{7, 8}, readAllIDs(t, r3))
}

func TestReaderNonEmptyDomain(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	writeObs(t, c, "obs", 12, 2)

	r, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r.Close()

	lo, hi, ok, err := r.NonEmptyDomain(testutil.JoinID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(11), hi)
}

func TestReaderMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	c := newTestContext(t, WithMetricsCollector(metrics))
	writeObs(t, c, "obs", 10, 1)

	r, err := c.NewReader(ctx, "obs")
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Submit(ctx))
	readAllIDs(t, r)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BatchCount)
	assert.Equal(t, int64(10), stats.BatchRows)
}

func TestWriteArrayErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t)
	schema := testutil.ObsSchema()
	require.NoError(t, c.CreateArray(ctx, "obs", schema))
	assert.ErrorIs(t, c.CreateArray(ctx, "obs", schema), ErrArrayExists)
	assert.ErrorIs(t, c.CreateArray(ctx, "bad", ArraySchema{}), ErrInvalidSchema)

	rec := testutil.ObsRecord(memory.DefaultAllocator, []int64{-5}, []string{"b"}, []int32{1})
	defer rec.Release()
	assert.ErrorIs(t, c.WriteArray(ctx, "obs", rec), ErrOutOfDomain)

	var su *ErrStoreUnavailable
	assert.True(t, errors.As(c.WriteArray(ctx, "missing", rec), &su))
}

func TestBlockCacheContext(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t, WithBlockCache(1<<20))
	writeObs(t, c, "obs", 40, 2)

	for i := 0; i < 2; i++ {
		r, err := c.NewReader(ctx, "obs")
		require.NoError(t, err)
		require.NoError(t, r.Submit(ctx))
		assert.Len(t, readAllIDs(t, r), 40)
		require.NoError(t, r.Close())
	}
	assert.Positive(t, c.MemoryUsage())
	_, cached := c.Store().(*blobstore.CachingStore)
	assert.True(t, cached)
}
