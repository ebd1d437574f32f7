package prommetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream"
	"github.com/hupe1980/arraystream/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New(prometheus.NewRegistry(), "")

	c.RecordIndexBuild(100, time.Millisecond, nil)
	c.RecordIndexBuild(5, time.Millisecond, errors.New("dup"))
	c.RecordLookup(10, 3, time.Microsecond)
	c.RecordBatch(40, time.Millisecond, nil)
	c.RecordBatch(0, time.Millisecond, errors.New("io"))
	c.RecordStream(2, 40, time.Second, nil)

	require.Equal(t, float64(100), promtestutil.ToFloat64(c.indexKeys))
	require.Equal(t, float64(10), promtestutil.ToFloat64(c.lookupValues))
	require.Equal(t, float64(3), promtestutil.ToFloat64(c.lookupMissing))
	require.Equal(t, float64(1), promtestutil.ToFloat64(c.batches.WithLabelValues("success")))
	require.Equal(t, float64(1), promtestutil.ToFloat64(c.batches.WithLabelValues("error")))
	require.Equal(t, float64(40), promtestutil.ToFloat64(c.rows.WithLabelValues("reader")))
	require.Equal(t, float64(40), promtestutil.ToFloat64(c.rows.WithLabelValues("stream")))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "soma")

	require.Panics(t, func() { New(reg, "soma") })

	other := prometheus.NewRegistry()
	c := New(other, "soma")
	c.RecordStream(1, 0, 0, nil)
	c.RecordBatch(0, 0, nil)

	families, err := other.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["soma_operation_duration_seconds"])
	require.True(t, names["soma_stream_readers"])
	require.True(t, names["soma_batches_total"])
	require.True(t, names["soma_index_keys_total"])
}

func TestWithContext(t *testing.T) {
	ctx := context.Background()
	c := New(prometheus.NewRegistry(), "")

	sc, err := arraystream.NewContext(arraystream.WithMetricsCollector(c))
	require.NoError(t, err)
	require.NoError(t, sc.CreateArray(ctx, "obs", testutil.ObsSchema()))

	rec := testutil.ObsRecord(memory.DefaultAllocator, []int64{0, 1, 2}, []string{"b", "t", "b"}, []int32{10, 20, 30})
	defer rec.Release()
	require.NoError(t, sc.WriteArray(ctx, "obs", rec))

	r, err := sc.NewReader(ctx, "obs", arraystream.WithQueryCondition("cell_type == 'b'"))
	require.NoError(t, err)
	res, err := arraystream.NewCoordinator([]*arraystream.Reader{r}).Run(ctx)
	require.NoError(t, err)
	defer res.Release()

	require.Equal(t, float64(2), promtestutil.ToFloat64(c.rows.WithLabelValues("stream")))
	require.Equal(t, float64(2), promtestutil.ToFloat64(c.rows.WithLabelValues("reader")))

	idx, err := arraystream.BuildIndex([]int64{7, 3, 9}, arraystream.WithIndexMetrics(c))
	require.NoError(t, err)
	idx.GetPositions([]int64{9, 4})
	require.Equal(t, float64(3), promtestutil.ToFloat64(c.indexKeys))
	require.Equal(t, float64(1), promtestutil.ToFloat64(c.lookupMissing))
}
