package arraystream

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/codec"
)

type options struct {
	store            blobstore.BlobStore
	config           map[string]string
	blockCacheBytes  int64
	allocator        memory.Allocator
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Context.
type Option func(*options)

// WithBlobStore sets the store arrays live in. The default is an in-memory
// store.
func WithBlobStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithConfig sets the platform configuration. Unknown keys are passed to
// the array store.
//
// Example:
//
//	c, _ := arraystream.NewContext(arraystream.WithConfig(map[string]string{
//	    "soma.init_buffer_bytes": "16777216",
//	    "sm.io_concurrency_level": "4",
//	    "soma.memory_budget_bytes": "1073741824",
//	}))
func WithConfig(m map[string]string) Option {
	return func(o *options) {
		o.config = m
	}
}

// WithBlockCache caches fetched blob blocks up to bytes, shared by every
// reader of the Context. Cached bytes count against the memory budget.
func WithBlockCache(bytes int64) Option {
	return func(o *options) {
		o.blockCacheBytes = bytes
	}
}

// WithAllocator sets the allocator backing result batches.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		o.allocator = mem
	}
}

// WithCodec configures the codec of manifests written through the Context.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &arraystream.BasicMetricsCollector{}
//	c, _ := arraystream.NewContext(arraystream.WithMetricsCollector(metrics))
//	// ... read ...
//	stats := metrics.GetStats()
//	fmt.Printf("Batches: %d, Rows: %d\n", stats.BatchCount, stats.BatchRows)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging. An explicit logger takes precedence over
// config.logging_level.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		allocator:        memory.DefaultAllocator,
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}

type readerOptions struct {
	name      string
	columns   []string
	condition string
	config    map[string]string
	logger    *Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

// WithName names the reader in logs. The default is the array URI.
func WithName(name string) ReaderOption {
	return func(o *readerOptions) {
		o.name = name
	}
}

// WithColumnNames selects the output columns in order. The default is all
// columns, dimensions first.
func WithColumnNames(columns ...string) ReaderOption {
	return func(o *readerOptions) {
		o.columns = columns
	}
}

// WithQueryCondition filters cells by a condition such as
// "cell_type == 'macrophage' and n_genes > 500".
func WithQueryCondition(cond string) ReaderOption {
	return func(o *readerOptions) {
		o.condition = cond
	}
}

// WithPlatformConfig overlays reader-level configuration keys on the
// Context configuration. soma.memory_budget_bytes and soma.io_bytes_per_sec
// are Context-wide and ignored here.
func WithPlatformConfig(m map[string]string) ReaderOption {
	return func(o *readerOptions) {
		o.config = m
	}
}

// WithReaderLogger overrides the Context logger for one reader.
func WithReaderLogger(logger *Logger) ReaderOption {
	return func(o *readerOptions) {
		o.logger = logger
	}
}

type indexOptions struct {
	threadCount    int
	threadCountSet bool
	context        *Context
	logger         *Logger
	metrics        MetricsCollector
}

// IndexOption configures BuildIndex.
type IndexOption func(*indexOptions)

// WithThreadCount sets the index worker count explicitly. n must be at
// least one.
func WithThreadCount(n int) IndexOption {
	return func(o *indexOptions) {
		o.threadCount = n
		o.threadCountSet = true
	}
}

// WithIndexContext derives the thread count, logger and metrics from c.
func WithIndexContext(c *Context) IndexOption {
	return func(o *indexOptions) {
		o.context = c
	}
}

// WithIndexLogger sets the logger of index construction.
func WithIndexLogger(logger *Logger) IndexOption {
	return func(o *indexOptions) {
		o.logger = logger
	}
}

// WithIndexMetrics sets the metrics collector of an index.
func WithIndexMetrics(mc MetricsCollector) IndexOption {
	return func(o *indexOptions) {
		o.metrics = mc
	}
}

type coordinatorOptions struct {
	prefetch int
	logger   *Logger
	metrics  MetricsCollector
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorOptions)

// WithPrefetch sets how many batches each stream may read ahead of the
// consumer. Values below one are treated as one.
func WithPrefetch(n int) CoordinatorOption {
	return func(o *coordinatorOptions) {
		o.prefetch = n
	}
}

// WithCoordinatorLogger sets the logger of a Coordinator.
func WithCoordinatorLogger(logger *Logger) CoordinatorOption {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithCoordinatorMetrics sets the metrics collector of a Coordinator.
func WithCoordinatorMetrics(mc MetricsCollector) CoordinatorOption {
	return func(o *coordinatorOptions) {
		o.metrics = mc
	}
}
