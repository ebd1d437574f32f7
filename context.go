package arraystream

import (
	"context"
	"maps"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/codec"
	"github.com/hupe1980/arraystream/internal/array"
	"github.com/hupe1980/arraystream/internal/cache"
	"github.com/hupe1980/arraystream/internal/resource"
)

// Schema types of stored arrays.
type (
	ArraySchema   = array.Schema
	Dimension     = array.Dimension
	Attribute     = array.Attribute
	AttributeType = array.Type
	Compression   = array.Compression
)

// Attribute types.
const (
	TypeInt32   = array.Int32
	TypeInt64   = array.Int64
	TypeFloat32 = array.Float32
	TypeFloat64 = array.Float64
	TypeString  = array.String
	TypeBool    = array.Bool
)

// Fragment compressions.
const (
	CompressionZSTD = array.CompressionZSTD
	CompressionLZ4  = array.CompressionLZ4
	CompressionNone = array.CompressionNone
)

// Context holds what the readers and indexes of one session share: the blob
// store, the platform configuration, the memory budget and the block cache.
// A Context is safe for concurrent use.
type Context struct {
	store     blobstore.BlobStore
	config    PlatformConfig
	resources *resource.Controller
	allocator memory.Allocator
	codec     codec.Codec
	logger    *Logger
	metrics   MetricsCollector
}

// NewContext creates a Context.
//
// Example:
//
//	c, err := arraystream.NewContext(
//	    arraystream.WithBlobStore(blobstore.NewLocalStore("/data/pbmc3k")),
//	    arraystream.WithBlockCache(256<<20),
//	)
func NewContext(optFns ...Option) (*Context, error) {
	o := applyOptions(optFns)

	cfg, err := ParsePlatformConfig(o.config)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = NoopLogger()
		if cfg.LogLevel != nil {
			logger = NewTextLogger(*cfg.LogLevel)
		}
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: cfg.MemoryBudgetBytes,
		MaxFetchers:      int64(cfg.IOConcurrency),
		IOBytesPerSec:    cfg.IOBytesPerSec,
	})

	store := o.store
	if store == nil {
		store = blobstore.NewMemoryStore()
	}
	if o.blockCacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cache.NewShardedLRU(o.blockCacheBytes, rc), blobstore.DefaultCacheBlockSize)
	}

	return &Context{
		store:     store,
		config:    cfg,
		resources: rc,
		allocator: o.allocator,
		codec:     o.codec,
		logger:    logger,
		metrics:   o.metricsCollector,
	}, nil
}

// Config returns a copy of the platform configuration.
func (c *Context) Config() PlatformConfig {
	cfg := c.config
	cfg.Extra = maps.Clone(c.config.Extra)
	return cfg
}

// Store returns the blob store arrays are read from.
func (c *Context) Store() blobstore.BlobStore { return c.store }

// MemoryUsage returns the bytes currently reserved by readers and the block
// cache.
func (c *Context) MemoryUsage() int64 { return c.resources.MemoryUsage() }

// CreateArray stores a new, empty array at uri.
func (c *Context) CreateArray(ctx context.Context, uri string, schema ArraySchema) error {
	return translateError(array.Create(ctx, c.store, uri, schema), uri, "create")
}

// WriteArray appends rec to the array at uri as one fragment.
func (c *Context) WriteArray(ctx context.Context, uri string, rec arrow.Record) error {
	a, err := array.Open(ctx, c.store, uri, array.ModeWrite, c.arrayOptions(c.config))
	if err != nil {
		return translateError(err, uri, "open")
	}
	defer a.Close()

	return translateError(a.Write(ctx, rec), uri, "write")
}

func (c *Context) arrayOptions(cfg PlatformConfig) array.Options {
	return array.Options{
		BufferBytes:   cfg.InitBufferBytes,
		IOConcurrency: cfg.IOConcurrency,
		Extra:         cfg.Extra,
		Resources:     c.resources,
		Allocator:     c.allocator,
		Codec:         c.codec,
	}
}
