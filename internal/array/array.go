package array

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/codec"
	"github.com/hupe1980/arraystream/internal/resource"
	"golang.org/x/sync/errgroup"
)

// Mode is the mode an array is opened in.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

const (
	// DefaultBufferBytes is the default result budget of one batch.
	DefaultBufferBytes = 64 << 20
	// DefaultIOConcurrency is the default number of parallel fragment fetches.
	DefaultIOConcurrency = 10
)

// Options configures an opened array.
type Options struct {
	// BufferBytes bounds the estimated size of one result batch.
	BufferBytes int64
	// IOConcurrency bounds parallel fragment fetches and block encodes.
	IOConcurrency int
	// Extra is recorded in manifests written through this handle.
	Extra map[string]string
	// Resources gates fetches and fetched bytes. May be nil.
	Resources *resource.Controller
	// Allocator backs result batches. Defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
	// Codec encodes metadata written through this handle.
	Codec codec.Codec
}

func (o Options) withDefaults() Options {
	if o.BufferBytes <= 0 {
		o.BufferBytes = DefaultBufferBytes
	}
	if o.IOConcurrency <= 0 {
		o.IOConcurrency = DefaultIOConcurrency
	}
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	return o
}

// Array is an open handle to a stored array. Read handles see the manifest
// committed at Open.
type Array struct {
	store  blobstore.BlobStore
	uri    string
	mode   Mode
	opts   Options
	schema *Schema

	mu       sync.RWMutex
	manifest Manifest
	closed   atomic.Bool
}

// Create stores a new, empty array at uri.
func Create(ctx context.Context, store blobstore.BlobStore, uri string, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	name := path.Join(uri, schemaName)
	b, err := store.Open(ctx, name)
	if err == nil {
		_ = b.Close()
		return fmt.Errorf("%w: %s", ErrArrayExists, uri)
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		return err
	}

	data, err := encodeMeta(codec.Default, &schema)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// Open opens the array at uri.
func Open(ctx context.Context, store blobstore.BlobStore, uri string, mode Mode, opts Options) (*Array, error) {
	schema, err := loadSchema(ctx, store, uri)
	if err != nil {
		return nil, err
	}
	m, err := loadManifest(ctx, store, uri)
	if err != nil {
		return nil, err
	}
	return &Array{
		store:    store,
		uri:      uri,
		mode:     mode,
		opts:     opts.withDefaults(),
		schema:   schema,
		manifest: m,
	}, nil
}

// URI returns the array location.
func (a *Array) URI() string { return a.uri }

// Mode returns the open mode.
func (a *Array) Mode() Mode { return a.mode }

// Schema returns the array schema. Callers must not modify it.
func (a *Array) Schema() *Schema { return a.schema }

// Version returns the manifest version this handle sees.
func (a *Array) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest.Version
}

// Fragments returns the fragments of the visible manifest, oldest first.
func (a *Array) Fragments() []FragmentInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]FragmentInfo(nil), a.manifest.Fragments...)
}

// NNZ returns the number of stored cells.
func (a *Array) NNZ() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest.NNZ()
}

// NonEmptyDomain returns the inclusive bounds of the stored coordinates of
// dim. ok is false for an empty array.
func (a *Array) NonEmptyDomain(dim string) (bounds [2]int64, ok bool, err error) {
	idx, err := a.dimIndex(dim)
	if err != nil {
		return bounds, false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, f := range a.manifest.Fragments {
		b := f.Bounds[idx]
		if !ok {
			bounds, ok = b, true
			continue
		}
		bounds[0] = min(bounds[0], b[0])
		bounds[1] = max(bounds[1], b[1])
	}
	return bounds, ok, nil
}

func (a *Array) dimIndex(name string) (int, error) {
	for i, d := range a.schema.Dimensions {
		if d.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDimension, name)
}

// Write stores rec as a new fragment and commits it. rec must carry every
// schema column by name. A record without rows is a no-op.
func (a *Array) Write(ctx context.Context, rec arrow.Record) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if a.mode != ModeWrite {
		return fmt.Errorf("%w: write on %s handle", ErrMode, a.mode)
	}
	if rec.NumRows() == 0 {
		return nil
	}
	if int(rec.NumCols()) != a.schema.NumColumns() {
		return fmt.Errorf("%w: record has %d columns, schema has %d", ErrSchemaMismatch, rec.NumCols(), a.schema.NumColumns())
	}

	cols, err := a.recordColumns(rec)
	if err != nil {
		return err
	}
	bounds, err := a.dimBounds(cols)
	if err != nil {
		return err
	}

	bc, _ := a.schema.Compression.codec()
	blocks := make([][]byte, len(cols))

	var g errgroup.Group
	g.SetLimit(a.opts.IOConcurrency)
	for i, col := range cols {
		typ := Int64
		if i >= len(a.schema.Dimensions) {
			typ = a.schema.Attributes[i-len(a.schema.Dimensions)].Type
		}
		g.Go(func() error {
			payload, err := encodeColumn(col, typ)
			if err != nil {
				return err
			}
			blocks[i], err = encodeBlock(payload, bc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now()
	data := encodeFragment(uint64(rec.NumRows()), bc, blocks)
	info := FragmentInfo{
		Name:      newFragmentName(now),
		Rows:      uint64(rec.NumRows()),
		Size:      int64(len(data)),
		Bounds:    bounds,
		Timestamp: now.UnixNano(),
	}
	if err := a.store.Put(ctx, path.Join(a.uri, fragmentsDir, info.Name), data); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.manifest.clone()
	next.Version++
	next.Fragments = append(next.Fragments, info)
	if len(a.opts.Extra) > 0 {
		next.Config = maps.Clone(a.opts.Extra)
	}
	if err := commitManifest(ctx, a.store, a.opts.Codec, a.uri, &next); err != nil {
		return err
	}
	a.manifest = next
	return nil
}

// recordColumns returns the columns of rec in schema order.
func (a *Array) recordColumns(rec arrow.Record) ([]arrow.Array, error) {
	names := a.schema.ColumnNames()
	cols := make([]arrow.Array, len(names))
	for i, name := range names {
		idx := rec.Schema().FieldIndices(name)
		if len(idx) != 1 {
			return nil, fmt.Errorf("%w: column %q missing", ErrSchemaMismatch, name)
		}
		col := rec.Column(idx[0])
		_, _, nullable, _ := a.schema.column(name)
		if !nullable && col.NullN() > 0 {
			return nil, fmt.Errorf("%w: column %q is not nullable", ErrSchemaMismatch, name)
		}
		cols[i] = col
	}
	return cols, nil
}

func (a *Array) dimBounds(cols []arrow.Array) ([][2]int64, error) {
	bounds := make([][2]int64, len(a.schema.Dimensions))
	for i, d := range a.schema.Dimensions {
		coords, ok := cols[i].(*array.Int64)
		if !ok {
			return nil, typeError(cols[i], Int64)
		}
		vals := coords.Int64Values()
		lo, hi := vals[0], vals[0]
		for _, v := range vals {
			if v < d.Domain[0] || v > d.Domain[1] {
				return nil, fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfDomain, d.Name, v, d.Domain[0], d.Domain[1])
			}
			lo, hi = min(lo, v), max(hi, v)
		}
		bounds[i] = [2]int64{lo, hi}
	}
	return bounds, nil
}

// Close releases the handle. Open cursors stay usable until closed.
func (a *Array) Close() error {
	a.closed.Store(true)
	return nil
}
