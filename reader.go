package arraystream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hupe1980/arraystream/internal/array"
	"github.com/hupe1980/arraystream/internal/condition"
	"github.com/hupe1980/arraystream/internal/points"
)

// Partition selects part Index of Count. Readers given partitions 0..Count-1
// of the same coordinates together read every cell exactly once. Part k of
// m coordinates holds the coordinates ranked [k*m/Count, (k+1)*m/Count) in
// ascending order.
type Partition = points.Partition

// ReaderState is the lifecycle state of a Reader.
type ReaderState int

const (
	// ReaderCreated accepts configuration calls.
	ReaderCreated ReaderState = iota
	// ReaderSubmitted has a validated query and an open cursor.
	ReaderSubmitted
	// ReaderDraining is reading or failed its last read.
	ReaderDraining
	// ReaderBatchReady returned a batch from its last read.
	ReaderBatchReady
	// ReaderExhausted has returned every batch.
	ReaderExhausted
	// ReaderClosed released its resources.
	ReaderClosed
)

func (s ReaderState) String() string {
	switch s {
	case ReaderCreated:
		return "created"
	case ReaderSubmitted:
		return "submitted"
	case ReaderDraining:
		return "draining"
	case ReaderBatchReady:
		return "batch-ready"
	case ReaderExhausted:
		return "exhausted"
	case ReaderClosed:
		return "closed"
	}
	return fmt.Sprintf("ReaderState(%d)", int(s))
}

type dimPartition struct {
	dim string
	p   Partition
}

// Reader reads the result of one query against one array in batches.
//
// A Reader moves Created → Submitted → Draining ⇄ BatchReady → Exhausted
// and ends Closed. Its methods are safe for concurrent use, though a
// Reader is meant to be driven by one goroutine.
type Reader struct {
	mu sync.Mutex

	ctx     *Context
	uri     string
	name    string
	opts    readerOptions
	config  PlatformConfig
	logger  *Logger
	metrics MetricsCollector

	arr        *array.Array
	points     map[string]*points.Set
	ranges     map[string]*points.RangeSet
	partitions []dimPartition

	state    ReaderState
	cursor   *array.Cursor
	schema   *arrow.Schema
	reserved int64
	complete bool
	err      error
	batches  int
	rows     int64
}

// NewReader opens the array at uri for reading. The array snapshot is
// fixed at this call.
func (c *Context) NewReader(ctx context.Context, uri string, optFns ...ReaderOption) (*Reader, error) {
	var o readerOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.name == "" {
		o.name = uri
	}

	cfg, err := c.config.Merge(o.config)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = c.logger
	}
	logger = logger.WithReader(o.name, uri)

	arr, err := array.Open(ctx, c.store, uri, array.ModeRead, c.arrayOptions(cfg))
	if err != nil {
		err = translateError(err, uri, "open")
		logger.ErrorContext(ctx, "open failed", "error", err)
		return nil, err
	}

	return &Reader{
		ctx:     c,
		uri:     uri,
		name:    o.name,
		opts:    o,
		config:  cfg,
		logger:  logger,
		metrics: c.metrics,
		arr:     arr,
		points:  make(map[string]*points.Set),
		ranges:  make(map[string]*points.RangeSet),
		state:   ReaderCreated,
	}, nil
}

// Name returns the reader name.
func (r *Reader) Name() string { return r.name }

// URI returns the array URI.
func (r *Reader) URI() string { return r.uri }

// State returns the lifecycle state.
func (r *Reader) State() ReaderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error of the last failed read, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Schema returns the schema of result batches, or nil before Submit.
func (r *Reader) Schema() *arrow.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schema
}

// NonEmptyDomain returns the bounds of the stored coordinates of dim.
func (r *Reader) NonEmptyDomain(dim string) (lo, hi int64, ok bool, err error) {
	bounds, ok, err := r.arr.NonEmptyDomain(dim)
	if err != nil {
		return 0, 0, false, translateError(err, r.uri, "")
	}
	return bounds[0], bounds[1], ok, nil
}

// SetDimPoints restricts dim to values. Duplicates are ignored. An optional
// partition keeps one positional part of the distinct values. A later call
// for the same dim replaces both.
func (r *Reader) SetDimPoints(dim string, values []int64, partition ...Partition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReaderCreated {
		return fmt.Errorf("%w: SetDimPoints in state %s", ErrReaderState, r.state)
	}
	r.points[dim] = points.NewSet(values)
	r.setPartitions(dim, partition)
	return nil
}

// SetDimRanges restricts dim to the union of inclusive ranges. An optional
// partition keeps one part by cumulative coordinate count.
func (r *Reader) SetDimRanges(dim string, ranges [][2]int64, partition ...Partition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReaderCreated {
		return fmt.Errorf("%w: SetDimRanges in state %s", ErrReaderState, r.state)
	}
	rs, err := points.NewRangeSet(ranges)
	if err != nil {
		return translateError(err, r.uri, "")
	}
	r.ranges[dim] = rs
	r.setPartitions(dim, partition)
	return nil
}

// SetDimPartition keeps one positional part of dim's coordinates: its
// points or ranges when set, its non-empty domain otherwise.
func (r *Reader) SetDimPartition(dim string, p Partition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReaderCreated {
		return fmt.Errorf("%w: SetDimPartition in state %s", ErrReaderState, r.state)
	}
	r.setPartitions(dim, []Partition{p})
	return nil
}

// setPartitions replaces the partitions of dim with ps.
func (r *Reader) setPartitions(dim string, ps []Partition) {
	kept := r.partitions[:0]
	for _, dp := range r.partitions {
		if dp.dim != dim {
			kept = append(kept, dp)
		}
	}
	r.partitions = kept
	for _, p := range ps {
		r.partitions = append(r.partitions, dimPartition{dim: dim, p: p})
	}
}

// Submit validates the query, reserves the read buffer and opens the
// cursor. Invalid queries fail here with ErrInvalidQuery.
func (r *Reader) Submit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != ReaderCreated {
		return fmt.Errorf("%w: Submit in state %s", ErrReaderState, r.state)
	}

	q, err := r.buildQuery()
	if err != nil {
		r.logger.LogSubmit(ctx, 0, 0, err)
		return err
	}

	budget := r.config.InitBufferBytes
	if err := r.ctx.resources.ReserveMemory(budget); err != nil {
		err = translateError(err, r.uri, "submit")
		r.logger.LogSubmit(ctx, 0, budget, err)
		return err
	}

	cur, err := r.arr.Query(ctx, q)
	if err != nil {
		r.ctx.resources.ReleaseMemory(budget)
		err = translateError(err, r.uri, "submit")
		r.logger.LogSubmit(ctx, 0, budget, err)
		return err
	}

	r.reserved = budget
	r.cursor = cur
	r.schema = cur.Schema()
	r.state = ReaderSubmitted
	r.logger.LogSubmit(ctx, cur.Fragments(), budget, nil)
	return nil
}

func (r *Reader) buildQuery() (array.Query, error) {
	schema := r.arr.Schema()
	invalid := func(format string, args ...any) error {
		return &ErrInvalidQuery{Reason: fmt.Sprintf(format, args...)}
	}

	q := array.Query{
		Columns: r.opts.columns,
		Points:  r.points,
		Ranges:  r.ranges,
	}

	for dim := range r.points {
		if _, ok := schema.Dimension(dim); !ok {
			return q, invalid("unknown dimension %q", dim)
		}
	}
	for dim := range r.ranges {
		if _, ok := schema.Dimension(dim); !ok {
			return q, invalid("unknown dimension %q", dim)
		}
	}

	switch len(r.partitions) {
	case 0:
	case 1:
		dp := r.partitions[0]
		if _, ok := schema.Dimension(dp.dim); !ok {
			return q, invalid("unknown dimension %q", dp.dim)
		}
		if err := dp.p.Validate(); err != nil {
			return q, translateError(err, r.uri, "")
		}
		q.Partition = &array.DimPartition{Dim: dp.dim, Partition: dp.p}
	default:
		return q, invalid("%d partitions given, at most one is allowed", len(r.partitions))
	}

	if src := r.opts.condition; src != "" {
		expr, err := condition.Parse(src)
		if err != nil {
			return q, translateError(err, r.uri, "")
		}
		if err := expr.Validate(schema.ArrowSchema()); err != nil {
			return q, translateError(err, r.uri, "")
		}
		q.Condition = expr
	}
	return q, nil
}

// ReadNext returns the next batch. ok is false, with a nil error, once
// results are exhausted, and stays so on later calls. A failed read leaves
// the Reader Draining with Err set; it may be retried or closed.
//
// The caller owns the returned record and must release it.
func (r *Reader) ReadNext(ctx context.Context) (rec arrow.Record, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case ReaderCreated:
		return nil, false, fmt.Errorf("%w: ReadNext before Submit", ErrReaderState)
	case ReaderClosed:
		return nil, false, ErrClosed
	case ReaderExhausted:
		return nil, false, nil
	}

	r.state = ReaderDraining
	start := time.Now()
	rec, ok, err = r.cursor.NextBatch(ctx)
	if err != nil {
		r.err = translateError(err, r.uri, "read")
		r.metrics.RecordBatch(0, time.Since(start), r.err)
		r.logger.LogBatch(ctx, 0, false, r.err)
		return nil, false, r.err
	}
	r.err = nil

	if !ok {
		r.state = ReaderExhausted
		r.complete = true
		r.logger.LogExhausted(ctx, r.batches, r.rows)
		return nil, false, nil
	}

	r.state = ReaderBatchReady
	r.complete = r.cursor.IsComplete()
	r.batches++
	r.rows += rec.NumRows()
	r.metrics.RecordBatch(rec.NumRows(), time.Since(start), nil)
	r.logger.LogBatch(ctx, rec.NumRows(), r.complete, nil)
	return rec, true, nil
}

// ResultsComplete reports whether the most recent batch completed the
// query. It is false when the read buffer truncated the results and more
// batches follow.
func (r *Reader) ResultsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

// Close releases the cursor and the buffer reservation. It is idempotent
// and valid in every state.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == ReaderClosed {
		return nil
	}
	r.state = ReaderClosed

	var firstErr error
	if r.cursor != nil {
		if err := r.cursor.Close(); err != nil {
			firstErr = err
		}
		r.cursor = nil
	}
	if err := r.arr.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if r.reserved > 0 {
		r.ctx.resources.ReleaseMemory(r.reserved)
		r.reserved = 0
	}
	return firstErr
}
