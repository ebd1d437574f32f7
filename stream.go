package arraystream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/sync/errgroup"
)

// Coordinator drains several Readers concurrently and hands their batches
// to one consumer.
//
// Each Reader runs in its own goroutine, reading ahead into a bounded
// buffer. The consumer visits streams in fixed round-robin order, taking one
// batch from each live stream per round and skipping exhausted ones, until
// every stream is exhausted.
type Coordinator struct {
	readers  []*Reader
	prefetch int
	logger   *Logger
	metrics  MetricsCollector
}

// NewCoordinator creates a Coordinator over readers. Stream index i refers
// to readers[i].
func NewCoordinator(readers []*Reader, optFns ...CoordinatorOption) *Coordinator {
	o := coordinatorOptions{prefetch: 1}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.prefetch < 1 {
		o.prefetch = 1
	}
	if o.logger == nil {
		o.logger = NoopLogger()
		if len(readers) > 0 {
			o.logger = readers[0].ctx.logger
		}
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
		if len(readers) > 0 {
			o.metrics = readers[0].ctx.metrics
		}
	}
	return &Coordinator{
		readers:  readers,
		prefetch: o.prefetch,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Stream calls fn with every batch of every reader. The record is released
// when fn returns; fn must Retain it to keep it.
//
// Readers still in ReaderCreated are submitted first. The first error, from
// a reader or from fn, cancels every stream and is returned. Every reader is
// closed when Stream returns.
func (c *Coordinator) Stream(ctx context.Context, fn func(stream int, rec arrow.Record) error) (err error) {
	start := time.Now()
	var (
		batches int
		rows    int64
	)
	defer func() {
		for _, r := range c.readers {
			if cerr := r.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		c.metrics.RecordStream(len(c.readers), rows, time.Since(start), err)
		c.logger.LogStream(ctx, len(c.readers), batches, rows, err)
	}()

	for i, r := range c.readers {
		if r.State() != ReaderCreated {
			continue
		}
		if err := r.Submit(ctx); err != nil {
			return fmt.Errorf("stream %d: %w", i, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	chans := make([]chan arrow.Record, len(c.readers))
	for i, r := range c.readers {
		ch := make(chan arrow.Record, c.prefetch)
		chans[i] = ch
		g.Go(func() error {
			defer close(ch)
			for {
				rec, ok, err := r.ReadNext(gctx)
				if err != nil {
					c.logger.WithStream(i).DebugContext(gctx, "stream stopped", "error", err)
					return fmt.Errorf("stream %d: %w", i, err)
				}
				if !ok {
					return nil
				}
				select {
				case ch <- rec:
				case <-gctx.Done():
					rec.Release()
					return gctx.Err()
				}
			}
		})
	}

	fnErr := c.collect(gctx, chans, func(stream int, rec arrow.Record) error {
		batches++
		rows += rec.NumRows()
		return fn(stream, rec)
	})

	cancel()
	for _, ch := range chans {
		for rec := range ch {
			rec.Release()
		}
	}
	werr := g.Wait()

	if fnErr != nil {
		return fnErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return werr
}

// collect visits the streams round-robin until all are closed, gctx is
// done, or fn fails.
func (c *Coordinator) collect(gctx context.Context, chans []chan arrow.Record, fn func(int, arrow.Record) error) error {
	live := make([]bool, len(chans))
	for i := range live {
		live[i] = true
	}

	for {
		progressed := false
		for i, ch := range chans {
			if !live[i] {
				continue
			}
			if gctx.Err() != nil {
				return nil
			}
			rec, ok := <-ch
			if !ok {
				live[i] = false
				continue
			}
			progressed = true
			err := fn(i, rec)
			rec.Release()
			if err != nil {
				return err
			}
		}
		if !progressed {
			return nil
		}
	}
}

// Result holds the batches of a Coordinator run in arrival order.
type Result struct {
	Batches []arrow.Record
	// Streams holds the stream index of each batch.
	Streams []int
	Rows    int64
	// PerStream holds the row count of each stream.
	PerStream []int64
	schema    *arrow.Schema
}

// Run streams every reader and keeps all batches. The caller must release
// the Result.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	res := &Result{PerStream: make([]int64, len(c.readers))}
	err := c.Stream(ctx, func(stream int, rec arrow.Record) error {
		rec.Retain()
		res.Batches = append(res.Batches, rec)
		res.Streams = append(res.Streams, stream)
		res.Rows += rec.NumRows()
		res.PerStream[stream] += rec.NumRows()
		return nil
	})
	if err != nil {
		res.Release()
		return nil, err
	}
	for _, r := range c.readers {
		if s := r.Schema(); s != nil {
			res.schema = s
			break
		}
	}
	return res, nil
}

// Table assembles the batches into one table. All batches must share a
// schema.
func (r *Result) Table() (arrow.Table, error) {
	schema := r.schema
	if len(r.Batches) > 0 {
		schema = r.Batches[0].Schema()
	}
	if schema == nil {
		return nil, errors.New("arraystream: result has no schema")
	}
	for i, rec := range r.Batches {
		if !rec.Schema().Equal(schema) {
			return nil, fmt.Errorf("arraystream: batch %d schema %s differs from %s", i, rec.Schema(), schema)
		}
	}
	return array.NewTableFromRecords(schema, r.Batches), nil
}

// Release releases every batch. It is idempotent.
func (r *Result) Release() {
	for _, rec := range r.Batches {
		rec.Release()
	}
	r.Batches = nil
}
