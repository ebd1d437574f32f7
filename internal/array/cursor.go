package array

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/internal/condition"
	"github.com/hupe1980/arraystream/internal/points"
	"golang.org/x/sync/errgroup"
)

// Cursor iterates the result batches of a Query. It is not safe for
// concurrent use.
type Cursor struct {
	arr      *Array
	schema   *arrow.Schema
	out      []int
	need     map[int]bool
	restrict [][]points.Restriction
	cond     *condition.Expr
	frags    []FragmentInfo

	next  int
	ready []*loadedFragment
	cur   *loadedFragment

	complete bool
	done     bool
	closed   bool
	deferred error
}

// loadedFragment holds the decoded columns of a fragment and the rows that
// pass the query, consumed from pos.
type loadedFragment struct {
	cols map[int]arrow.Array
	rows []int
	pos  int
}

func (l *loadedFragment) pending() bool { return l.pos < len(l.rows) }

func (l *loadedFragment) release() {
	for _, c := range l.cols {
		c.Release()
	}
	l.cols = nil
}

// Schema returns the schema of result batches.
func (c *Cursor) Schema() *arrow.Schema { return c.schema }

// Fragments returns how many fragments survived pruning.
func (c *Cursor) Fragments() int { return len(c.frags) }

// IsComplete reports whether the last batch returned by NextBatch ended the
// query.
func (c *Cursor) IsComplete() bool { return c.complete }

// NextBatch returns the next batch of at most BufferBytes estimated bytes.
// ok is false once the query is exhausted. Batches are never empty; the
// caller owns and must release each one.
func (c *Cursor) NextBatch(ctx context.Context) (rec arrow.Record, ok bool, err error) {
	if c.closed {
		return nil, false, ErrClosed
	}
	if err := c.deferred; err != nil {
		c.deferred = nil
		return nil, false, err
	}
	if c.done {
		return nil, false, nil
	}
	if err := c.advance(ctx); err != nil {
		return nil, false, err
	}
	if c.cur == nil {
		c.done, c.complete = true, true
		return nil, false, nil
	}

	budget := c.arr.opts.BufferBytes
	builders := make([]array.Builder, len(c.out))
	for i, f := range c.schema.Fields() {
		builders[i] = array.NewBuilder(c.arr.opts.Allocator, f.Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	var (
		used int64
		rows int
	)
fill:
	for c.cur != nil {
		l := c.cur
		for l.pending() {
			r := l.rows[l.pos]
			size := int64(0)
			for _, idx := range c.out {
				size += int64(rowSize(l.cols[idx], r))
			}
			if used+size > budget {
				if rows == 0 {
					return nil, false, fmt.Errorf("%w: row needs %d bytes, budget is %d", ErrBufferTooSmall, size, budget)
				}
				break fill
			}
			for i, idx := range c.out {
				appendRow(builders[i], l.cols[idx], r)
			}
			used += size
			rows++
			l.pos++
		}
		if err := c.advance(ctx); err != nil {
			// Hand out what was gathered; the error surfaces on the next call.
			c.deferred = err
			break
		}
	}

	c.complete = c.cur == nil && c.deferred == nil
	c.done = c.complete

	arrs := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrs[i] = b.NewArray()
	}
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()
	return array.NewRecord(c.schema, arrs, int64(rows)), true, nil
}

// advance makes cur a fragment with pending rows, or nil when none remain.
func (c *Cursor) advance(ctx context.Context) error {
	for c.cur == nil || !c.cur.pending() {
		if c.cur != nil {
			c.cur.release()
			c.cur = nil
		}
		if len(c.ready) == 0 {
			if c.next >= len(c.frags) {
				return nil
			}
			if err := c.fetch(ctx); err != nil {
				return err
			}
		}
		c.cur, c.ready = c.ready[0], c.ready[1:]
	}
	return nil
}

// fetch loads the next IOConcurrency fragments in parallel.
func (c *Cursor) fetch(ctx context.Context) error {
	n := min(c.arr.opts.IOConcurrency, len(c.frags)-c.next)
	batch := c.frags[c.next : c.next+n]
	loaded := make([]*loadedFragment, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.arr.opts.IOConcurrency)
	for i := range batch {
		g.Go(func() error {
			l, err := c.load(gctx, &batch[i])
			if err != nil {
				return fmt.Errorf("fragment %s: %w", batch[i].Name, err)
			}
			loaded[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, l := range loaded {
			if l != nil {
				l.release()
			}
		}
		return err
	}

	c.next += n
	c.ready = append(c.ready, loaded...)
	return nil
}

func (c *Cursor) load(ctx context.Context, info *FragmentInfo) (*loadedFragment, error) {
	a := c.arr
	rc := a.opts.Resources
	if err := rc.AcquireFetch(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseFetch()

	blob, err := a.store.Open(ctx, path.Join(a.uri, fragmentsDir, info.Name))
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	ncols := a.schema.NumColumns()
	head, err := readAt(ctx, blob, 0, headerSize(ncols))
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(head, ncols, blob.Size())
	if err != nil {
		return nil, err
	}
	if hdr.rows != info.Rows {
		return nil, fmt.Errorf("%w: fragment has %d rows, manifest says %d", ErrCorrupt, hdr.rows, info.Rows)
	}

	l := &loadedFragment{cols: make(map[int]arrow.Array, len(c.need))}
	names := a.schema.ColumnNames()
	for idx := range c.need {
		ref := hdr.blocks[idx]
		if err := rc.AcquireIO(ctx, int(ref.length)); err != nil {
			l.release()
			return nil, err
		}
		block, err := readAt(ctx, blob, int64(ref.off), int(ref.length))
		if err != nil {
			l.release()
			return nil, err
		}
		payload, err := decodeBlock(block, hdr.codec)
		if err != nil {
			l.release()
			return nil, err
		}
		_, typ, _, _ := a.schema.column(names[idx])
		col, err := decodeColumn(payload, typ, int(hdr.rows))
		if err != nil {
			l.release()
			return nil, err
		}
		l.cols[idx] = col
	}

	if l.rows, err = c.selectRows(l.cols, int(hdr.rows)); err != nil {
		l.release()
		return nil, err
	}
	return l, nil
}

// selectRows returns the rows that satisfy every restriction and the
// condition, in storage order.
func (c *Cursor) selectRows(cols map[int]arrow.Array, n int) ([]int, error) {
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	for dim, rs := range c.restrict {
		if len(rs) == 0 {
			continue
		}
		coords := cols[dim].(*array.Int64).Int64Values()
		for i, v := range coords {
			if !keep[i] {
				continue
			}
			for _, r := range rs {
				if !r.Contains(v) {
					keep[i] = false
					break
				}
			}
		}
	}

	if c.cond != nil {
		names := c.cond.Columns()
		sch, err := c.arr.schema.arrowSchema(names)
		if err != nil {
			return nil, err
		}
		arrs := make([]arrow.Array, len(names))
		for i, name := range names {
			idx, _, _, _ := c.arr.schema.column(name)
			arrs[i] = cols[idx]
		}
		rec := array.NewRecord(sch, arrs, int64(n))
		match, err := c.cond.Eval(rec)
		rec.Release()
		if err != nil {
			return nil, err
		}
		for i := range keep {
			keep[i] = keep[i] && match.Test(uint(i))
		}
	}

	var rows []int
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// Close releases buffered fragments. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cur != nil {
		c.cur.release()
		c.cur = nil
	}
	for _, l := range c.ready {
		l.release()
	}
	c.ready = nil
	return nil
}

func readAt(ctx context.Context, b blobstore.Blob, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	m, err := b.ReadAt(ctx, buf, off)
	if m == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
