package arraystream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/arraystream/internal/intindex"
)

// NotFound is the position GetPositions reports for a value that is not a
// key.
const NotFound = intindex.NotFound

// DefaultThreadCount is the index thread count when neither WithThreadCount
// nor WithIndexContext is given.
const DefaultThreadCount = 4

// Index maps int64 keys to their positions in the key array it was built
// from. An Index is immutable and safe for concurrent lookups.
type Index struct {
	ki      *intindex.KeyIndex
	metrics MetricsCollector
}

// BuildIndex indexes keys, which must be unique.
//
// The thread count is, in order of precedence: WithThreadCount; half of
// sm.compute_concurrency_level of the WithIndexContext Context, at least
// one; DefaultThreadCount.
//
// Example:
//
//	idx, err := arraystream.BuildIndex(obsJoinIDs, arraystream.WithIndexContext(c))
//	rows := idx.GetPositions(batchJoinIDs) // -1 where absent
func BuildIndex(keys []int64, optFns ...IndexOption) (*Index, error) {
	var o indexOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	threads := DefaultThreadCount
	logger, metrics := o.logger, o.metrics
	if c := o.context; c != nil {
		threads = c.config.indexThreads()
		if logger == nil {
			logger = c.logger
		}
		if metrics == nil {
			metrics = c.metrics
		}
	}
	if o.threadCountSet {
		threads = o.threadCount
	}
	if logger == nil {
		logger = NoopLogger()
	}
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}

	start := time.Now()
	ki, err := intindex.Build(keys, threads)
	elapsed := time.Since(start)
	if errors.Is(err, intindex.ErrInvalidThreadCount) {
		err = &ErrInvalidThreadCount{ThreadCount: threads, cause: err}
	}
	err = translateError(err, "", "")

	logger.LogIndexBuild(context.Background(), len(keys), threads, elapsed, err)
	metrics.RecordIndexBuild(len(keys), elapsed, err)
	if err != nil {
		return nil, err
	}
	return &Index{ki: ki, metrics: metrics}, nil
}

// Len returns the number of keys.
func (idx *Index) Len() int { return idx.ki.Len() }

// ThreadCount returns the number of workers lookups use.
func (idx *Index) ThreadCount() int { return idx.ki.ThreadCount() }

// GetPositions returns, for every value, its key position or NotFound.
// Values may repeat and need not be keys.
func (idx *Index) GetPositions(values []int64) []int64 {
	out := make([]int64, len(values))
	idx.lookup(out, values)
	return out
}

// GetPositionsInto writes the positions of values into dst.
func (idx *Index) GetPositionsInto(dst, values []int64) error {
	if len(dst) != len(values) {
		return fmt.Errorf("%w: dst has %d elements, values %d", ErrLengthMismatch, len(dst), len(values))
	}
	idx.lookup(dst, values)
	return nil
}

func (idx *Index) lookup(dst, values []int64) {
	start := time.Now()
	idx.ki.LookupInto(dst, values)

	missing := 0
	for _, p := range dst {
		if p == NotFound {
			missing++
		}
	}
	idx.metrics.RecordLookup(len(values), missing, time.Since(start))
}

// Position returns the position of v. ok is false when v is not a key,
// which keeps absent values distinct from any position.
func (idx *Index) Position(v int64) (pos int64, ok bool) {
	return idx.ki.Position(v)
}

// GetPositionsArray looks up every value of an Int64 column. Null values
// map to NotFound. The caller must release the result.
func (idx *Index) GetPositionsArray(mem memory.Allocator, col arrow.Array) (*array.Int64, error) {
	ints, ok := col.(*array.Int64)
	if !ok {
		return nil, &ErrInvalidQuery{Reason: fmt.Sprintf("cannot look up column of type %s", col.DataType())}
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	pos := make([]int64, ints.Len())
	idx.lookup(pos, ints.Int64Values())
	for i := range pos {
		if ints.IsNull(i) {
			pos[i] = NotFound
		}
	}

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(pos, nil)
	return b.NewInt64Array(), nil
}
