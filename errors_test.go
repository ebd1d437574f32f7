package arraystream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/hupe1980/arraystream/internal/array"
	"github.com/hupe1980/arraystream/internal/condition"
	"github.com/hupe1980/arraystream/internal/intindex"
	"github.com/hupe1980/arraystream/internal/points"
	"github.com/hupe1980/arraystream/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil, "u", "read"))

	t.Run("passthrough", func(t *testing.T) {
		for _, err := range []error{
			ErrReaderState,
			ErrClosed,
			context.Canceled,
			fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			&ErrInvalidQuery{Reason: "x"},
			fmt.Errorf("%w: meta", ErrArrayExists),
			fmt.Errorf("%w: no dims", ErrInvalidSchema),
			fmt.Errorf("%w: 3 columns", ErrSchemaMismatch),
			fmt.Errorf("%w: -1", ErrOutOfDomain),
		} {
			assert.Same(t, err, translateError(err, "u", "read"), err.Error())
		}
	})

	t.Run("duplicate key", func(t *testing.T) {
		cause := &intindex.DuplicateKeyError{Key: 7, First: 1, Second: 4}
		var dk *ErrDuplicateKey
		require.True(t, errors.As(translateError(cause, "", ""), &dk))
		assert.Equal(t, int64(7), dk.Key)
		assert.Equal(t, 1, dk.First)
		assert.Equal(t, 4, dk.Second)
	})

	t.Run("invalid query", func(t *testing.T) {
		for _, target := range []error{
			array.ErrUnknownDimension,
			array.ErrUnknownColumn,
			condition.ErrSyntax,
			condition.ErrUnknownColumn,
			condition.ErrTypeMismatch,
			points.ErrInvalidPartition,
			points.ErrInvalidRange,
			points.ErrRangeTooLarge,
		} {
			err := translateError(fmt.Errorf("wrapped: %w", target), "u", "submit")
			var iq *ErrInvalidQuery
			require.True(t, errors.As(err, &iq), target.Error())
			assert.ErrorIs(t, err, target)
		}
	})

	t.Run("resource exhausted", func(t *testing.T) {
		var re *ErrResourceExhausted
		err := translateError(resource.ErrMemoryLimitExceeded, "u", "submit")
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "memory budget", re.Resource)

		err = translateError(array.ErrBufferTooSmall, "u", "read")
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "read buffer", re.Resource)
	})

	t.Run("store unavailable", func(t *testing.T) {
		err := translateError(io.ErrUnexpectedEOF, "s3://bucket/X", "read")
		var su *ErrStoreUnavailable
		require.True(t, errors.As(err, &su))
		assert.Equal(t, "s3://bucket/X", su.URI)
		assert.Equal(t, "read", su.Op)
		assert.Same(t, io.ErrUnexpectedEOF, errors.Unwrap(err))
		assert.Contains(t, err.Error(), "s3://bucket/X")

		assert.Same(t, io.ErrUnexpectedEOF, translateError(io.ErrUnexpectedEOF, "u", ""))
	})
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "duplicate key -1 at positions 0 and 1", (&ErrDuplicateKey{Key: -1, First: 0, Second: 1}).Error())
	assert.Equal(t, "invalid thread count: 0", (&ErrInvalidThreadCount{}).Error())
	assert.Equal(t, "invalid query: bad", (&ErrInvalidQuery{Reason: "bad"}).Error())
	assert.Equal(t, `invalid config k="v"`, (&ErrInvalidConfig{Key: "k", Value: "v"}).Error())
}
