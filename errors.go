package arraystream

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/arraystream/internal/array"
	"github.com/hupe1980/arraystream/internal/condition"
	"github.com/hupe1980/arraystream/internal/intindex"
	"github.com/hupe1980/arraystream/internal/points"
	"github.com/hupe1980/arraystream/internal/resource"
)

var (
	// ErrReaderState is returned when a Reader method is called in a state
	// that does not allow it.
	ErrReaderState = errors.New("arraystream: invalid reader state")

	// ErrClosed is returned when using a closed Reader.
	ErrClosed = errors.New("arraystream: closed")

	// ErrLengthMismatch is returned when a destination slice does not match
	// its input.
	ErrLengthMismatch = errors.New("arraystream: length mismatch")

	// ErrArrayNotFound is wrapped by ErrStoreUnavailable when no array
	// exists at a URI.
	ErrArrayNotFound = array.ErrArrayNotFound

	// ErrArrayExists is returned by CreateArray for an existing array.
	ErrArrayExists = array.ErrArrayExists

	// ErrInvalidSchema is returned by CreateArray for a malformed schema.
	ErrInvalidSchema = array.ErrInvalidSchema

	// ErrSchemaMismatch is returned by WriteArray when a record does not
	// carry the array's columns.
	ErrSchemaMismatch = array.ErrSchemaMismatch

	// ErrOutOfDomain is returned by WriteArray for a coordinate outside its
	// dimension's domain.
	ErrOutOfDomain = array.ErrOutOfDomain
)

// ErrDuplicateKey indicates a key array with a repeated value.
//
// First and Second are the positions of the first two occurrences.
type ErrDuplicateKey struct {
	Key    int64
	First  int
	Second int
	cause  error
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key %d at positions %d and %d", e.Key, e.First, e.Second)
}

func (e *ErrDuplicateKey) Unwrap() error { return e.cause }

// ErrInvalidThreadCount indicates a thread count below one.
type ErrInvalidThreadCount struct {
	ThreadCount int
	cause       error
}

func (e *ErrInvalidThreadCount) Error() string {
	return fmt.Sprintf("invalid thread count: %d", e.ThreadCount)
}

func (e *ErrInvalidThreadCount) Unwrap() error { return e.cause }

// ErrInvalidQuery indicates a query that cannot be executed: an unknown
// dimension or column, a bad condition, or a bad partition.
type ErrInvalidQuery struct {
	Reason string
	cause  error
}

func (e *ErrInvalidQuery) Error() string {
	return "invalid query: " + e.Reason
}

func (e *ErrInvalidQuery) Unwrap() error { return e.cause }

// ErrStoreUnavailable indicates a failed open or read against the store.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrStoreUnavailable struct {
	URI   string
	Op    string
	cause error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable: %s %s: %v", e.Op, e.URI, e.cause)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.cause }

// ErrResourceExhausted indicates that a read buffer could not be reserved
// or cannot hold a single row.
type ErrResourceExhausted struct {
	Resource string
	cause    error
}

func (e *ErrResourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted: %s: %v", e.Resource, e.cause)
}

func (e *ErrResourceExhausted) Unwrap() error { return e.cause }

// ErrInvalidConfig indicates an unparsable value of a recognized platform
// configuration key.
type ErrInvalidConfig struct {
	Key   string
	Value string
	cause error
}

func (e *ErrInvalidConfig) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid config %s=%q: %v", e.Key, e.Value, e.cause)
	}
	return fmt.Sprintf("invalid config %s=%q", e.Key, e.Value)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

// translateError maps internal errors onto the public error types. uri and
// op describe the store operation in progress; errors with no better
// classification become ErrStoreUnavailable when op is set.
func translateError(err error, uri, op string) error {
	if err == nil {
		return nil
	}
	if isPublic(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Index construction.
	var dup *intindex.DuplicateKeyError
	if errors.As(err, &dup) {
		return &ErrDuplicateKey{Key: dup.Key, First: dup.First, Second: dup.Second, cause: err}
	}

	// Query validation.
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
		if errors.Is(err, target) {
			return &ErrInvalidQuery{Reason: err.Error(), cause: err}
		}
	}

	// Memory.
	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return &ErrResourceExhausted{Resource: "memory budget", cause: err}
	}
	if errors.Is(err, array.ErrBufferTooSmall) {
		return &ErrResourceExhausted{Resource: "read buffer", cause: err}
	}

	// Caller mistakes on the write path keep their sentinel.
	for _, target := range []error{ErrArrayExists, ErrInvalidSchema, ErrSchemaMismatch, ErrOutOfDomain} {
		if errors.Is(err, target) {
			return err
		}
	}

	if op != "" {
		return &ErrStoreUnavailable{URI: uri, Op: op, cause: err}
	}
	return err
}

func isPublic(err error) bool {
	var (
		dk *ErrDuplicateKey
		tc *ErrInvalidThreadCount
		iq *ErrInvalidQuery
		su *ErrStoreUnavailable
		re *ErrResourceExhausted
		ic *ErrInvalidConfig
	)
	return errors.As(err, &dk) || errors.As(err, &tc) || errors.As(err, &iq) ||
		errors.As(err, &su) || errors.As(err, &re) || errors.As(err, &ic) ||
		errors.Is(err, ErrReaderState) || errors.Is(err, ErrClosed)
}
