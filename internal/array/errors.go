package array

import "errors"

var (
	// ErrArrayNotFound is returned when no array exists at a URI.
	ErrArrayNotFound = errors.New("array: not found")
	// ErrArrayExists is returned by Create when an array already exists.
	ErrArrayExists = errors.New("array: already exists")
	// ErrInvalidSchema is returned for a malformed schema.
	ErrInvalidSchema = errors.New("array: invalid schema")
	// ErrUnknownDimension is returned for a dimension name not in the schema.
	ErrUnknownDimension = errors.New("array: unknown dimension")
	// ErrUnknownColumn is returned for a column name not in the schema.
	ErrUnknownColumn = errors.New("array: unknown column")
	// ErrOutOfDomain is returned when a written coordinate lies outside its
	// dimension's domain.
	ErrOutOfDomain = errors.New("array: coordinate out of domain")
	// ErrSchemaMismatch is returned when a written record does not match the
	// array schema.
	ErrSchemaMismatch = errors.New("array: record does not match schema")
	// ErrCorrupt is returned when stored data fails validation.
	ErrCorrupt = errors.New("array: corrupt data")
	// ErrBufferTooSmall is returned when the buffer budget cannot hold a
	// single row.
	ErrBufferTooSmall = errors.New("array: buffer too small for one row")
	// ErrMode is returned for an operation the open mode does not allow.
	ErrMode = errors.New("array: operation not allowed in this mode")
	// ErrClosed is returned when using a closed array or cursor.
	ErrClosed = errors.New("array: closed")
)
