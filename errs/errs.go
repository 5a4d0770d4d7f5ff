// Package errs defines the error taxonomy shared by the ftdc packages.
//
// Every decode failure surfaced by varint, scalar, record, chunk, and the
// top-level ftdc package wraps one of the sentinel errors below so callers
// can classify a failure with errors.Is without parsing message text.
package errs

import "errors"

// Sentinel errors, one per taxonomy class from the FTDC decoder design.
var (
	// ErrNotFound indicates the requested file does not exist.
	ErrNotFound = errors.New("ftdc: file not found")

	// ErrTruncated indicates outer framing or a chunk payload ended mid-structure.
	ErrTruncated = errors.New("ftdc: truncated data")

	// ErrCorrupt indicates a zlib failure, a size-prefix mismatch, a varint
	// that exceeds the 10-byte limit, or an invalid type tag.
	ErrCorrupt = errors.New("ftdc: corrupt data")

	// ErrUnsupportedType indicates a record-scanner type byte outside the
	// known set. Fatal for the chunk currently being decoded.
	ErrUnsupportedType = errors.New("ftdc: unsupported record type")

	// ErrSchema indicates a structural mismatch: the header's metrics_count
	// disagreed with the scanner's walk count by more than the tolerated
	// margin (or at all, in strict mode), or a framed record lacks a required
	// field or has one of the wrong type.
	ErrSchema = errors.New("ftdc: schema mismatch")

	// ErrRangeError indicates an internal sample index out of bounds.
	ErrRangeError = errors.New("ftdc: index out of range")
)

// DecodeError wraps a sentinel class with positional context.
//
// Use errors.Is(err, errs.ErrCorrupt) (etc.) to classify; use Error() or
// %v for a human-readable message carrying the offset/detail.
type DecodeError struct {
	Class   error
	Offset  int
	Detail  string
}

// NewDecodeError builds a DecodeError at the given byte offset.
func NewDecodeError(class error, offset int, detail string) *DecodeError {
	return &DecodeError{Class: class, Offset: offset, Detail: detail}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return e.Class.Error()
	}

	return e.Class.Error() + ": " + e.Detail
}

// Unwrap allows errors.Is/errors.As to see through to the sentinel class.
func (e *DecodeError) Unwrap() error {
	return e.Class
}
