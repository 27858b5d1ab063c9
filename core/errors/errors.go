// Package errors provides standardized error types and helpers for the lexdrop codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrInvalidArchive indicates no EOCD or local-header signature was found where expected
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrDecompression indicates a DEFLATE stream error or a size mismatch
	ErrDecompression = errors.New("decompression failed")
	// ErrUnsupportedMethod indicates a compression method other than stored or deflate
	ErrUnsupportedMethod = errors.New("unsupported compression method")
	// ErrMalformedMultipart indicates a boundary or filename token was not found
	ErrMalformedMultipart = errors.New("malformed multipart body")
	// ErrPayloadTooLarge indicates the accumulated request body exceeded the configured cap
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrPersistence indicates a disk write failure for received bytes
	ErrPersistence = errors.New("persistence failure")
)

// EntryError represents a failure processing a single archive entry.
// Entry failures are isolated: one bad entry does not abort extraction
// of the remaining entries.
type EntryError struct {
	Name   string // Entry file name as recorded in the archive
	Method uint16 // Compression method from the entry header
	Err    error  // Underlying error
}

func (e *EntryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("archive entry %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("archive entry: %v", e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// MultipartError represents a multipart decoding failure with context.
type MultipartError struct {
	Stage string // Decoding stage that failed (e.g. "boundary", "filename", "payload")
	Err   error  // Underlying error, if any
}

func (e *MultipartError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("multipart decode failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("multipart decode failed: %v", e.Err)
}

func (e *MultipartError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedMultipart
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "create")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrPersistence
}

// Helper functions for wrapping and checking errors

// Wrap wraps an error with additional context using fmt.Errorf with %w
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}
