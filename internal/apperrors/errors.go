// Package apperrors provides a small categorized-error builder used across
// Auralis, modeled on the enhanced-error pattern of the teacher codebase:
// errors carry a category (for metrics/logging grouping) and free-form
// context, and a single Sanitize function maps any error to the
// boundary-safe shape clients are allowed to see.
package apperrors

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Category groups errors by kind, matching the taxonomy in the design doc
// rather than by concrete Go type.
type Category string

const (
	CategoryNotFound     Category = "not_found"
	CategoryInvalid      Category = "invalid"
	CategoryTimeout      Category = "timeout"
	CategoryNonFinite    Category = "non_finite"
	CategoryBackpressure Category = "backpressure"
	CategoryCancelled    Category = "cancelled"
	CategoryConflict     Category = "conflict"
	CategoryInternal     Category = "internal"
)

// AppError wraps an error with a category and structured context. Never
// format AppError.Error() into a client-facing message directly — use
// Sanitize for that boundary.
type AppError struct {
	err      error
	category Category
	mu       sync.RWMutex
	context  map[string]any
}

func (e *AppError) Error() string {
	if e.err == nil {
		return string(e.category)
	}
	return e.err.Error()
}

// Unwrap exposes the wrapped error to errors.Is / errors.As.
func (e *AppError) Unwrap() error { return e.err }

// Category returns the error's category.
func (e *AppError) Category() Category { return e.category }

// Context returns a copy of the structured context attached to the error.
func (e *AppError) Context() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.context == nil {
		return nil
	}
	cp := make(map[string]any, len(e.context))
	maps.Copy(cp, e.context)
	return cp
}

// Builder provides the fluent construction Auralis code uses throughout:
//
//	return apperrors.Newf("chunk %d missing", idx).
//	        Category(apperrors.CategoryNotFound).
//	        Context("chunk_index", idx).
//	        Build()
type Builder struct {
	err      error
	category Category
	context  map[string]any
}

// New starts a builder wrapping an existing error.
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf starts a builder wrapping a formatted error.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Category sets the error's category.
func (b *Builder) Category(c Category) *Builder {
	b.category = c
	return b
}

// Context attaches one key/value pair of structured context.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the AppError.
func (b *Builder) Build() *AppError {
	cat := b.category
	if cat == "" {
		cat = CategoryInternal
	}
	return &AppError{err: b.err, category: cat, context: b.context}
}

// CategoryOf extracts the category of err if it is (or wraps) an *AppError,
// defaulting to CategoryInternal otherwise.
func CategoryOf(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category()
	}
	return CategoryInternal
}

// Sanitized is the boundary-safe shape sent to HTTP/WebSocket clients:
// a category and an optional correlation id, never a raw message or path.
type Sanitized struct {
	ErrorKind     string `json:"error_kind"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Sanitize maps any error to a Sanitized value. It never includes the
// original error text, a filesystem path, or a stack trace.
func Sanitize(err error, correlationID string) Sanitized {
	return Sanitized{ErrorKind: string(CategoryOf(err)), CorrelationID: correlationID}
}
