package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder provides a fluent way to construct errors with hints and
// reportable details before marking them with a sentinel class.
type ErrorBuilder struct {
	err     error
	hint    string
	details map[string]any
}

// NewError starts a new error builder with the given message
func NewError(message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: errors.NewWithDepth(1, message),
	}
}

// NewErrorf starts a new error builder with a formatted message
func NewErrorf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{
		err: errors.NewWithDepthf(1, format, args...),
	}
}

// WithError starts a new error builder wrapping an existing error
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{
		err: err,
	}
}

// WithHint attaches a user facing hint to the error
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.hint = hint
	return b
}

// WithHintf attaches a formatted user facing hint to the error
func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.hint = fmt.Sprintf(format, args...)
	return b
}

// WithReportableDetails attaches structured details that are safe to surface
// in API responses and diagnostics
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	b.details = details
	return b
}

// Mark finalizes the builder and marks the error with the given sentinel so
// that errors.Is(err, sentinel) holds on the result.
func (b *ErrorBuilder) Mark(sentinel error) error {
	err := b.err
	if b.hint != "" {
		err = errors.WithHint(err, b.hint)
	}
	for k, v := range b.details {
		err = errors.WithDetailf(err, "%s: %v", k, v)
	}
	return errors.Mark(err, sentinel)
}
