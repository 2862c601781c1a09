package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used to classify failures. Callers mark concrete errors with
// one of these and check with the Is* helpers or errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrVersionConflict  = errors.New("version conflict")
	ErrValidation       = errors.New("validation error")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrPermissionDenied = errors.New("permission denied")
	ErrHTTPClient       = errors.New("http client error")
	ErrTimeout          = errors.New("timeout")
	ErrDatabase         = errors.New("database error")
	ErrSystem           = errors.New("system error")
	ErrInternal         = errors.New("internal error")
)

// InternalError carries the marked error together with details that are safe
// to surface in logs and events.
type InternalError struct {
	Err               error
	ReportableDetails map[string]interface{}
}

func (e *InternalError) Error() string {
	return e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// ErrorBuilder composes hints, details and a sentinel mark on top of an error.
type ErrorBuilder struct {
	err     error
	details map[string]interface{}
}

// NewError starts a builder from a new error message
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

// NewErrorf starts a builder from a formatted error message
func NewErrorf(format string, args ...interface{}) *ErrorBuilder {
	return &ErrorBuilder{err: errors.Newf(format, args...)}
}

// WithError starts a builder wrapping an existing error
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{err: err}
}

// WithMessage wraps the underlying error with a message prefix
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.Wrap(b.err, msg)
	return b
}

// WithHint attaches a user facing hint
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

// WithHintf attaches a formatted user facing hint
func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	b.err = errors.WithHint(b.err, fmt.Sprintf(format, args...))
	return b
}

// WithReportableDetails attaches key/value details. Repeated calls merge.
func (b *ErrorBuilder) WithReportableDetails(details map[string]interface{}) *ErrorBuilder {
	if b.details == nil {
		b.details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		b.details[k] = v
	}
	return b
}

// Mark classifies the error with a sentinel and returns the final error
func (b *ErrorBuilder) Mark(reference error) error {
	marked := errors.Mark(b.err, reference)
	if len(b.details) == 0 {
		return marked
	}
	return &InternalError{Err: marked, ReportableDetails: b.details}
}

// Err returns the built error without a mark
func (b *ErrorBuilder) Err() error {
	if len(b.details) == 0 {
		return b.err
	}
	return &InternalError{Err: b.err, ReportableDetails: b.details}
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool    { return errors.Is(err, ErrAlreadyExists) }
func IsVersionConflict(err error) bool  { return errors.Is(err, ErrVersionConflict) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }
func IsInvalidOperation(err error) bool { return errors.Is(err, ErrInvalidOperation) }
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsHTTPClient(err error) bool       { return errors.Is(err, ErrHTTPClient) }
func IsTimeout(err error) bool          { return errors.Is(err, ErrTimeout) }
func IsDatabase(err error) bool         { return errors.Is(err, ErrDatabase) }
func IsSystem(err error) bool           { return errors.Is(err, ErrSystem) }
func IsInternal(err error) bool         { return errors.Is(err, ErrInternal) }

// GetHints returns every hint attached along the error chain
func GetHints(err error) []string {
	return errors.GetAllHints(err)
}

// GetReportableDetails returns the details attached by the builder, if any
func GetReportableDetails(err error) map[string]interface{} {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.ReportableDetails
	}
	return nil
}
