package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"unicode/utf8"
)

// Error codes for structured error reporting.
const (
	ErrCodePathSyntax         = "PATH_SYNTAX"
	ErrCodeValueResolution    = "VALUE_RESOLUTION"
	ErrCodePropertyKeyInvalid = "PROPERTY_KEY_INVALID"
	ErrCodeTypeMismatch       = "TYPE_MISMATCH"
	ErrCodeInvalidPattern     = "INVALID_PATTERN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeNullValue          = "NULL_VALUE"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
)

// retryableCodes lists the codes a failed hydration may be retried on.
var retryableCodes = map[string]bool{
	ErrCodeStore: true,
}

// DefaultSnapshotLimit caps the rendered value attached to an error.
const DefaultSnapshotLimit = 256

// SnapshotLimit is the limit WithSnapshot applies. It is meant to be set once
// at startup.
var SnapshotLimit = DefaultSnapshotLimit

// FilterError is the structured error type for all condition building,
// resolution and evaluation failures.
type FilterError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Path      string         `json:"path,omitempty"`
	SchemaKey string         `json:"schema_key,omitempty"`
	Snapshot  string         `json:"snapshot,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *FilterError) Error() string {
	switch {
	case e.SchemaKey != "" && e.Path != "":
		return fmt.Sprintf("[%s] %s at %q: %s", e.Code, e.SchemaKey, e.Path, e.Message)
	case e.Path != "":
		return fmt.Sprintf("[%s] path %q: %s", e.Code, e.Path, e.Message)
	case e.SchemaKey != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.SchemaKey, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FilterError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failed operation may succeed when retried.
func (e *FilterError) IsRetryable() bool {
	return retryableCodes[e.Code]
}

// NewError creates a new FilterError.
func NewError(code, message string) *FilterError {
	return &FilterError{Code: code, Message: message}
}

// NewErrorf creates a new FilterError with a formatted message.
func NewErrorf(code, format string, args ...any) *FilterError {
	return &FilterError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Clone returns a copy of e that can be annotated without touching e.
// Details are copied; Cause is shared.
func (e *FilterError) Clone() *FilterError {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}

// WithPath attaches the offending path expression.
func (e *FilterError) WithPath(path string) *FilterError {
	e.Path = path
	return e
}

// WithSchemaKey attaches the grammar key of the condition being processed.
func (e *FilterError) WithSchemaKey(key string) *FilterError {
	e.SchemaKey = key
	return e
}

// WithSnapshot attaches a truncated JSON rendering of v.
func (e *FilterError) WithSnapshot(v any) *FilterError {
	e.Snapshot = Snapshot(v, SnapshotLimit)
	return e
}

// WithCause attaches an underlying cause.
func (e *FilterError) WithCause(err error) *FilterError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FilterError) WithDetails(details map[string]any) *FilterError {
	e.Details = details
	return e
}

// IsCode reports whether err, or any error it wraps, is a FilterError with code.
func IsCode(err error, code string) bool {
	var fe *FilterError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Code == code
}

// CodeOf returns the code of the first FilterError in err's chain, or "".
func CodeOf(err error) string {
	var fe *FilterError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Snapshot renders v as JSON, falling back to %v, and truncates the result
// to at most limit bytes without splitting a rune. A limit <= 0 disables
// truncation.
func Snapshot(v any, limit int) string {
	var s string
	if b, err := json.Marshal(v); err == nil {
		s = string(b)
	} else {
		s = fmt.Sprintf("%v", v)
	}
	if limit > 0 && len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
