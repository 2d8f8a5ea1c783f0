package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTransport Category = "transport"
	CategoryProtocol  Category = "protocol"
	CategoryResource  Category = "resource"
	CategoryCLI       Category = "cli"
)

// RCPError is a structured error with a registry code, detail text, and a fix hint.
type RCPError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, transport, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Fields holds key/value context such as the offending port or URI.
	Fields map[string]any

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RCPError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RCPError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RCPError) WithSuggestion(s string) *RCPError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *RCPError) WithDetail(d string) *RCPError {
	e.Detail = d
	return e
}

// WithField attaches a context value, e.g. WithField("port", 70000).
func (e *RCPError) WithField(key string, value any) *RCPError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Wrap wraps another error.
func (e *RCPError) Wrap(err error) *RCPError {
	e.Wrapped = err
	return e
}

// Is reports whether target carries the same registry code.
func (e *RCPError) Is(target error) bool {
	t, ok := target.(*RCPError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// LogArgs flattens the error into slog key/value pairs.
func (e *RCPError) LogArgs() []any {
	args := []any{"code", e.Code, "error", e.Message}
	for k, v := range e.Fields {
		args = append(args, k, v)
	}
	if e.Wrapped != nil {
		args = append(args, "cause", e.Wrapped)
	}
	return args
}

// New creates an RCPError from a registered error code.
func New(code string) *RCPError {
	template, ok := registry[code]
	if !ok {
		return &RCPError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RCPError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new RCPError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RCPError {
	return &RCPError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an RCPError.
func FromError(err error, code string) *RCPError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RCPError); ok {
		return re
	}
	return New(code).Wrap(err)
}

// Code returns the registry code of err, or "" if err carries none.
func Code(err error) string {
	for err != nil {
		if re, ok := err.(*RCPError); ok {
			return re.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
