// File: errors.go
// Title: Core Error Implementation
// Description: Implements the Error type carrying a Code, the failing operation
//              and the wrapped cause. Compatible with the standard errors
//              package (errors.Is / errors.As / Unwrap).
// License: MIT

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// MaxErrorChainDepth limits how far GetCode walks a wrapped chain
const MaxErrorChainDepth = 15

// Error represents a structured error with a code, operation and cause
type Error struct {
	message   string
	cause     error
	code      Code
	operation string
	details   map[string]interface{}
}

// New creates a new Error with the given message
func New(message string) *Error {
	return &Error{
		message: message,
		code:    CodeUnknown,
	}
}

// Newf creates a new Error with a formatted message
func Newf(format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context. If err already
// carries a code, the wrapper inherits it.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		message: message,
		cause:   err,
		code:    GetCode(err),
	}
}

// Error implements the standard error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.operation != "" {
		b.WriteString(e.operation)
		b.WriteString(": ")
	}
	b.WriteString(e.message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error with the same code, so sentinel values like
// ErrNotFound work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.message == "" && t.cause == nil && t.code == e.code
}

// WithCode sets the error code
func (e *Error) WithCode(code Code) *Error {
	e.code = code
	return e
}

// WithOperation sets the operation that caused the error
func (e *Error) WithOperation(operation string) *Error {
	e.operation = operation
	return e
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Code returns the error code
func (e *Error) Code() Code {
	return e.code
}

// Operation returns the operation that caused the error
func (e *Error) Operation() string {
	return e.operation
}

// Message returns the message without operation or cause
func (e *Error) Message() string {
	return e.message
}

// Details returns a copy of the error details
func (e *Error) Details() map[string]interface{} {
	out := make(map[string]interface{}, len(e.details))
	for k, v := range e.details {
		out[k] = v
	}
	return out
}

// Sentinel values for errors.Is comparisons by code.
var (
	ErrNotFound            = &Error{code: CodeNotFound}
	ErrConstraintViolation = &Error{code: CodeConstraintViolation}
	ErrConnectionLost      = &Error{code: CodeConnectionLost}
	ErrPoolExhausted       = &Error{code: CodePoolExhausted}
	ErrConnectFailed       = &Error{code: CodeConnectFailed}
	ErrTimeout             = &Error{code: CodeTimeout}
	ErrInvalidInput        = &Error{code: CodeInvalidInput}
)

// GetCode returns the first non-unknown code found in the error chain
func GetCode(err error) Code {
	for depth := 0; err != nil && depth < MaxErrorChainDepth; depth++ {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		if e.code != CodeUnknown && e.code != "" {
			return e.code
		}
		err = e.cause
	}
	return CodeUnknown
}

// HasCode checks if the error chain carries the given code
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Is is a convenience re-export of the standard errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a convenience re-export of the standard errors.As
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
