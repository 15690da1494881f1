// Package errors provides the domain error taxonomy used across the
// extension runtime, storage engine, and registry, modeled on the
// code+message+details shape used throughout this codebase's services.
//
// Usage:
//
//	if novel == nil {
//	    return errors.NotFound("novel not found")
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeNovelNotFound:
//	        // ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is a machine-readable error code drawn from spec §7's taxonomy.
type Code string

const (
	// HTTP broker (C1).
	CodeBadResponse Code = "BAD_RESPONSE"
	CodeTimeout     Code = "TIMEOUT"
	CodeRedirect    Code = "REDIRECT"
	CodeBodyError   Code = "BODY_ERROR"
	CodeHTTPStatus  Code = "HTTP_STATUS"
	CodeHTTPOther   Code = "HTTP_OTHER"

	// Extension runtime (C3).
	CodeWasmtimeError Code = "RUNTIME_TRAP"
	CodeGuestError    Code = "GUEST_ERROR"
	CodeRuntimeError  Code = "RUNTIME_ERROR"

	// Storage engine (C4).
	CodeNovelNotFound        Code = "NOVEL_NOT_FOUND"
	CodeChapterNotFound      Code = "CHAPTER_NOT_FOUND"
	CodeNovelAlreadyExists   Code = "NOVEL_ALREADY_EXISTS"
	CodeInvalidNovelData     Code = "INVALID_NOVEL_DATA"
	CodeDataConversionError  Code = "DATA_CONVERSION_ERROR"
	CodeStorageOperationFail Code = "STORAGE_OPERATION_FAILED"
	CodeBackendError         Code = "BACKEND_ERROR"

	// Registry / store (C5, C6).
	CodeExtensionNotFound Code = "EXTENSION_NOT_FOUND"
	CodeInvalidPath       Code = "INVALID_PATH"
	CodeIOOperation       Code = "IO_OPERATION"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodePublishError      Code = "PUBLISH_ERROR"

	// Export/format (out of scope, contract only).
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeFormatError       Code = "FORMAT_ERROR"
	CodeInvalidConfig     Code = "INVALID_CONFIGURATION"
)

// HTTPStatus returns the HTTP status the read facade (C7) should map
// this code to.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNovelNotFound, CodeChapterNotFound, CodeExtensionNotFound:
		return http.StatusNotFound
	case CodeNovelAlreadyExists:
		return http.StatusConflict
	case CodeInvalidNovelData, CodeValidationFailed, CodeInvalidPath, CodeInvalidConfig, CodeUnsupportedFormat:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error carrying a stable Code, a human-readable
// Message, optional structured Details, and an optional wrapped cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of e carrying additional structured details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of e wrapping an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// NewError builds an error with the given code and message.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf builds an error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps err with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// NotFound is a convenience constructor for novel-not-found errors.
func NotFound(msg string) *Error { return &Error{Code: CodeNovelNotFound, Message: msg} }

// ChapterNotFound is a convenience constructor for chapter-not-found errors.
func ChapterNotFound(msg string) *Error { return &Error{Code: CodeChapterNotFound, Message: msg} }
