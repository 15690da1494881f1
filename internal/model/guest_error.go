package model

import "fmt"

// GuestErrorKind enumerates the error shapes a guest extension can return
// as a value (never as a host trap) from fetch_novel_info, fetch_chapter,
// and the search methods.
type GuestErrorKind string

const (
	GuestErrorInvalidRequest GuestErrorKind = "invalid_request"
	GuestErrorNotFound       GuestErrorKind = "not_found"
	GuestErrorParse          GuestErrorKind = "parse_error"
	GuestErrorUnsupported    GuestErrorKind = "unsupported"
	GuestErrorHTTP           GuestErrorKind = "http_error"
)

// GuestError is a domain error surfaced by extension code itself, distinct
// from a runtime-level trap or panic.
type GuestError struct {
	Kind    GuestErrorKind `json:"kind"`
	Message string         `json:"message"`
}

func (e *GuestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
