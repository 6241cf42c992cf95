package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so callers can branch on the kind
// instead of matching message strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindStorageUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// Error is the tagged error type used throughout the core. Integrity
// violations are deliberately not represented here: a failed checksum is a
// reportable fact carried in a report struct, not an error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two domain errors by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && (other.Msg == "" || other.Msg == e.Msg)
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a transient storage failure. The core never retries;
// retry policy belongs to the caller.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Msg: msg, Err: err}
}

// KindOf extracts the kind from any error in the chain, KindUnknown if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
