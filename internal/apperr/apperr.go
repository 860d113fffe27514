// Package apperr defines the error kinds shared by the directory, the request
// lifecycle and the transport layers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindUnavailable       Kind = "unavailable"
)

// Kind sentinels for errors.Is matching.
var (
	NotFound          = &Error{Kind: KindNotFound}
	Forbidden         = &Error{Kind: KindForbidden}
	InvalidTransition = &Error{Kind: KindInvalidTransition}
	Validation        = &Error{Kind: KindValidation}
	Unavailable       = &Error{Kind: KindUnavailable}
)

// Error is a classified failure. Field names the offending input for
// validation errors.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound)
// works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewNotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewForbidden(reason string) error {
	return &Error{Kind: KindForbidden, Message: reason}
}

func NewInvalidTransition(from, to string) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move request from %s to %s", from, to)}
}

func NewValidation(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// WrapUnavailable marks err as a collaborator being unreachable.
func WrapUnavailable(err error, format string, args ...any) error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
