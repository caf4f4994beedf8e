package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind is the taxonomy surfaced to callers of publish and group management operations.
type ErrorKind string

const (
	KindInvalidAddress ErrorKind = "InvalidAddress"
	KindUnauthorized   ErrorKind = "Unauthorized"
	KindBadRequest     ErrorKind = "BadRequest"
	KindInternal       ErrorKind = "InternalError"
)

// Error is a classified failure. The Message is safe to show to clients; Err is not.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnauthorized) works
// for every unauthorized failure regardless of its message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidAddress = &Error{Kind: KindInvalidAddress}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrBadRequest     = &Error{Kind: KindBadRequest}
	ErrInternal       = &Error{Kind: KindInternal}
)

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NewInvalidAddress(address, reason string) *Error {
	return &Error{Kind: KindInvalidAddress, Message: reason + ": " + strconv.Quote(address)}
}

func NewUnauthorized(msg string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: err}
}

func NewBadRequest(msg string, err error) *Error {
	return &Error{Kind: KindBadRequest, Message: msg, Err: err}
}

func NewInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies any error; unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-facing description of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
