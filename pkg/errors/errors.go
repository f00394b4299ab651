// Package errors provides the marketplace error taxonomy and reusable error values.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a response.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindState      Kind = "state"
	KindNotFound   Kind = "not_found"
)

// Error is a classified, request-scoped failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes sentinel comparisons work on Kind+Message so wrapped copies still match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Permission(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func State(format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first classified error in the chain, or "".
func KindOf(err error) Kind {
	var pe *PriceLimitError
	if errors.As(err, &pe) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
func IsState(err error) bool      { return KindOf(err) == KindState }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }

// Common errors
var (
	ErrUserNotFound           = NotFound("user not found")
	ErrReferencePriceNotFound = NotFound("reference price not found")
	ErrListingNotFound        = NotFound("listing not found")
	ErrOrderNotFound          = NotFound("order not found")
	ErrDisputeNotFound        = NotFound("dispute not found")
	ErrChatRoomNotFound       = NotFound("chat room not found")

	ErrUserAlreadyExists = State("a user with this email already exists")

	ErrDuplicateRequest = errors.New("duplicate request")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
