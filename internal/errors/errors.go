package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP layer can map it to a status code
// and callers can decide whether a retry or a re-authorization makes sense.
type Kind string

const (
	KindConfig       Kind = "config"       // missing client ID/secret, bad startup state; fatal, never retried
	KindValidation   Kind = "validation"   // CSRF/state mismatch, bad input; abort the flow
	KindToken        Kind = "token"        // expired/revoked tokens; caller must re-authorize
	KindProvider     Kind = "provider"     // non-2xx from an upstream provider API
	KindVerification Kind = "verification" // wrong TOTP/backup code; deliberately detail-free
	KindNotFound     Kind = "not_found"
	KindRateLimit    Kind = "rate_limit"
	KindInternal     Kind = "internal"
)

// Error is the single tagged error shape used across component boundaries.
// The Message is safe to show to end users; wrapped causes are not.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error with a user-presentable message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying cause. A nil cause returns nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf walks the error chain and returns the first tag found,
// defaulting to KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-presentable message for tagged errors and a
// generic fallback for everything else, so raw provider/storage errors
// never leak to end users.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
