package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies failures crossing the Data Source boundary.
type Kind int

const (
	KindNetwork    Kind = iota + 1 // transport failure
	KindAPI                        // non-2xx or malformed response
	KindValidation                 // rejected locally before any request
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by the api client and the filter normalizer.
type Error struct {
	Kind    Kind
	Op      string // e.g. "attributes", "items", "collection data"
	Status  int    // HTTP status for KindAPI, 0 otherwise
	Message string // readable message suitable for a toast
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, ErrNetwork).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrAPI        = &Error{Kind: KindAPI}
	ErrValidation = &Error{Kind: KindValidation}
)

func Network(op string, err error) *Error {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindNetwork, Op: op, Message: msg, Err: err}
}

func API(op string, status int, format string, a ...any) *Error {
	return &Error{Kind: KindAPI, Op: op, Status: status, Message: fmt.Sprintf(format, a...)}
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func IsNetwork(err error) bool    { return stderrors.Is(err, ErrNetwork) }
func IsAPI(err error) bool        { return stderrors.Is(err, ErrAPI) }
func IsValidation(err error) bool { return stderrors.Is(err, ErrValidation) }

// StatusOf returns the HTTP status carried by an API error, or 0.
func StatusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Message returns the readable part of err for user-facing notifications.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
