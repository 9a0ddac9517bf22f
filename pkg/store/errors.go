package store

import (
	"errors"
	"fmt"
)

// Kind classifies a store failure.
type Kind string

const (
	KindNotFound  Kind = "not_found"
	KindConflict  Kind = "conflict"
	KindCorrupt   Kind = "corrupt"
	KindIOFailure Kind = "io_failure"
)

// Error is returned by every Store operation that fails.
type Error struct {
	Kind Kind
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg = e.Msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrConflict) works
// for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Key == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrConflict = &Error{Kind: KindConflict}
	ErrCorrupt  = &Error{Kind: KindCorrupt}
	ErrIO       = &Error{Kind: KindIOFailure}
)

// KindOf returns the store error kind of err, or "" if err is not a store error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func notFound(key string) error {
	return &Error{Kind: KindNotFound, Key: key, Msg: fmt.Sprintf("API '%s' not found", key)}
}

func conflict(key, msg string) error {
	return &Error{Kind: KindConflict, Key: key, Msg: msg}
}
