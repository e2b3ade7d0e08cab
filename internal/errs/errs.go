package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindUpstream     Kind = "upstream"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream failure")
)

// Error carries a Kind, a message safe to show to clients, and the underlying cause.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Kind, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match an *Error against the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

func InvalidInput(message string) error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Upstream wraps a remote store failure. A nil err still yields an upstream error.
func Upstream(message string, err error) error {
	return &Error{Kind: KindUpstream, Message: message, Underlying: err}
}

// KindOf reports the Kind of err, treating anything unclassified as upstream.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}
