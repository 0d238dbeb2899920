package utils

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindValidation         ErrorKind = "VALIDATION"
	KindConflict           ErrorKind = "CONFLICT"
	KindExternalDependency ErrorKind = "EXTERNAL_DEPENDENCY"
)

// Sentinels for errors.Is. Every *CoreError matches the sentinel of its kind.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrExternalDependency = errors.New("external dependency unavailable")
)

var ErrorRecordNotFound error = NotFoundError("record not found")

type CoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

func (e *CoreError) Is(target error) bool {
	if t, ok := target.(*CoreError); ok {
		return e.Kind == t.Kind && e.Message == t.Message
	}
	return kindSentinel(e.Kind) == target
}

func kindSentinel(kind ErrorKind) error {
	switch kind {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidState:
		return ErrInvalidState
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindExternalDependency:
		return ErrExternalDependency
	}
	return nil
}

func NotFoundError(format string, args ...any) error {
	return &CoreError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidStateError(format string, args ...any) error {
	return &CoreError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) error {
	return &CoreError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(err error, format string, args ...any) error {
	return &CoreError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

func ExternalDependencyError(err error, format string, args ...any) error {
	return &CoreError{Kind: KindExternalDependency, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first CoreError in err's chain, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
