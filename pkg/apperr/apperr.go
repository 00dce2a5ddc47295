// Package apperr defines the error kinds every node operation reports.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNetworkUnreachable
	KindUnauthorized
	KindPersistence
	KindNotFound
	// remote peer answered with a failure that is neither auth nor network
	KindRemoteFailure
	// local commit failed after the remote peer already accepted the message
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindUnauthorized:
		return "unauthorized"
	case KindPersistence:
		return "persistence_failure"
	case KindNotFound:
		return "not_found"
	case KindRemoteFailure:
		return "remote_failure"
	case KindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrNetworkUnreachable = &Error{Kind: KindNetworkUnreachable}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrPersistence        = &Error{Kind: KindPersistence}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrRemoteFailure      = &Error{Kind: KindRemoteFailure}
	ErrInconsistent       = &Error{Kind: KindInconsistent}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func InvalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// Inconsistent wraps a persistence failure that happened after a peer
// acknowledged; errors.Is matches both ErrInconsistent and ErrPersistence.
func Inconsistent(op string, err error) *Error {
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindPersistence {
		err = Persistence(op, err)
	}
	return &Error{Kind: KindInconsistent, Op: op, Err: err}
}

// KindOf returns the outermost Kind in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
