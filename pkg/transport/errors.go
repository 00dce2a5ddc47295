package transport

import (
	"errors"
	"fmt"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
)

type ErrorKind int

const (
	Other ErrorKind = iota
	Unreachable
	Unauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Unauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

var ErrUnknownPeer = errors.New("no address for peer")

// Error is a failed remote call.
type Error struct {
	Kind ErrorKind
	Op   string
	Peer models.AgentKey
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s on %s: %s: %v", e.Op, e.Peer.Short(), e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the transport kind of err, Other when err is not an *Error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return Other
}

// AsAppError maps a transport failure onto the node's error kinds.
func AsAppError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch KindOf(err) {
	case Unreachable:
		return apperr.New(apperr.KindNetworkUnreachable, op, err)
	case Unauthorized:
		return apperr.New(apperr.KindUnauthorized, op, err)
	default:
		return apperr.New(apperr.KindRemoteFailure, op, err)
	}
}
