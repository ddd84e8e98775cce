package core

import "errors"

var (
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrDeliveryFailure     = errors.New("delivery failure")
	ErrBackpressure        = errors.New("backpressure")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrInvalidEventShape   = errors.New("invalid event shape")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrClosed              = errors.New("service closed")
	ErrRateLimited         = errors.New("rate limited")
)

// Error codes sent back to the issuing connection.
const (
	CodeInvalidEvent       = "invalid_event"
	CodePersistenceFailure = "persistence_failure"
	CodeUnauthenticated    = "unauthenticated"
	CodePeerNotFound       = "peer_not_found"
	CodeRateLimited        = "rate_limited"
	CodeUnknownEvent       = "unknown_event"
	CodeInternal           = "internal"
)

// ErrorCode maps an error to the code reported on the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEventShape):
		return CodeInvalidEvent
	case errors.Is(err, ErrPersistenceFailure):
		return CodePersistenceFailure
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrUnknownConnection):
		return CodePeerNotFound
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	}
	return CodeInternal
}
