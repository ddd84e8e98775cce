package domain

import "github.com/google/uuid"

// ConnectionID identifies one transport-level connect. Never reused.
type ConnectionID string

type ConnState int

const (
	StateConnected ConnState = iota
	StateAuthenticated
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateDisconnected:
		return "DISCONNECTED"
	}
	return "UNKNOWN"
}

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}
