package core

import (
	"fmt"

	"github.com/dkeye/Parley/internal/domain"
)

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeRoom
	ScopePeer
	ScopeAllExceptSender
)

// DeliveryScope decides who receives an event. It is attached once, when the
// inbound event is decoded, and resolved explicitly at delivery time.
type DeliveryScope struct {
	Kind ScopeKind
	Room domain.RoomID
	Peer domain.ConnectionID
	// Echo includes the sender in a room delivery.
	Echo bool
}

func RoomScope(room domain.RoomID, echo bool) DeliveryScope {
	return DeliveryScope{Kind: ScopeRoom, Room: room, Echo: echo}
}

func PeerScope(peer domain.ConnectionID) DeliveryScope {
	return DeliveryScope{Kind: ScopePeer, Peer: peer}
}

func AllExceptSender() DeliveryScope {
	return DeliveryScope{Kind: ScopeAllExceptSender}
}

func (s DeliveryScope) String() string {
	switch s.Kind {
	case ScopeRoom:
		return fmt.Sprintf("room(%s,echo=%t)", s.Room, s.Echo)
	case ScopePeer:
		return fmt.Sprintf("peer(%s)", s.Peer)
	case ScopeAllExceptSender:
		return "all-except-sender"
	}
	return "none"
}
