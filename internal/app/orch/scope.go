package orch

import (
	"fmt"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// chatScope is used by chat events: a room delivery that echoes to the
// sender, or the legacy broadcast when no chat is named.
func (o *Orchestrator) chatScope(chat domain.RoomID) (core.DeliveryScope, error) {
	if chat != "" {
		return core.RoomScope(chat, true), nil
	}
	return o.globalScope()
}

// signalScope is used by WebRTC negotiation: a named peer, else the other
// members of a room, else the legacy broadcast.
func (o *Orchestrator) signalScope(remote string, room domain.RoomID) (core.DeliveryScope, error) {
	switch {
	case remote != "":
		sid, ok := o.Registry.ResolvePeer(remote)
		if !ok {
			return core.DeliveryScope{}, fmt.Errorf("%w: peer %s", core.ErrUnknownConnection, remote)
		}
		return core.PeerScope(sid), nil
	case room != "":
		return core.RoomScope(room, false), nil
	}
	return o.globalScope()
}

func (o *Orchestrator) globalScope() (core.DeliveryScope, error) {
	if !o.legacyGlobal {
		return core.DeliveryScope{}, fmt.Errorf("%w: room or target required", core.ErrInvalidEventShape)
	}
	return core.AllExceptSender(), nil
}
