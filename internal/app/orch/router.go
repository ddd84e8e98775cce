package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type handlerFunc func(ctx context.Context, from app.Connection, payload json.RawMessage) error

func (o *Orchestrator) routes() map[core.Kind]handlerFunc {
	return map[core.Kind]handlerFunc{
		core.KindJoinRoom:         o.handleJoin,
		core.KindJoinChat:         o.handleJoin,
		core.KindLeaveRoom:        o.handleLeave,
		core.KindLeaveChat:        o.handleLeave,
		core.KindMessage:          o.handleMessage,
		core.KindMessageDeleted:   o.handleMessageDeleted,
		core.KindParticipantLeft:  o.handleParticipantLeft,
		core.KindChatUpdated:      o.handleChatUpdated,
		core.KindVideoChatMessage: o.handleVideoChatMessage,
		core.KindWebRTCOffer:      o.handleOffer,
		core.KindWebRTCAnswer:     o.handleAnswer,
		core.KindICECandidate:     o.handleCandidate,
		core.KindAuthenticate:     o.handleAuthenticate,
		core.KindPing:             o.handlePing,
	}
}

// Kinds accepted from connections without an identity even when auth is required.
var anonymousKinds = map[core.Kind]bool{
	core.KindAuthenticate: true,
	core.KindPing:         true,
}

// Dispatch runs the handler registered for env.Type on behalf of sid.
// Any failure is reported to sid alone and returned for the transport to log.
func (o *Orchestrator) Dispatch(ctx context.Context, sid domain.ConnectionID, env core.Envelope) error {
	from, err := o.Registry.Lookup(sid)
	if err != nil {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("event from unknown connection dropped")
		return err
	}
	h, ok := o.handlers[env.Type]
	if !ok {
		err = fmt.Errorf("%w: %s", core.ErrUnknownEvent, env.Type)
	} else if o.requireAuth && !from.Authenticated() && !anonymousKinds[env.Type] {
		err = core.ErrUnauthenticated
	} else {
		err = h(ctx, from, env.Payload)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("event rejected")
		o.replyError(sid, env.Type, err)
	}
	return err
}

// deliver encodes once and sends to every target of scope. One dead
// recipient never stops the loop. Returns how many sends succeeded.
func (o *Orchestrator) deliver(from domain.ConnectionID, scope core.DeliveryScope, kind core.Kind, payload any) int {
	frame, err := core.Encode(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode outbound event")
		return 0
	}
	targets := o.targets(from, scope)
	sent := 0
	for _, sid := range targets {
		if err := o.Registry.Send(sid, frame); err != nil {
			o.onDeliveryFailure(sid, err)
			continue
		}
		sent++
	}
	log.Debug().Str("module", "orch").Str("from", string(from)).Str("type", string(kind)).
		Str("scope", scope.String()).Int("targets", len(targets)).Int("sent_to", sent).Msg("delivered")
	return sent
}

// targets is computed at delivery time so connections gone during a
// persistence call are excluded.
func (o *Orchestrator) targets(from domain.ConnectionID, scope core.DeliveryScope) []domain.ConnectionID {
	switch scope.Kind {
	case core.ScopeRoom:
		members := o.Rooms.Members(scope.Room)
		if scope.Echo {
			return members
		}
		return lo.Without(members, from)
	case core.ScopePeer:
		return []domain.ConnectionID{scope.Peer}
	case core.ScopeAllExceptSender:
		return lo.Without(o.Registry.IDs(), from)
	}
	return nil
}

func (o *Orchestrator) onDeliveryFailure(sid domain.ConnectionID, err error) {
	if o.Policy == nil || !errors.Is(err, core.ErrBackpressure) {
		return
	}
	conn, lerr := o.Registry.Lookup(sid)
	if lerr != nil {
		return
	}
	switch o.Policy.OnBackPressure(conn) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow connection")
		o.Registry.Cancel(sid)
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) reply(sid domain.ConnectionID, kind core.Kind, payload any) {
	frame, err := core.Encode(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode reply")
		return
	}
	_ = o.Registry.Send(sid, frame)
}

func (o *Orchestrator) replyError(sid domain.ConnectionID, event core.Kind, err error) {
	o.reply(sid, core.KindError, core.ErrorPayload{
		Code:  core.ErrorCode(err),
		Event: event,
		Error: err.Error(),
	})
}

func (o *Orchestrator) decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", core.ErrInvalidEventShape)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidEventShape, err)
	}
	if err := o.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidEventShape, err)
	}
	return nil
}
