package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleJoin(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p roomPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	if err := o.Rooms.Join(p.RoomID, from.ID); err != nil {
		return err
	}
	o.reply(from.ID, core.KindJoined, roomAck{RoomID: p.RoomID, MemberCount: len(o.Rooms.Members(p.RoomID))})
	return nil
}

func (o *Orchestrator) handleLeave(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p roomPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	o.Rooms.Leave(p.RoomID, from.ID)
	o.reply(from.ID, core.KindLeft, roomAck{RoomID: p.RoomID, MemberCount: len(o.Rooms.Members(p.RoomID))})
	return nil
}

func (o *Orchestrator) handleMessage(ctx context.Context, from app.Connection, raw json.RawMessage) error {
	var p messagePayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	if p.Type == "" {
		p.Type = domain.MessageText
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %v", core.ErrInvalidEventShape, domain.ErrInvalidType)
	}

	if p.ID != "" || p.ChatID == "" {
		// already durable, or a legacy chat-less message: relay as is
		scope, err := o.chatScope(p.ChatID)
		if err != nil {
			return err
		}
		o.deliver(from.ID, scope, core.KindMessage, relayedRecord(from, p))
		return nil
	}

	sender := from.User
	if sender == nil {
		// permissive mode: trust the claimed sender
		if p.SenderID == "" {
			return fmt.Errorf("%w: sender identity required to persist", core.ErrUnauthenticated)
		}
		sender = &domain.User{ID: p.SenderID}
		if p.Sender != nil {
			sender.Username = p.Sender.Username
		}
	}
	rec, err := o.bridge.createMessage(ctx, sender, p.ChatID, p.Content, p.Type)
	if err != nil {
		return err
	}
	o.deliver(from.ID, core.RoomScope(p.ChatID, true), core.KindMessage, rec)
	o.emitChatUpdated(ctx, from.ID, p.ChatID)
	return nil
}

func relayedRecord(from app.Connection, p messagePayload) *domain.MessageRecord {
	rec := &domain.MessageRecord{
		ID:        p.ID,
		ChatID:    p.ChatID,
		SenderID:  p.SenderID,
		Sender:    p.Sender,
		Content:   p.Content,
		Type:      p.Type,
		CreatedAt: p.CreatedAt,
	}
	if rec.SenderID == "" {
		rec.SenderID = from.UserID()
	}
	if rec.Sender == nil {
		rec.Sender = from.User
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

func (o *Orchestrator) handleMessageDeleted(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p messageDeletedPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	p.DeletedBy = from.UserID()
	o.deliver(from.ID, core.RoomScope(p.ChatID, true), core.KindMessageDeleted, p)
	return nil
}

func (o *Orchestrator) handleParticipantLeft(ctx context.Context, from app.Connection, raw json.RawMessage) error {
	var p participantLeftPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	user := from.User
	if user != nil && p.UserID != "" && p.UserID != user.ID {
		return fmt.Errorf("%w: cannot announce departure of %s", core.ErrInvalidEventShape, p.UserID)
	}
	if user == nil {
		u, err := domain.NewUser(p.UserID, p.Username)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvalidEventShape, err)
		}
		user = u
	}
	return o.announceDeparture(ctx, from.ID, p.ChatID, user)
}

// announceDeparture records the departure durably, then tells the room and
// refreshes its summary. Nothing is sent if persistence fails.
func (o *Orchestrator) announceDeparture(ctx context.Context, from domain.ConnectionID, chat domain.RoomID, user *domain.User) error {
	rec, err := o.bridge.recordDeparture(ctx, user, chat)
	if err != nil {
		return err
	}
	o.deliver(from, core.RoomScope(chat, true), core.KindParticipantLeft, departure{
		ChatID:   chat,
		UserID:   user.ID,
		Username: user.Username,
		Message:  rec,
	})
	o.emitChatUpdated(ctx, from, chat)
	return nil
}

func (o *Orchestrator) emitChatUpdated(ctx context.Context, from domain.ConnectionID, chat domain.RoomID) {
	summary, err := o.bridge.summary(ctx, chat)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(chat)).Msg("chat summary unavailable, chat-updated skipped")
		return
	}
	o.deliver(from, core.RoomScope(chat, true), core.KindChatUpdated, summary)
}

// handleChatUpdated relays the client payload untouched.
func (o *Orchestrator) handleChatUpdated(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p chatUpdatedPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	scope, err := o.chatScope(p.ChatID)
	if err != nil {
		return err
	}
	o.deliver(from.ID, scope, core.KindChatUpdated, raw)
	return nil
}

func (o *Orchestrator) handleVideoChatMessage(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p videoChatPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	o.deliver(from.ID, core.RoomScope(p.RoomID, true), core.KindVideoChatMessage, videoChatMessage{
		RoomID:             p.RoomID,
		Content:            p.Content,
		Sender:             from.User,
		SenderConnectionID: from.ID,
		SentAt:             time.Now().UTC(),
	})
	return nil
}

func (o *Orchestrator) handleAuthenticate(ctx context.Context, from app.Connection, raw json.RawMessage) error {
	var p authenticatePayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	user, err := o.Authenticate(ctx, from.ID, p.Token)
	if err != nil {
		return err
	}
	o.reply(from.ID, core.KindAuthenticated, struct {
		User *domain.User `json:"user"`
	}{user})
	return nil
}

func (o *Orchestrator) handlePing(_ context.Context, from app.Connection, _ json.RawMessage) error {
	o.reply(from.ID, core.KindPong, nil)
	return nil
}
