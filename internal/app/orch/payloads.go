package orch

import (
	"time"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/pion/webrtc/v4"
)

type roomPayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,max=128"`
}

type roomAck struct {
	RoomID      domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
	Reason      string        `json:"reason,omitempty"`
}

// messagePayload is either a pending message or a full record already
// persisted elsewhere (ID set).
type messagePayload struct {
	ID        domain.MessageID   `json:"id,omitempty" validate:"max=128"`
	ChatID    domain.RoomID      `json:"chatId,omitempty" validate:"max=128"`
	Content   string             `json:"content" validate:"required,max=4096"`
	Type      domain.MessageType `json:"type,omitempty"`
	SenderID  domain.UserID      `json:"senderId,omitempty"`
	Sender    *domain.User       `json:"sender,omitempty"`
	CreatedAt time.Time          `json:"createdAt,omitzero"`
}

type messageDeletedPayload struct {
	ChatID    domain.RoomID    `json:"chatId" validate:"required,max=128"`
	MessageID domain.MessageID `json:"messageId" validate:"required,max=128"`
	DeletedBy domain.UserID    `json:"deletedBy,omitempty"`
}

type participantLeftPayload struct {
	ChatID   domain.RoomID `json:"chatId" validate:"required,max=128"`
	UserID   domain.UserID `json:"userId,omitempty"`
	Username string        `json:"username,omitempty"`
}

type departure struct {
	ChatID   domain.RoomID         `json:"chatId"`
	UserID   domain.UserID         `json:"userId"`
	Username string                `json:"username"`
	Message  *domain.MessageRecord `json:"message"`
}

type chatUpdatedPayload struct {
	ChatID domain.RoomID `json:"chatId,omitempty" validate:"max=128"`
}

type videoChatPayload struct {
	RoomID  domain.RoomID `json:"roomId" validate:"required,max=128"`
	Content string        `json:"content" validate:"required,max=4096"`
}

type videoChatMessage struct {
	RoomID             domain.RoomID       `json:"roomId"`
	Content            string              `json:"content"`
	Sender             *domain.User        `json:"sender,omitempty"`
	SenderConnectionID domain.ConnectionID `json:"senderConnectionId"`
	SentAt             time.Time           `json:"sentAt"`
}

type authenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type descriptionPayload struct {
	Offer        *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer       *webrtc.SessionDescription `json:"answer,omitempty"`
	RemoteUserID string                     `json:"remoteUserId,omitempty" validate:"max=128"`
	RoomID       domain.RoomID              `json:"roomId,omitempty" validate:"max=128"`
}

type candidatePayload struct {
	Candidate    *webrtc.ICECandidateInit `json:"candidate" validate:"required"`
	RemoteUserID string                   `json:"remoteUserId,omitempty" validate:"max=128"`
	RoomID       domain.RoomID            `json:"roomId,omitempty" validate:"max=128"`
}

// relayedSignal is what the remote peer receives; exactly one of the
// descriptor fields is set.
type relayedSignal struct {
	Offer            *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer           *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate        *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	FromUserID       domain.UserID              `json:"fromUserId,omitempty"`
	FromConnectionID domain.ConnectionID        `json:"fromConnectionId"`
	RoomID           domain.RoomID              `json:"roomId,omitempty"`
}
