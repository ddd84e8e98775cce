package domain

import (
	"errors"
	"time"
)

const MaxContentLen = 4096

var (
	ErrContentEmpty   = errors.New("message content empty")
	ErrContentTooLong = errors.New("message content too long")
	ErrInvalidType    = errors.New("invalid message type")
)

type MessageID string

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// MessageRecord is the durable form of a chat message as returned by persistence.
type MessageRecord struct {
	ID        MessageID   `json:"id"`
	ChatID    RoomID      `json:"chatId"`
	SenderID  UserID      `json:"senderId"`
	Sender    *User       `json:"sender,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ChatSummary is what chat lists render: the latest message and a counter.
type ChatSummary struct {
	ChatID       RoomID         `json:"chatId"`
	LastMessage  *MessageRecord `json:"lastMessage,omitempty"`
	MessageCount int            `json:"messageCount"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ValidateContent checks what every store enforces before writing.
func ValidateContent(content string, t MessageType) error {
	if content == "" {
		return ErrContentEmpty
	}
	if len(content) > MaxContentLen {
		return ErrContentTooLong
	}
	if !t.Valid() {
		return ErrInvalidType
	}
	return nil
}
