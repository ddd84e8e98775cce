// Package store holds what the persistence adapters share.
package store

import (
	"errors"
	"fmt"

	"github.com/dkeye/Parley/internal/domain"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyChatID  = errors.New("chat id empty")
	ErrEmptySender  = errors.New("sender id empty")
)

// CheckMessage applies the rules every backend enforces before a write.
func CheckMessage(sender domain.UserID, chat domain.RoomID, content string, typ domain.MessageType) error {
	if chat == "" {
		return ErrEmptyChatID
	}
	if sender == "" {
		return ErrEmptySender
	}
	if err := domain.ValidateContent(content, typ); err != nil {
		return fmt.Errorf("chat %s: %w", chat, err)
	}
	return nil
}
