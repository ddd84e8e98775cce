//go:generate go run go.uber.org/mock/mockgen -source=collaborators.go -destination=mocks/mock_collaborators.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Parley/internal/domain"
)

// PersistenceService is the durable store for chats and messages.
// The signaling core only calls it; it never owns the records.
type PersistenceService interface {
	CreateMessage(ctx context.Context, senderID domain.UserID, chatID domain.RoomID, content string, kind domain.MessageType) (*domain.MessageRecord, error)
	GetChatSummary(ctx context.Context, chatID domain.RoomID) (*domain.ChatSummary, error)
}

// AuthService validates session tokens issued by the HTTP layer.
type AuthService interface {
	VerifySession(ctx context.Context, token string) (*domain.User, error)
}
