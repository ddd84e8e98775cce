// Package memory is a process-local PersistenceService. Chats are created
// implicitly by their first message and vanish with the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/adapters/store"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Store struct {
	mu    sync.RWMutex
	chats map[domain.RoomID][]domain.MessageRecord
	now   func() time.Time
}

func New() *Store {
	return &Store{
		chats: make(map[domain.RoomID][]domain.MessageRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateMessage(ctx context.Context, senderID domain.UserID, chatID domain.RoomID, content string, kind domain.MessageType) (*domain.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.CheckMessage(senderID, chatID, content, kind); err != nil {
		return nil, err
	}
	rec := domain.MessageRecord{
		ID:        domain.MessageID(uuid.NewString()),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      kind,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.chats[chatID] = append(s.chats[chatID], rec)
	s.mu.Unlock()
	log.Debug().Str("module", "store.memory").Str("room", string(chatID)).Str("id", string(rec.ID)).Msg("message stored")
	return &rec, nil
}

func (s *Store) GetChatSummary(ctx context.Context, chatID domain.RoomID) (*domain.ChatSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.chats[chatID]
	if !ok || len(msgs) == 0 {
		return nil, store.ErrChatNotFound
	}
	last := msgs[len(msgs)-1]
	return &domain.ChatSummary{
		ChatID:       chatID,
		LastMessage:  &last,
		MessageCount: len(msgs),
		UpdatedAt:    last.CreatedAt,
	}, nil
}
