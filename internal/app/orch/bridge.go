package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// bridge wraps the persistence collaborator. Calls are detached from the
// caller's cancellation and bounded by timeout, so a sender that
// disconnects mid-call does not stop delivery to everyone else.
type bridge struct {
	store   core.PersistenceService
	timeout time.Duration
}

func (b *bridge) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.store == nil {
		return fmt.Errorf("%w: no store configured", core.ErrPersistenceFailure)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(ctx) }()
	select {
	case err := <-errc:
		if err != nil {
			return errors.Join(core.ErrPersistenceFailure, err)
		}
		return nil
	case <-ctx.Done():
		return errors.Join(core.ErrPersistenceFailure, ctx.Err())
	}
}

func (b *bridge) createMessage(ctx context.Context, sender *domain.User, chat domain.RoomID, content string, typ domain.MessageType) (*domain.MessageRecord, error) {
	var rec *domain.MessageRecord
	err := b.do(ctx, func(ctx context.Context) error {
		r, err := b.store.CreateMessage(ctx, sender.ID, chat, content, typ)
		if err != nil {
			return err
		}
		if r == nil {
			return errors.New("store returned no record")
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec.Sender == nil {
		rec.Sender = sender.Clone()
	}
	return rec, nil
}

// recordDeparture persists the system message announcing that user left chat.
func (b *bridge) recordDeparture(ctx context.Context, user *domain.User, chat domain.RoomID) (*domain.MessageRecord, error) {
	name := user.Username
	if name == "" {
		name = string(user.ID)
	}
	return b.createMessage(ctx, user, chat, name+" left the chat", domain.MessageSystem)
}

func (b *bridge) summary(ctx context.Context, chat domain.RoomID) (*domain.ChatSummary, error) {
	var out *domain.ChatSummary
	err := b.do(ctx, func(ctx context.Context) error {
		s, err := b.store.GetChatSummary(ctx, chat)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("store returned no summary")
		}
		out = s
		return nil
	})
	return out, err
}
