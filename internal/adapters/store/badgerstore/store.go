// Package badgerstore is the durable PersistenceService, backed by BadgerDB.
package badgerstore

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dkeye/Parley/internal/adapters/store"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the database under path. An empty path keeps
// everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", path, err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Chat ids are encoded so one chat's prefix never matches another's keys.
func chatKey(chat domain.RoomID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(chat))
}

func messagePrefix(chat domain.RoomID) []byte {
	return []byte("msg:" + chatKey(chat) + ":")
}

// messageKey is "msg:{chat}:{unix_nano padded to 19}:{uuid}" so a prefix
// scan walks a chat in chronological order.
func messageKey(rec domain.MessageRecord) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", chatKey(rec.ChatID), rec.CreatedAt.UnixNano(), rec.ID)
}

func countKey(chat domain.RoomID) []byte {
	return []byte("count:" + chatKey(chat))
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
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		n, err := readCount(txn, chatID)
		if err != nil && !errors.Is(err, store.ErrChatNotFound) {
			return err
		}
		if err := txn.Set(messageKey(rec), value); err != nil {
			return err
		}
		return txn.Set(countKey(chatID), binary.BigEndian.AppendUint64(nil, n+1))
	})
	if err != nil {
		return nil, fmt.Errorf("store message in %s: %w", chatID, err)
	}
	log.Debug().Str("module", "store.badger").Str("room", string(chatID)).Str("id", string(rec.ID)).Msg("message stored")
	return &rec, nil
}

func readCount(txn *badger.Txn, chat domain.RoomID) (uint64, error) {
	item, err := txn.Get(countKey(chat))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, store.ErrChatNotFound
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("corrupt counter for %s", chat)
		}
		n = binary.BigEndian.Uint64(v)
		return nil
	})
	return n, err
}

// GetChatSummary reads the counter and the newest message with a reverse
// prefix scan.
func (s *Store) GetChatSummary(ctx context.Context, chatID domain.RoomID) (*domain.ChatSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sum domain.ChatSummary
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := readCount(txn, chatID)
		if err != nil {
			return err
		}
		prefix := messagePrefix(chatID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(slices.Concat(prefix, []byte("9999999999999999999")))
		if !it.ValidForPrefix(prefix) {
			return store.ErrChatNotFound
		}
		var last domain.MessageRecord
		if err := it.Item().Value(func(v []byte) error {
			return json.Unmarshal(v, &last)
		}); err != nil {
			return err
		}
		sum = domain.ChatSummary{
			ChatID:       chatID,
			LastMessage:  &last,
			MessageCount: int(n),
			UpdatedAt:    last.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
