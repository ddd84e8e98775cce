package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Connection is a read-only snapshot of one registry entry.
type Connection struct {
	ID          domain.ConnectionID
	User        *domain.User
	Rooms       []domain.RoomID
	State       domain.ConnState
	ConnectedAt time.Time
}

func (c Connection) Authenticated() bool { return c.User != nil }

// UserID is empty until an identity is attached.
func (c Connection) UserID() domain.UserID {
	if c.User == nil {
		return ""
	}
	return c.User.ID
}

func (c Connection) InRoom(room domain.RoomID) bool {
	return slices.Contains(c.Rooms, room)
}

type connEntry struct {
	user        *domain.User
	rooms       map[domain.RoomID]struct{}
	signal      core.SignalConnection
	cancel      context.CancelFunc
	state       domain.ConnState
	connectedAt time.Time
	identSeq    uint64
}

func (e *connEntry) snapshot(sid domain.ConnectionID) Connection {
	rooms := lo.Keys(e.rooms)
	slices.Sort(rooms)
	return Connection{
		ID:          sid,
		User:        e.user.Clone(),
		Rooms:       rooms,
		State:       e.state,
		ConnectedAt: e.connectedAt,
	}
}

// Registry owns every live connection: its transport handle, identity and
// room memberships. Room membership is only written by Directory.
type Registry struct {
	mu       sync.RWMutex
	conns    map[domain.ConnectionID]*connEntry
	byUser   map[domain.UserID]map[domain.ConnectionID]struct{}
	identSeq uint64
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[domain.ConnectionID]*connEntry),
		byUser: make(map[domain.UserID]map[domain.ConnectionID]struct{}),
	}
}

func (r *Registry) Register(sid domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Connection{}, core.ErrClosed
	}
	if _, ok := r.conns[sid]; ok {
		return Connection{}, core.ErrDuplicateConnection
	}
	e := &connEntry{
		rooms:       make(map[domain.RoomID]struct{}),
		signal:      sig,
		cancel:      cancel,
		state:       domain.StateConnected,
		connectedAt: time.Now(),
	}
	r.conns[sid] = e
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return e.snapshot(sid), nil
}

// AttachIdentity is idempotent. Attaching a different user replaces the identity.
func (r *Registry) AttachIdentity(sid domain.ConnectionID, user *domain.User) error {
	if user == nil {
		return domain.ErrUserIDEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return core.ErrUnknownConnection
	}
	if e.user != nil && e.user.ID != user.ID {
		r.unindex(e.user.ID, sid)
	}
	r.identSeq++
	e.user = user.Clone()
	e.state = domain.StateAuthenticated
	e.identSeq = r.identSeq
	if r.byUser[user.ID] == nil {
		r.byUser[user.ID] = make(map[domain.ConnectionID]struct{})
	}
	r.byUser[user.ID][sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("identity attached")
	return nil
}

// Unregister removes the connection and returns what it was, so the caller
// can evict it from its rooms. Absent connections report false.
func (r *Registry) Unregister(sid domain.ConnectionID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, sid)
	if e.user != nil {
		r.unindex(e.user.ID, sid)
	}
	snap := e.snapshot(sid)
	snap.State = domain.StateDisconnected
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(snap.Rooms)).Msg("unregistered connection")
	return snap, true
}

func (r *Registry) Lookup(sid domain.ConnectionID) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[sid]
	if !ok {
		return Connection{}, core.ErrUnknownConnection
	}
	return e.snapshot(sid), nil
}

// ResolvePeer maps a remote target to a live connection: a user id first
// (its most recently authenticated connection still open), then a raw
// connection id.
func (r *Registry) ResolvePeer(target string) (domain.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best    domain.ConnectionID
		bestSeq uint64
	)
	for sid := range r.byUser[domain.UserID(target)] {
		if e := r.conns[sid]; e != nil && e.identSeq > bestSeq {
			best, bestSeq = sid, e.identSeq
		}
	}
	if best != "" {
		return best, true
	}
	if _, ok := r.conns[domain.ConnectionID(target)]; ok {
		return domain.ConnectionID(target), true
	}
	return "", false
}

// Send is best effort. A dead transport is logged and reported, never raised.
func (r *Registry) Send(sid domain.ConnectionID, f core.Frame) error {
	r.mu.RLock()
	e, ok := r.conns[sid]
	r.mu.RUnlock()
	if !ok {
		return core.ErrUnknownConnection
	}
	if err := e.signal.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("send failed")
		return errors.Join(core.ErrDeliveryFailure, err)
	}
	return nil
}

func (r *Registry) IDs() []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := lo.Keys(r.conns)
	slices.Sort(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the transport of a connection; its pumps then disconnect it.
func (r *Registry) Cancel(sid domain.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.conns[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled connection")
	return true
}

// Close refuses further registrations and tears down every live transport.
func (r *Registry) Close() int {
	r.mu.Lock()
	r.closed = true
	entries := lo.Values(r.conns)
	r.mu.Unlock()
	for _, e := range entries {
		if e.cancel != nil {
			e.cancel()
		}
		e.signal.Close()
	}
	log.Info().Str("module", "app.registry").Int("connections", len(entries)).Msg("registry closed")
	return len(entries)
}

// unindex must be called with mu held.
func (r *Registry) unindex(user domain.UserID, sid domain.ConnectionID) {
	set := r.byUser[user]
	delete(set, sid)
	if len(set) == 0 {
		delete(r.byUser, user)
	}
}

func (r *Registry) addRoom(sid domain.ConnectionID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return core.ErrUnknownConnection
	}
	e.rooms[room] = struct{}{}
	return nil
}

func (r *Registry) removeRoom(sid domain.ConnectionID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[sid]; ok {
		delete(e.rooms, room)
	}
}
