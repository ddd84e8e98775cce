package app

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var ErrEmptyRoomID = errors.New("empty room id")

type room struct {
	members    map[domain.ConnectionID]struct{}
	emptySince time.Time
}

// Directory maps rooms to member connection ids. It holds ids only; a room
// never owns a connection's lifecycle.
//
// Lock order is Directory.mu then Registry.mu, never the reverse.
type Directory struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*room
	reg    *Registry
	policy EmptyRoomPolicy
	now    func() time.Time
}

func NewDirectory(reg *Registry, policy EmptyRoomPolicy) *Directory {
	if policy == "" {
		policy = DissolveEmpty
	}
	return &Directory{
		rooms:  make(map[domain.RoomID]*room),
		reg:    reg,
		policy: policy,
		now:    time.Now,
	}
}

func (d *Directory) Policy() EmptyRoomPolicy { return d.policy }

// Join is idempotent and creates the room on first use.
func (d *Directory) Join(rid domain.RoomID, sid domain.ConnectionID) error {
	if rid == "" {
		return ErrEmptyRoomID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rm, ok := d.rooms[rid]
	if !ok {
		rm = &room{members: make(map[domain.ConnectionID]struct{})}
		d.rooms[rid] = rm
	}
	if err := d.reg.addRoom(sid, rid); err != nil {
		if !ok {
			delete(d.rooms, rid)
		}
		return err
	}
	rm.members[sid] = struct{}{}
	rm.emptySince = time.Time{}
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("room", string(rid)).Int("members", len(rm.members)).Msg("member joined")
	return nil
}

// Leave reports whether the connection was a member.
func (d *Directory) Leave(rid domain.RoomID, sid domain.ConnectionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reg.removeRoom(sid, rid)
	rm, ok := d.rooms[rid]
	if !ok {
		return false
	}
	if _, ok := rm.members[sid]; !ok {
		return false
	}
	delete(rm.members, sid)
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("room", string(rid)).Int("members", len(rm.members)).Msg("member left")
	if len(rm.members) == 0 {
		d.onEmpty(rid, rm)
	}
	return true
}

func (d *Directory) onEmpty(rid domain.RoomID, rm *room) {
	switch d.policy {
	case RetainEmpty:
		rm.emptySince = d.now()
	default:
		delete(d.rooms, rid)
		log.Debug().Str("module", "app.directory").Str("room", string(rid)).Msg("empty room dissolved")
	}
}

// Members is a consistent snapshot; unknown rooms have no members.
func (d *Directory) Members(rid domain.RoomID) []domain.ConnectionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rm, ok := d.rooms[rid]
	if !ok {
		return []domain.ConnectionID{}
	}
	ids := lo.Keys(rm.members)
	slices.Sort(ids)
	return ids
}

func (d *Directory) Has(rid domain.RoomID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[rid]
	return ok
}

// Dissolve force-removes a room and returns who was in it.
func (d *Directory) Dissolve(rid domain.RoomID) []domain.ConnectionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	rm, ok := d.rooms[rid]
	if !ok {
		return nil
	}
	ids := lo.Keys(rm.members)
	for _, sid := range ids {
		d.reg.removeRoom(sid, rid)
	}
	delete(d.rooms, rid)
	slices.Sort(ids)
	log.Info().Str("module", "app.directory").Str("room", string(rid)).Int("members", len(ids)).Msg("room dissolved")
	return ids
}

func (d *Directory) List() []domain.RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(d.rooms))
	for rid, rm := range d.rooms {
		out = append(out, domain.RoomInfo{ID: rid, MemberCount: len(rm.members)})
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Reap removes retained rooms that have been empty for at least ttl.
func (d *Directory) Reap(ttl time.Duration) []domain.RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	var reaped []domain.RoomID
	for rid, rm := range d.rooms {
		if len(rm.members) > 0 || rm.emptySince.IsZero() {
			continue
		}
		if now.Sub(rm.emptySince) >= ttl {
			delete(d.rooms, rid)
			reaped = append(reaped, rid)
		}
	}
	if len(reaped) > 0 {
		slices.Sort(reaped)
		log.Info().Str("module", "app.directory").Int("rooms", len(reaped)).Msg("reaped empty rooms")
	}
	return reaped
}
