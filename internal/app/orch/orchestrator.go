package orch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPersistTimeout = 5 * time.Second
	DefaultEmptyRoomTTL   = 5 * time.Minute
	DefaultReapInterval   = time.Minute
)

var ErrAlreadyStarted = errors.New("orchestrator already started")

type Config struct {
	Persistence core.PersistenceService
	Auth        core.AuthService
	// Policy handles recipients whose send buffer is full. Nil means no action.
	Policy       app.Policy
	EmptyRooms   app.EmptyRoomPolicy
	EmptyRoomTTL time.Duration
	ReapInterval time.Duration
	// PersistTimeout bounds every persistence call; expiry is a persistence failure.
	PersistTimeout time.Duration
	// RequireAuth rejects room and broadcast events until an identity is attached.
	RequireAuth bool
	// LegacyGlobalFanout relays events without a room or target to every other connection.
	LegacyGlobalFanout bool
}

// Orchestrator is the signaling core: it owns the registry and the directory,
// routes inbound events and supervises connection lifecycles.
// Build one per server with New; instances share nothing.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.Directory
	Policy   app.Policy

	bridge       *bridge
	auth         core.AuthService
	handlers     map[core.Kind]handlerFunc
	validate     *validator.Validate
	requireAuth  bool
	legacyGlobal bool
	roomTTL      time.Duration
	reapEvery    time.Duration

	draining atomic.Bool
	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(cfg Config) *Orchestrator {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.EmptyRoomTTL <= 0 {
		cfg.EmptyRoomTTL = DefaultEmptyRoomTTL
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	reg := app.NewRegistry()
	o := &Orchestrator{
		Registry:     reg,
		Rooms:        app.NewDirectory(reg, cfg.EmptyRooms),
		Policy:       cfg.Policy,
		bridge:       &bridge{store: cfg.Persistence, timeout: cfg.PersistTimeout},
		auth:         cfg.Auth,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		requireAuth:  cfg.RequireAuth,
		legacyGlobal: cfg.LegacyGlobalFanout,
		roomTTL:      cfg.EmptyRoomTTL,
		reapEvery:    cfg.ReapInterval,
	}
	o.handlers = o.routes()
	return o
}

// Start begins accepting connections and runs the empty-room reaper when
// rooms are retained.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrAlreadyStarted
	}
	if o.draining.Load() {
		return core.ErrClosed
	}
	o.started = true
	ctx, o.cancel = context.WithCancel(ctx)
	o.done = make(chan struct{})

	if o.Rooms.Policy() != app.RetainEmpty {
		close(o.done)
		log.Info().Str("module", "orch").Msg("orchestrator started")
		return nil
	}
	go o.reapLoop(ctx)
	log.Info().Str("module", "orch").Dur("room_ttl", o.roomTTL).Msg("orchestrator started with room reaper")
	return nil
}

func (o *Orchestrator) reapLoop(ctx context.Context) {
	defer close(o.done)
	t := time.NewTicker(o.reapEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Rooms.Reap(o.roomTTL)
		}
	}
}

// Stop drains: it refuses new connections and closes every live transport.
// Departures during the drain are not announced.
func (o *Orchestrator) Stop() {
	if !o.draining.CompareAndSwap(false, true) {
		return
	}
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	n := o.Registry.Close()
	if done != nil {
		<-done
	}
	log.Info().Str("module", "orch").Int("closed", n).Msg("orchestrator stopped")
}

func (o *Orchestrator) Draining() bool { return o.draining.Load() }

// EvictRoom dissolves a room and tells every former member.
func (o *Orchestrator) EvictRoom(rid domain.RoomID) int {
	members := o.Rooms.Dissolve(rid)
	for _, sid := range members {
		o.reply(sid, core.KindLeft, roomAck{RoomID: rid, Reason: "evicted"})
	}
	return len(members)
}
