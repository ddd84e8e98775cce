package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect registers a freshly opened transport. cancel is invoked when the
// core wants the transport gone (drain, kick).
func (o *Orchestrator) Connect(sid domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc) (app.Connection, error) {
	if o.draining.Load() {
		return app.Connection{}, core.ErrClosed
	}
	return o.Registry.Register(sid, sig, cancel)
}

// Authenticate verifies token and binds the resulting identity to sid.
func (o *Orchestrator) Authenticate(ctx context.Context, sid domain.ConnectionID, token string) (*domain.User, error) {
	if o.auth == nil {
		return nil, errors.Join(core.ErrUnauthenticated, errors.New("no auth service configured"))
	}
	user, err := o.auth.VerifySession(ctx, token)
	if err != nil {
		return nil, errors.Join(core.ErrUnauthenticated, err)
	}
	if user == nil {
		return nil, core.ErrUnauthenticated
	}
	if err := o.Registry.AttachIdentity(sid, user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// Disconnect is safe to call more than once. The connection leaves every
// room; members are told only when it had an identity and the service is
// not draining.
func (o *Orchestrator) Disconnect(ctx context.Context, sid domain.ConnectionID) {
	conn, ok := o.Registry.Unregister(sid)
	if !ok {
		return
	}
	for _, rid := range conn.Rooms {
		o.Rooms.Leave(rid, sid)
	}
	if !conn.Authenticated() || o.draining.Load() {
		return
	}
	for _, rid := range conn.Rooms {
		if err := o.announceDeparture(ctx, sid, rid, conn.User); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(rid)).Msg("departure not announced")
		}
	}
}
