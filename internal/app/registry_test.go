package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/core/coretest"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, r *Registry, sid domain.ConnectionID) *coretest.Conn {
	t.Helper()
	c := coretest.NewConn()
	_, err := r.Register(sid, c, nil)
	require.NoError(t, err)
	return c
}

func TestRegistry_Register(t *testing.T) {
	t.Run("should start connected with no identity and no rooms", func(t *testing.T) {
		r := NewRegistry()
		conn, err := r.Register("a", coretest.NewConn(), nil)
		require.NoError(t, err)
		require.Equal(t, domain.StateConnected, conn.State)
		require.Nil(t, conn.User)
		require.Empty(t, conn.Rooms)
	})

	t.Run("should reject a duplicate id", func(t *testing.T) {
		r := NewRegistry()
		register(t, r, "a")
		_, err := r.Register("a", coretest.NewConn(), nil)
		require.ErrorIs(t, err, core.ErrDuplicateConnection)
	})

	t.Run("should refuse registrations once closed", func(t *testing.T) {
		r := NewRegistry()
		c := register(t, r, "a")
		require.Equal(t, 1, r.Close())
		require.True(t, c.Closed())
		_, err := r.Register("b", coretest.NewConn(), nil)
		require.ErrorIs(t, err, core.ErrClosed)
	})
}

func TestRegistry_AttachIdentity(t *testing.T) {
	r := NewRegistry()
	register(t, r, "a")
	u := &domain.User{ID: "u1", Username: "alice"}

	t.Run("should fail for an unknown connection", func(t *testing.T) {
		require.ErrorIs(t, r.AttachIdentity("nope", u), core.ErrUnknownConnection)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		require.NoError(t, r.AttachIdentity("a", u))
		require.NoError(t, r.AttachIdentity("a", u))
		conn, err := r.Lookup("a")
		require.NoError(t, err)
		require.Equal(t, domain.StateAuthenticated, conn.State)
		require.Equal(t, domain.UserID("u1"), conn.UserID())
	})

	t.Run("should not leak the stored user to callers", func(t *testing.T) {
		u.Username = "mallory"
		conn, err := r.Lookup("a")
		require.NoError(t, err)
		require.Equal(t, "alice", conn.User.Username)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, DissolveEmpty)
	register(t, r, "a")
	require.NoError(t, r.AttachIdentity("a", &domain.User{ID: "u1", Username: "alice"}))
	require.NoError(t, d.Join("chat1", "a"))
	require.NoError(t, d.Join("chat2", "a"))

	conn, ok := r.Unregister("a")
	require.True(t, ok)
	require.Equal(t, []domain.RoomID{"chat1", "chat2"}, conn.Rooms)
	require.Equal(t, domain.StateDisconnected, conn.State)
	require.Equal(t, domain.UserID("u1"), conn.UserID())

	_, err := r.Lookup("a")
	require.ErrorIs(t, err, core.ErrUnknownConnection)
	_, found := r.ResolvePeer("u1")
	require.False(t, found)

	t.Run("should be a no-op the second time", func(t *testing.T) {
		_, ok := r.Unregister("a")
		require.False(t, ok)
	})
}

func TestRegistry_ResolvePeer(t *testing.T) {
	r := NewRegistry()
	register(t, r, "a")
	register(t, r, "b")
	require.NoError(t, r.AttachIdentity("b", &domain.User{ID: "bob", Username: "bob"}))

	sid, ok := r.ResolvePeer("bob")
	require.True(t, ok)
	require.Equal(t, domain.ConnectionID("b"), sid)

	sid, ok = r.ResolvePeer("a")
	require.True(t, ok)
	require.Equal(t, domain.ConnectionID("a"), sid)

	_, ok = r.ResolvePeer("carol")
	require.False(t, ok)

	t.Run("should fall back to an older tab when the newer one closes", func(t *testing.T) {
		r := NewRegistry()
		bob := &domain.User{ID: "bob", Username: "bob"}
		register(t, r, "b1")
		register(t, r, "b2")
		require.NoError(t, r.AttachIdentity("b1", bob))
		require.NoError(t, r.AttachIdentity("b2", bob))

		sid, ok := r.ResolvePeer("bob")
		require.True(t, ok)
		require.Equal(t, domain.ConnectionID("b2"), sid)

		_, ok = r.Unregister("b2")
		require.True(t, ok)
		sid, ok = r.ResolvePeer("bob")
		require.True(t, ok)
		require.Equal(t, domain.ConnectionID("b1"), sid)

		_, ok = r.Unregister("b1")
		require.True(t, ok)
		_, ok = r.ResolvePeer("bob")
		require.False(t, ok)
	})

	t.Run("should drop the old user when a tab re-identifies", func(t *testing.T) {
		r := NewRegistry()
		register(t, r, "x")
		register(t, r, "y")
		require.NoError(t, r.AttachIdentity("x", &domain.User{ID: "bob", Username: "bob"}))
		require.NoError(t, r.AttachIdentity("y", &domain.User{ID: "bob", Username: "bob"}))
		require.NoError(t, r.AttachIdentity("y", &domain.User{ID: "carol", Username: "carol"}))

		sid, ok := r.ResolvePeer("bob")
		require.True(t, ok)
		require.Equal(t, domain.ConnectionID("x"), sid)
		sid, ok = r.ResolvePeer("carol")
		require.True(t, ok)
		require.Equal(t, domain.ConnectionID("y"), sid)
	})
}

func TestRegistry_Send(t *testing.T) {
	r := NewRegistry()
	a := register(t, r, "a")
	dead := register(t, r, "dead")
	dead.Fail = core.ErrBackpressure

	t.Run("should deliver to a live transport", func(t *testing.T) {
		f, err := core.Encode(core.KindPong, nil)
		require.NoError(t, err)
		require.NoError(t, r.Send("a", f))
		require.Equal(t, []core.Kind{core.KindPong}, a.Kinds())
	})

	t.Run("should report a dead transport as delivery failure", func(t *testing.T) {
		err := r.Send("dead", core.Frame(`{}`))
		require.ErrorIs(t, err, core.ErrDeliveryFailure)
		require.ErrorIs(t, err, core.ErrBackpressure)
	})

	t.Run("should report an unknown connection", func(t *testing.T) {
		require.ErrorIs(t, r.Send("ghost", core.Frame(`{}`)), core.ErrUnknownConnection)
	})
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Register("a", coretest.NewConn(), cancel)
	require.NoError(t, err)

	require.True(t, r.Cancel("a"))
	require.True(t, errors.Is(ctx.Err(), context.Canceled))
	require.False(t, r.Cancel("ghost"))
}
