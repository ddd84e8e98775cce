package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDirectory_JoinLeave(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, DissolveEmpty)
	register(t, r, "a")
	register(t, r, "b")

	require.NoError(t, d.Join("chat1", "a"))
	require.NoError(t, d.Join("chat1", "b"))
	require.Equal(t, []domain.ConnectionID{"a", "b"}, d.Members("chat1"))

	conn, err := r.Lookup("a")
	require.NoError(t, err)
	require.True(t, conn.InRoom("chat1"))

	t.Run("should ignore a rejoin", func(t *testing.T) {
		require.NoError(t, d.Join("chat1", "a"))
		require.Len(t, d.Members("chat1"), 2)
	})

	t.Run("should remove membership in both directions", func(t *testing.T) {
		require.True(t, d.Leave("chat1", "a"))
		require.Equal(t, []domain.ConnectionID{"b"}, d.Members("chat1"))
		conn, err := r.Lookup("a")
		require.NoError(t, err)
		require.False(t, conn.InRoom("chat1"))
	})

	t.Run("should be a no-op to leave twice", func(t *testing.T) {
		require.False(t, d.Leave("chat1", "a"))
		require.Equal(t, []domain.ConnectionID{"b"}, d.Members("chat1"))
	})
}

func TestDirectory_Join_Errors(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, DissolveEmpty)

	t.Run("should reject an empty room id", func(t *testing.T) {
		require.ErrorIs(t, d.Join("", "a"), ErrEmptyRoomID)
	})

	t.Run("should not create a room for an unknown connection", func(t *testing.T) {
		require.ErrorIs(t, d.Join("chat1", "ghost"), core.ErrUnknownConnection)
		require.False(t, d.Has("chat1"))
	})
}

func TestDirectory_Members_UnknownRoom(t *testing.T) {
	d := NewDirectory(NewRegistry(), DissolveEmpty)
	members := d.Members("nowhere")
	require.NotNil(t, members)
	require.Empty(t, members)
}

func TestDirectory_EmptyRoomPolicy(t *testing.T) {
	t.Run("should dissolve on last leave", func(t *testing.T) {
		r := NewRegistry()
		d := NewDirectory(r, DissolveEmpty)
		register(t, r, "a")
		require.NoError(t, d.Join("chat1", "a"))
		d.Leave("chat1", "a")
		require.False(t, d.Has("chat1"))
		require.Empty(t, d.List())
	})

	t.Run("should retain until reaped past the ttl", func(t *testing.T) {
		r := NewRegistry()
		d := NewDirectory(r, RetainEmpty)
		now := time.Unix(1000, 0)
		d.now = func() time.Time { return now }
		register(t, r, "a")
		require.NoError(t, d.Join("chat1", "a"))
		d.Leave("chat1", "a")

		require.True(t, d.Has("chat1"))
		require.Equal(t, []domain.RoomInfo{{ID: "chat1", MemberCount: 0}}, d.List())

		now = now.Add(30 * time.Second)
		require.Empty(t, d.Reap(time.Minute))
		require.True(t, d.Has("chat1"))

		now = now.Add(time.Minute)
		require.Equal(t, []domain.RoomID{"chat1"}, d.Reap(time.Minute))
		require.False(t, d.Has("chat1"))
	})

	t.Run("should not reap a room that was rejoined", func(t *testing.T) {
		r := NewRegistry()
		d := NewDirectory(r, RetainEmpty)
		now := time.Unix(1000, 0)
		d.now = func() time.Time { return now }
		register(t, r, "a")
		require.NoError(t, d.Join("chat1", "a"))
		d.Leave("chat1", "a")
		require.NoError(t, d.Join("chat1", "a"))
		now = now.Add(time.Hour)
		require.Empty(t, d.Reap(time.Minute))
	})
}

func TestDirectory_Dissolve(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, RetainEmpty)
	register(t, r, "a")
	register(t, r, "b")
	require.NoError(t, d.Join("call", "a"))
	require.NoError(t, d.Join("call", "b"))
	require.NoError(t, d.Join("chat", "a"))

	require.Equal(t, []domain.ConnectionID{"a", "b"}, d.Dissolve("call"))
	require.False(t, d.Has("call"))

	a, err := r.Lookup("a")
	require.NoError(t, err)
	require.Equal(t, []domain.RoomID{"chat"}, a.Rooms)
	b, err := r.Lookup("b")
	require.NoError(t, err)
	require.Empty(t, b.Rooms)

	require.Nil(t, d.Dissolve("call"))
}

func TestDirectory_ConcurrentMembership(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, DissolveEmpty)
	const n = 50
	for i := range n {
		register(t, r, domain.ConnectionID(fmt.Sprintf("c%02d", i)))
	}

	var (
		wg  sync.WaitGroup
		dup atomic.Bool
	)
	for i := range n {
		sid := domain.ConnectionID(fmt.Sprintf("c%02d", i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 20 {
				_ = d.Join("hot", sid)
				d.Leave("hot", sid)
			}
			_ = d.Join("hot", sid)
		}()
		go func() {
			defer wg.Done()
			for range 20 {
				members := d.Members("hot")
				seen := make(map[domain.ConnectionID]bool, len(members))
				for _, m := range members {
					if seen[m] {
						dup.Store(true)
					}
					seen[m] = true
				}
			}
		}()
	}
	wg.Wait()

	require.False(t, dup.Load(), "duplicate member in snapshot")
	require.Len(t, d.Members("hot"), n)
	for _, sid := range d.Members("hot") {
		conn, err := r.Lookup(sid)
		require.NoError(t, err)
		require.True(t, conn.InRoom("hot"))
	}
}

func TestDirectory_JoinRacesUnregister(t *testing.T) {
	r := NewRegistry()
	d := NewDirectory(r, DissolveEmpty)
	register(t, r, "a")

	conn, ok := r.Unregister("a")
	require.True(t, ok)
	require.Empty(t, conn.Rooms)
	require.ErrorIs(t, d.Join("chat1", "a"), core.ErrUnknownConnection)
	require.Empty(t, d.Members("chat1"))
}
