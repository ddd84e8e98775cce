package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

func kindsOf(t *testing.T, batch []json.RawMessage) []core.Kind {
	t.Helper()
	out := make([]core.Kind, 0, len(batch))
	for _, raw := range batch {
		env, err := core.DecodeEnvelope(raw)
		require.NoError(t, err)
		out = append(out, env.Type)
	}
	return out
}

func TestSignal_Poll(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver replies on the next receive", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{PollWait: 50 * time.Millisecond})
		sid, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)

		require.NoError(t, ctl.SendPoll(ctx, sid, []byte(`{"type":"ping"}`)))
		batch, err := ctl.ReceivePoll(ctx, sid)
		require.NoError(t, err)
		require.Equal(t, []core.Kind{core.KindPong}, kindsOf(t, batch))
	})

	t.Run("should return an empty batch when nothing happens", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{PollWait: 20 * time.Millisecond})
		sid, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)

		batch, err := ctl.ReceivePoll(ctx, sid)
		require.NoError(t, err)
		require.Empty(t, batch)
	})

	t.Run("should wake a waiting receive when a frame arrives", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{PollWait: 2 * time.Second})
		a, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)
		b, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)
		for _, sid := range []domain.ConnectionID{a, b} {
			require.NoError(t, ctl.SendPoll(ctx, sid, []byte(`{"type":"join-room","payload":{"roomId":"r1"}}`)))
		}
		_, err = ctl.ReceivePoll(ctx, a)
		require.NoError(t, err)
		_, err = ctl.ReceivePoll(ctx, b)
		require.NoError(t, err)

		got := make(chan []json.RawMessage, 1)
		go func() {
			batch, _ := ctl.ReceivePoll(ctx, b)
			got <- batch
		}()
		require.NoError(t, ctl.SendPoll(ctx, a, []byte(`{"type":"video-chat-message","payload":{"roomId":"r1","content":"hi"}}`)))

		select {
		case batch := <-got:
			require.Equal(t, []core.Kind{core.KindVideoChatMessage}, kindsOf(t, batch))
		case <-time.After(time.Second):
			t.Fatal("receive did not wake")
		}
	})

	t.Run("should reject unknown sessions", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{})
		_, err := ctl.ReceivePoll(ctx, "nope")
		require.ErrorIs(t, err, core.ErrUnknownConnection)
		require.ErrorIs(t, ctl.SendPoll(ctx, "nope", []byte(`{}`)), core.ErrUnknownConnection)
		require.False(t, ctl.ClosePoll("nope"))
	})

	t.Run("should expire idle sessions", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{PollIdle: time.Minute})
		sid, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)

		require.Zero(t, ctl.expirePolls(time.Now()))
		require.Equal(t, 1, ctl.expirePolls(time.Now().Add(2*time.Minute)))
		require.Zero(t, ctl.Orch.Registry.Count())

		_, err = ctl.ReceivePoll(ctx, sid)
		require.ErrorIs(t, err, core.ErrUnknownConnection)
	})

	t.Run("should close sessions when the service drains", func(t *testing.T) {
		ctl := newController(t, orch.Config{}, Options{})
		sid, err := ctl.OpenPoll(ctx, "")
		require.NoError(t, err)

		ctl.Orch.Stop()
		require.Eventually(t, func() bool {
			_, ok := ctl.polls.get(sid)
			return !ok
		}, time.Second, 5*time.Millisecond)

		_, err = ctl.OpenPoll(ctx, "")
		require.ErrorIs(t, err, core.ErrClosed)
	})
}
