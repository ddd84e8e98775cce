package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when the file is missing", func(t *testing.T) {
		cfg, err := Load([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--mode", "debug"})
		require.NoError(t, err)
		require.Equal(t, "debug", cfg.Mode)
		require.Equal(t, 8080, cfg.Port)
		require.Equal(t, 5*time.Second, cfg.Signal.PersistTimeout)
		require.True(t, cfg.Signal.LegacyGlobalFanout)
		require.False(t, cfg.Signal.RequireAuth)
		require.Equal(t, "dissolve", cfg.Signal.EmptyRoomPolicy)
		require.Equal(t, 50, cfg.RateLimit.Events)
		require.Equal(t, "memory", cfg.Store.Driver)
		require.Equal(t, 25*time.Second, cfg.Poll.Wait)
	})

	t.Run("should read nested keys from the file", func(t *testing.T) {
		path := writeConfig(t, `
mode: debug
port: 9001
signal:
  require_auth: true
  legacy_global_fanout: false
  empty_room_policy: retain
  empty_room_ttl: 30s
store:
  driver: badger
  path: /tmp/parley
`)
		cfg, err := Load([]string{"--config", path})
		require.NoError(t, err)
		require.Equal(t, 9001, cfg.Port)
		require.True(t, cfg.Signal.RequireAuth)
		require.False(t, cfg.Signal.LegacyGlobalFanout)
		require.Equal(t, "retain", cfg.Signal.EmptyRoomPolicy)
		require.Equal(t, 30*time.Second, cfg.Signal.EmptyRoomTTL)
		require.Equal(t, "badger", cfg.Store.Driver)
	})

	t.Run("should let env override the file and flags override env", func(t *testing.T) {
		path := writeConfig(t, "mode: debug\nport: 9001\n")
		t.Setenv("PARLEY_PORT", "9002")
		t.Setenv("PARLEY_SIGNAL_REQUIRE_AUTH", "true")

		cfg, err := Load([]string{"--config", path})
		require.NoError(t, err)
		require.Equal(t, 9002, cfg.Port)
		require.True(t, cfg.Signal.RequireAuth)

		cfg, err = Load([]string{"--config", path, "--port", "9003"})
		require.NoError(t, err)
		require.Equal(t, 9003, cfg.Port)
	})

	t.Run("should require a secret in release mode", func(t *testing.T) {
		path := writeConfig(t, "mode: release\n")
		_, err := Load([]string{"--config", path})
		require.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("should reject an unknown store driver", func(t *testing.T) {
		path := writeConfig(t, "mode: debug\nstore:\n  driver: postgres\n")
		_, err := Load([]string{"--config", path})
		require.ErrorIs(t, err, ErrUnknownStoreDriver)
	})

	t.Run("should fail on unknown flags", func(t *testing.T) {
		_, err := Load([]string{"--nope"})
		require.Error(t, err)
	})
}
