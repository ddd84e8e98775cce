package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyRoomPolicy(t *testing.T) {
	for in, want := range map[string]EmptyRoomPolicy{
		"":         DissolveEmpty,
		"dissolve": DissolveEmpty,
		"retain":   RetainEmpty,
	} {
		got, err := ParseEmptyRoomPolicy(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseEmptyRoomPolicy("forever")
	require.Error(t, err)
}

func TestSimplePolicy_KicksSlowMembers(t *testing.T) {
	require.Equal(t, KickMember, SimplePolicy{}.OnBackPressure(Connection{ID: "a"}))
}
