package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/jellyvr/internal/models"
)

func TestSessionRows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	pending := models.NewPendingSession("top-secret", "ABC123")
	pending.ID = models.NewULID()

	alice := models.NewPendingSession("s1", "X")
	alice.ID = models.NewULID()
	require.NoError(t, alice.Promote(models.Authenticated{
		UserID:          "u1",
		UpstreamToken:   "tok",
		Username:        "Alice",
		DerivedPassword: "qwerty",
	}))
	require.NoError(t, alice.SetPlayback(&models.PlaybackState{
		ItemID:     "abc",
		DurationMs: 120000,
		PositionMs: 30000,
		Speed:      1,
		LastUpdate: now.Add(-10 * time.Second),
	}))

	rows := sessionRows([]*models.Session{pending, alice}, "", now)
	require.Len(t, rows, 2)

	assert.Equal(t, "pending", rows[0].Kind)
	assert.Equal(t, "ABC123", rows[0].PairingCode)
	assert.Empty(t, rows[0].Username)

	assert.Equal(t, "authenticated", rows[1].Kind)
	assert.Equal(t, "Alice", rows[1].Username)
	assert.Equal(t, "playing abc 40s/2m0s", rows[1].Playback)

	t.Run("user filter", func(t *testing.T) {
		rows := sessionRows([]*models.Session{pending, alice}, "alc", now)
		require.Len(t, rows, 1)
		assert.Equal(t, "u1", rows[0].UserID)

		assert.Empty(t, sessionRows([]*models.Session{pending, alice}, "bob", now))
	})
}

func TestRenderSessions(t *testing.T) {
	assert.Equal(t, "No sessions.", renderSessions(nil, false))

	out := renderSessions([]sessionRow{{
		ID:       "01HX",
		Kind:     "authenticated",
		Username: "alice",
		UserID:   "u1",
	}}, false)

	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "qwerty")
}
