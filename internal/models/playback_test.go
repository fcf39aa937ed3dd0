package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackState_Predict(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state PlaybackState
		now   time.Time
		want  int64
	}{
		{
			name:  "normal speed",
			state: PlaybackState{PositionMs: 5000, Speed: 1, LastUpdate: base},
			now:   base.Add(30 * time.Second),
			want:  35000,
		},
		{
			name:  "double speed",
			state: PlaybackState{PositionMs: 1000, Speed: 2, LastUpdate: base},
			now:   base.Add(10 * time.Second),
			want:  21000,
		},
		{
			name:  "fractional speed rounds",
			state: PlaybackState{PositionMs: 0, Speed: 1.5, LastUpdate: base},
			now:   base.Add(1001 * time.Millisecond),
			want:  1502,
		},
		{
			name:  "clock went backwards",
			state: PlaybackState{PositionMs: 5000, Speed: 1, LastUpdate: base},
			now:   base.Add(-time.Minute),
			want:  5000,
		},
		{
			name:  "negative speed",
			state: PlaybackState{PositionMs: 5000, Speed: -1, LastUpdate: base},
			now:   base.Add(time.Minute),
			want:  5000,
		},
		{
			name:  "zero speed",
			state: PlaybackState{PositionMs: 5000, Speed: 0, LastUpdate: base},
			now:   base.Add(time.Minute),
			want:  5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Predict(tt.now))
		})
	}
}

func TestPlaybackState_Overruns(t *testing.T) {
	p := PlaybackState{DurationMs: 600000}
	assert.False(t, p.Overruns(600000))
	assert.True(t, p.Overruns(620000))

	unknown := PlaybackState{}
	assert.False(t, unknown.Overruns(1<<40), "unknown duration never overruns")
}

func TestPlaybackState_Observe(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := PlaybackState{PositionMs: 99999, Speed: 1}

	p.Observe(80000, 1.25, true, now)

	assert.Equal(t, int64(80000), p.PositionMs)
	assert.Equal(t, 1.25, p.Speed)
	assert.True(t, p.Paused)
	assert.Equal(t, now, p.LastUpdate)
}

func TestCacheEntry_IsStale(t *testing.T) {
	built := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := CacheEntry{LastUpdated: built}
	ttl := 120 * time.Second

	assert.False(t, entry.IsStale(built.Add(119*time.Second), ttl))
	assert.False(t, entry.IsStale(built.Add(120*time.Second), ttl))
	assert.True(t, entry.IsStale(built.Add(121*time.Second), ttl))
}
