package models

import (
	"math"
	"time"
)

// PlaybackState tracks what an authenticated session is currently watching.
// Positions and durations are in milliseconds.
type PlaybackState struct {
	PlaySessionID string    `json:"play_session_id"`
	ItemID        string    `json:"item_id"`
	DurationMs    int64     `json:"duration_ms"`
	PositionMs    int64     `json:"position_ms"`
	Speed         float64   `json:"speed"`
	Paused        bool      `json:"paused"`
	StartedAt     time.Time `json:"started_at"`
	LastUpdate    time.Time `json:"last_update"`
}

// Predict extrapolates the position at now from the last observation.
// The result never falls below PositionMs: clock skew and negative speeds
// contribute nothing.
func (p *PlaybackState) Predict(now time.Time) int64 {
	elapsed := now.Sub(p.LastUpdate).Milliseconds()
	if elapsed <= 0 || p.Speed <= 0 {
		return p.PositionMs
	}
	return p.PositionMs + int64(math.Round(float64(elapsed)*p.Speed))
}

// Overruns reports whether position is past the end of a known duration.
func (p *PlaybackState) Overruns(position int64) bool {
	return p.DurationMs > 0 && position > p.DurationMs
}

// Observe records an explicit client position.
func (p *PlaybackState) Observe(positionMs int64, speed float64, paused bool, now time.Time) {
	p.PositionMs = positionMs
	p.Speed = speed
	p.Paused = paused
	p.LastUpdate = now
}
