package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/internal/service"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

const testItemID = "6d3f2a9b1c4e4f8a9b7d2e5c1a0f3b6d"

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mockReporter records progress reports.
type mockReporter struct {
	mu      sync.Mutex
	err     error
	reports []jellyfin.PlaybackProgressInfo
}

func (m *mockReporter) ReportPlaybackProgress(_ context.Context, _ string, info jellyfin.PlaybackProgressInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, info)
	return m.err
}

func (m *mockReporter) Reports() []jellyfin.PlaybackProgressInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jellyfin.PlaybackProgressInfo, len(m.reports))
	copy(out, m.reports)
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	repo     repository.SessionRepository
	sessions *service.SessionService
	reporter *mockReporter
	clock    *clock
	ex       *ProgressExtrapolator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Session{}))

	repo := repository.NewSessionRepository(db)
	sessions := service.NewSessionService(repo, nil)
	reporter := &mockReporter{}
	c := &clock{now: t0}

	return &fixture{
		repo:     repo,
		sessions: sessions,
		reporter: reporter,
		clock:    c,
		ex:       NewProgressExtrapolator(sessions, reporter, "").WithClock(c.Now),
	}
}

func (f *fixture) session(t *testing.T, userID string, playback *models.PlaybackState) *models.Session {
	t.Helper()

	s := models.NewPendingSession("secret", "code")
	require.NoError(t, s.Promote(models.Authenticated{
		UserID:          userID,
		UpstreamToken:   "token-" + userID,
		Username:        userID,
		DerivedPassword: "abcdef",
		LastPlayback:    playback,
	}))
	require.NoError(t, f.repo.Create(context.Background(), s))
	return s
}

func (f *fixture) playback(t *testing.T, s *models.Session) *models.PlaybackState {
	t.Helper()
	stored, err := f.repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Playback)
	return stored.Playback
}

func playing(positionMs, durationMs int64, speed float64) *models.PlaybackState {
	return &models.PlaybackState{
		PlaySessionID: "ps1",
		ItemID:        testItemID,
		DurationMs:    durationMs,
		PositionMs:    positionMs,
		Speed:         speed,
		StartedAt:     t0,
		LastUpdate:    t0,
	}
}

func TestTick_AdvancesPlayingSession(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "u1", playing(10000, 600000, 1))

	f.clock.Set(t0.Add(30 * time.Second))
	summary := f.ex.Tick(context.Background())
	assert.Equal(t, TickSummary{Updated: 1}, summary)

	reports := f.reporter.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, jellyfin.PlaybackProgressInfo{
		ItemID:                 testItemID,
		PlaySessionID:          "ps1",
		PositionTicks:          40000 * jellyfin.TicksPerMillisecond,
		IsPaused:               false,
		CanSeek:                true,
		PlayMethod:             jellyfin.PlayMethodTranscode,
		PlaybackStartTimeTicks: jellyfin.TimeToTicks(t0),
	}, reports[0])

	pb := f.playback(t, s)
	assert.Equal(t, int64(40000), pb.PositionMs)
	assert.True(t, f.clock.Now().Equal(pb.LastUpdate))
	assert.False(t, pb.Paused)
}

func TestTick_HonoursSpeed(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "u1", playing(0, 0, 1.5))

	f.clock.Set(t0.Add(10 * time.Second))
	f.ex.Tick(context.Background())

	assert.Equal(t, int64(15000), f.playback(t, s).PositionMs, "unknown duration never auto-pauses")
}

func TestTick_AutoPausesPastEnd(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "u1", playing(590000, 600000, 1))

	f.clock.Set(t0.Add(30 * time.Second))
	summary := f.ex.Tick(context.Background())
	assert.Equal(t, TickSummary{AutoPaused: 1}, summary)
	assert.Empty(t, f.reporter.Reports(), "auto-pause makes no upstream call")

	pb := f.playback(t, s)
	assert.True(t, pb.Paused)
	assert.Equal(t, int64(590000), pb.PositionMs)
	assert.True(t, f.clock.Now().Equal(pb.LastUpdate))

	f.clock.Set(t0.Add(60 * time.Second))
	summary = f.ex.Tick(context.Background())
	assert.Equal(t, TickSummary{Skipped: 1}, summary)
}

func TestTick_ReportFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.reporter.err = jellyfin.ErrUpstreamUnavailable
	s := f.session(t, "u1", playing(10000, 600000, 1))
	other := f.session(t, "u2", playing(0, 600000, 1))

	f.clock.Set(t0.Add(30 * time.Second))
	summary := f.ex.Tick(context.Background())
	assert.Equal(t, TickSummary{Failed: 2}, summary, "one failure does not stop the pass")

	pb := f.playback(t, s)
	assert.Equal(t, int64(10000), pb.PositionMs)
	assert.True(t, t0.Equal(pb.LastUpdate))
	assert.Equal(t, int64(0), f.playback(t, other).PositionMs)
}

func TestTick_SkipsIdleSessions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Create(context.Background(), models.NewPendingSession("s", "c")))
	f.session(t, "nothing", nil)
	paused := playing(1000, 600000, 1)
	paused.Paused = true
	f.session(t, "paused", paused)

	f.clock.Set(t0.Add(30 * time.Second))
	summary := f.ex.Tick(context.Background())
	assert.Equal(t, TickSummary{Skipped: 3}, summary)
	assert.Empty(t, f.reporter.Reports())
}

func TestTick_ClockSkewDoesNotRewind(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, "u1", playing(10000, 600000, 1))

	f.clock.Set(t0.Add(-time.Minute))
	f.ex.Tick(context.Background())

	assert.Equal(t, int64(10000), f.playback(t, s).PositionMs)
}

func TestPlayTicksPauseResync(t *testing.T) {
	f := newFixture(t)
	events := service.NewPlaybackService(f.repo, nil, "http://jellyfin:8096").WithClock(f.clock.Now)
	ctx := context.Background()

	s := f.session(t, "u1", playing(0, 600000, 1))
	s.Playback.Paused = true
	require.NoError(t, f.repo.Save(ctx, s))

	require.NoError(t, events.HandleEvent(ctx, s, testItemID, heresphere.Event{Event: heresphere.EventPlay, Time: 0, Speed: 1}))

	f.clock.Set(t0.Add(30 * time.Second))
	f.ex.Tick(ctx)
	f.clock.Set(t0.Add(60 * time.Second))
	f.ex.Tick(ctx)

	reports := f.reporter.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, 30000*jellyfin.TicksPerMillisecond, reports[0].PositionTicks)
	assert.Equal(t, 60000*jellyfin.TicksPerMillisecond, reports[1].PositionTicks)

	// The player reports it was actually behind; its position wins.
	f.clock.Set(t0.Add(70 * time.Second))
	stored, err := f.repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, events.HandleEvent(ctx, stored, testItemID, heresphere.Event{Event: heresphere.EventPause, Time: 65000, Speed: 1}))

	pb := f.playback(t, s)
	assert.True(t, pb.Paused)
	assert.Equal(t, int64(65000), pb.PositionMs)

	f.clock.Set(t0.Add(100 * time.Second))
	summary := f.ex.Tick(ctx)
	assert.Equal(t, TickSummary{Skipped: 1}, summary)
	assert.Len(t, f.reporter.Reports(), 2)
}

type failingStore struct{}

func (failingStore) List(context.Context) ([]*models.Session, error) {
	return nil, errors.New("database unavailable")
}

func (failingStore) Update(context.Context, *models.Session) error { return nil }

func TestTick_ListFailure(t *testing.T) {
	ex := NewProgressExtrapolator(failingStore{}, &mockReporter{}, "")
	assert.Equal(t, TickSummary{}, ex.Tick(context.Background()))
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	f.session(t, "u1", playing(0, 0, 1))
	f.clock.Set(t0.Add(time.Second))

	ex := NewProgressExtrapolator(f.sessions, f.reporter, "@every 1s").WithClock(f.clock.Now)
	require.NoError(t, ex.Start(context.Background()))
	assert.Error(t, ex.Start(context.Background()), "starting twice fails")

	require.Eventually(t, func() bool {
		return len(f.reporter.Reports()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	ex.Stop()
	ex.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	f := newFixture(t)
	ex := NewProgressExtrapolator(f.sessions, f.reporter, "not a schedule")
	assert.Error(t, ex.Start(context.Background()))
}
