package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

	require.NoError(t, db.AutoMigrate(&models.Session{}, &models.CacheEntry{}, &models.VideoRecord{}))
	return db
}

// fixedClock is a settable time source safe for concurrent use.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeJellyfin records calls and returns canned results.
type fakeJellyfin struct {
	mu sync.Mutex

	approved bool
	initErr  error
	pollErr  error
	authErr  error
	capsErr  error
	infoErr  error
	startErr error
	stopErr  error
	info     *jellyfin.PlaybackInfoResponse

	initCalls int
	authCalls int
	capsCalls int
	starts    []jellyfin.PlaybackStartInfo
	stops     []jellyfin.PlaybackStopInfo
}

func (f *fakeJellyfin) InitiateQuickConnect(context.Context) (*jellyfin.QuickConnectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &jellyfin.QuickConnectResult{Secret: "qc-secret", Code: "123456"}, nil
}

func (f *fakeJellyfin) QuickConnectApproved(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved, f.pollErr
}

func (f *fakeJellyfin) AuthenticateWithQuickConnect(context.Context, string) (*jellyfin.AuthenticationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &jellyfin.AuthenticationResult{
		User:        &jellyfin.User{ID: "user-1", Name: "alice"},
		AccessToken: "access-token",
	}, nil
}

func (f *fakeJellyfin) ReportCapabilities(context.Context, string, jellyfin.ClientCapabilities) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capsCalls++
	return f.capsErr
}

func (f *fakeJellyfin) PlaybackInfo(context.Context, string, string, string) (*jellyfin.PlaybackInfoResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeJellyfin) ReportPlaybackStart(_ context.Context, _ string, info jellyfin.PlaybackStartInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, info)
	return f.startErr
}

func (f *fakeJellyfin) ReportPlaybackStopped(_ context.Context, _ string, info jellyfin.PlaybackStopInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, info)
	return f.stopErr
}

// createAuthenticated persists an authenticated session for userID.
func createAuthenticated(t *testing.T, repo repository.SessionRepository, userID string) *models.Session {
	t.Helper()

	s := models.NewPendingSession("secret", "code")
	require.NoError(t, s.Promote(models.Authenticated{
		UserID:          userID,
		UpstreamToken:   "token-" + userID,
		Username:        "name-" + userID,
		DerivedPassword: "abcdef",
	}))
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}
