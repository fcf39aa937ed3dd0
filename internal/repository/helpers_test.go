package repository

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/jellyvr/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Session{}, &models.CacheEntry{}, &models.VideoRecord{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func authenticatedSession(t *testing.T, userID, username, password string) *models.Session {
	t.Helper()

	s := models.NewPendingSession("secret-"+userID, "code-"+userID)
	require.NoError(t, s.Promote(models.Authenticated{
		UserID:          userID,
		UpstreamToken:   "token-" + userID,
		Username:        username,
		DerivedPassword: password,
	}))
	return s
}
