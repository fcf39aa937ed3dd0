// Package repository defines data access interfaces for jellyvr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/jmylchreest/jellyvr/internal/models"
)

// SessionRepository defines operations for session persistence.
// Lookups return (nil, nil) when nothing matches.
type SessionRepository interface {
	// Create inserts a new session, assigning its ID.
	Create(ctx context.Context, session *models.Session) error
	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Session, error)
	// Save writes every column of an existing session. Last writer wins.
	Save(ctx context.Context, session *models.Session) error
	// FindByCredentials retrieves the authenticated session matching the
	// exact username and derived password.
	FindByCredentials(ctx context.Context, username, password string) (*models.Session, error)
	// FindByUserID retrieves the oldest authenticated session of a Jellyfin user.
	FindByUserID(ctx context.Context, userID string) (*models.Session, error)
	// List retrieves all sessions, oldest first.
	List(ctx context.Context) ([]*models.Session, error)
}

// CacheRepository defines operations for the per-user catalog cache.
type CacheRepository interface {
	// GetEntry retrieves the cached listings of a user.
	GetEntry(ctx context.Context, userID string) (*models.CacheEntry, error)
	// GetVideo retrieves one cached item descriptor.
	GetVideo(ctx context.Context, userID, itemID string) (*models.VideoRecord, error)
	// Replace swaps the user's entry and all of their video records in one transaction.
	Replace(ctx context.Context, entry *models.CacheEntry, videos []*models.VideoRecord) error
	// DeleteEntry removes the user's entry. Video records are left for the next Replace.
	DeleteEntry(ctx context.Context, userID string) error
}
