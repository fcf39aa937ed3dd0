package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jmylchreest/jellyvr/internal/models"
)

// sessionRepo implements SessionRepository using GORM.
type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id models.ULID) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting session by ID: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) Save(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("saving session %s: %w", session.ID, err)
	}
	return nil
}

func (r *sessionRepo) FindByCredentials(ctx context.Context, username, password string) (*models.Session, error) {
	if username == "" || password == "" {
		return nil, nil
	}

	var session models.Session
	err := r.db.WithContext(ctx).
		Where("kind = ? AND username = ? AND derived_password = ?", models.SessionKindAuthenticated, username, password).
		Order("created_at ASC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding session by credentials: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) FindByUserID(ctx context.Context, userID string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ?", models.SessionKindAuthenticated, userID).
		Order("created_at ASC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding session by user ID: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) List(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// Ensure sessionRepo implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepo)(nil)
