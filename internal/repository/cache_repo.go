package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/jellyvr/internal/models"
)

// videoBatchSize keeps bulk inserts under SQLite's bound-parameter limit.
const videoBatchSize = 200

// cacheRepo implements CacheRepository using GORM.
type cacheRepo struct {
	db *gorm.DB
}

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(db *gorm.DB) CacheRepository {
	return &cacheRepo{db: db}
}

func (r *cacheRepo) GetEntry(ctx context.Context, userID string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cache entry: %w", err)
	}
	return &entry, nil
}

func (r *cacheRepo) GetVideo(ctx context.Context, userID, itemID string) (*models.VideoRecord, error) {
	var video models.VideoRecord
	if err := r.db.WithContext(ctx).Where("user_id = ? AND item_id = ?", userID, itemID).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached video: %w", err)
	}
	return &video, nil
}

func (r *cacheRepo) Replace(ctx context.Context, entry *models.CacheEntry, videos []*models.VideoRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", entry.UserID).Delete(&models.VideoRecord{}).Error; err != nil {
			return fmt.Errorf("deleting videos: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"libraries", "scan", "last_updated"}),
		}).Create(entry).Error; err != nil {
			return fmt.Errorf("upserting entry: %w", err)
		}

		if len(videos) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(videos, videoBatchSize).Error; err != nil {
			return fmt.Errorf("inserting videos: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing cache for user %s: %w", entry.UserID, err)
	}
	return nil
}

func (r *cacheRepo) DeleteEntry(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Ensure cacheRepo implements CacheRepository at compile time.
var _ CacheRepository = (*cacheRepo)(nil)
