package models

import (
	"time"

	"github.com/jmylchreest/jellyvr/pkg/heresphere"
)

// CacheEntry holds the derived HereSphere listings for one Jellyfin user.
// It is replaced as a whole on every rebuild.
type CacheEntry struct {
	UserID      string                `gorm:"primaryKey;size:64" json:"user_id"`
	Libraries   []heresphere.Library  `gorm:"serializer:json" json:"libraries"`
	Scan        []heresphere.ScanData `gorm:"serializer:json" json:"scan"`
	LastUpdated time.Time             `gorm:"not null" json:"last_updated"`
}

// TableName returns the table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "catalog_cache"
}

// IsStale reports whether the entry is older than ttl at now.
func (c *CacheEntry) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.LastUpdated) > ttl
}

// VideoRecord is the cached descriptor of one item for one user.
type VideoRecord struct {
	UserID      string               `gorm:"primaryKey;size:64" json:"user_id"`
	ItemID      string               `gorm:"primaryKey;size:64" json:"item_id"`
	Video       heresphere.VideoData `gorm:"serializer:json" json:"video"`
	LastUpdated time.Time            `gorm:"not null" json:"last_updated"`
}

// TableName returns the table name for VideoRecord.
func (VideoRecord) TableName() string {
	return "catalog_videos"
}
