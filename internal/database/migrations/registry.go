package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/jellyvr/internal/models"
)

// AllMigrations returns all registered migrations in order.
//   - 001: sessions table
//   - 002: per-user catalog cache tables
func AllMigrations() []Migration {
	return []Migration{
		migration001Sessions(),
		migration002Catalog(),
	}
}

func migration001Sessions() Migration {
	return Migration{
		Version:     "001",
		Description: "Create sessions table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Session{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("sessions")
		},
	}
}

// The catalog tables only hold derived data, so rolling back drops them outright.
func migration002Catalog() Migration {
	return Migration{
		Version:     "002",
		Description: "Create catalog cache tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.CacheEntry{}, &models.VideoRecord{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("catalog_videos", "catalog_cache")
		},
	}
}
