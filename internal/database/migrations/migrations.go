// Package migrations versions the jellyvr schema. Each migration runs in its
// own transaction together with its schema_migrations record.
package migrations

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gorm.io/gorm"
)

// ErrNoRollback is returned when the newest applied migration has no Down step
// or is unknown to this binary.
var ErrNoRollback = errors.New("migration cannot be rolled back")

// Migration is one schema step.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
	Down        func(tx *gorm.DB) error
}

// MigrationRecord is a row in schema_migrations.
type MigrationRecord struct {
	ID          uint      `gorm:"primarykey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for migration records.
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// MigrationStatus pairs a known migration with when it was applied.
type MigrationStatus struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// Applied reports whether the migration has run.
func (s MigrationStatus) Applied() bool {
	return s.AppliedAt != nil
}

// Migrator applies and reverts registered migrations in version order.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator creates a Migrator. A nil logger uses slog.Default.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

// RegisterAll adds migrations; order does not matter.
func (m *Migrator) RegisterAll(migrations []Migration) {
	m.migrations = append(m.migrations, migrations...)
	slices.SortFunc(m.migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
}

// Init creates schema_migrations if needed.
func (m *Migrator) Init(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("initializing migrations table: %w", err)
	}
	return nil
}

// Up applies every migration not yet recorded and returns their versions.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for i, st := range statuses {
		if st.Applied() {
			continue
		}
		migration := m.migrations[i]
		if err := m.apply(ctx, migration); err != nil {
			return applied, fmt.Errorf("applying migration %s: %w", migration.Version, err)
		}
		m.logger.InfoContext(ctx, "migration applied",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
		)
		applied = append(applied, migration.Version)
	}
	return applied, nil
}

// Rollback reverts the newest applied migration and returns its version.
// It returns "" when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (string, error) {
	if err := m.Init(ctx); err != nil {
		return "", err
	}

	var last MigrationRecord
	err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last migration: %w", err)
	}

	idx := slices.IndexFunc(m.migrations, func(mg Migration) bool { return mg.Version == last.Version })
	if idx < 0 || m.migrations[idx].Down == nil {
		return "", fmt.Errorf("%s: %w", last.Version, ErrNoRollback)
	}
	migration := m.migrations[idx]

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Down(tx); err != nil {
			return err
		}
		return tx.Where("version = ?", migration.Version).Delete(&MigrationRecord{}).Error
	})
	if err != nil {
		return "", fmt.Errorf("rolling back migration %s: %w", migration.Version, err)
	}

	m.logger.InfoContext(ctx, "migration rolled back", slog.String("version", migration.Version))
	return migration.Version, nil
}

// Status lists every registered migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.Init(ctx); err != nil {
		return nil, err
	}

	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	appliedAt := make(map[string]time.Time, len(records))
	for _, r := range records {
		appliedAt[r.Version] = r.AppliedAt
	}

	statuses := make([]MigrationStatus, len(m.migrations))
	for i, mg := range m.migrations {
		statuses[i] = MigrationStatus{Version: mg.Version, Description: mg.Description}
		if at, ok := appliedAt[mg.Version]; ok {
			statuses[i].AppliedAt = &at
		}
	}
	return statuses, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}
		return tx.Create(&MigrationRecord{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now().UTC(),
		}).Error
	})
}
