package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/users"
)

const (
	migrationStripProviderPrefix = "2026-10-01_strip_provider_prefix_from_owner_ids"
	legacyProviderPrefix         = "google:"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationStripProviderPrefix, apply: stripProviderPrefix},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// stripProviderPrefix rewrites owner ids stored with a provider prefix to the
// canonical subject that identity resolution now yields.
func stripProviderPrefix(db *gorm.DB) error {
	start := len(legacyProviderPrefix) + 1
	pattern := legacyProviderPrefix + "%"
	trimmed := gorm.Expr("substr(owner_id, ?)", start)
	if err := db.Model(&resumes.Record{}).Where("owner_id LIKE ?", pattern).Update("owner_id", trimmed).Error; err != nil {
		return err
	}
	return db.Model(&users.Identity{}).Where("owner_id LIKE ?", pattern).Update("owner_id", trimmed).Error
}
