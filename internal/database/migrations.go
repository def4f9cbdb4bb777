package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationPruneOrphanedAttachments = "2026-04-18_prune_orphaned_attachments"

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
		{name: migrationPruneOrphanedAttachments, apply: pruneOrphanedAttachments},
	}

	for _, migration := range migrations {
		var applied migrationRecord
		err := db.Where("name = ?", migration.name).Take(&applied).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// pruneOrphanedAttachments drops attachment rows whose owning record no
// longer exists. Earlier builds removed records without cascading, so
// stores created by them can carry these leftovers.
func pruneOrphanedAttachments(db *gorm.DB) error {
	return db.Exec(
		"DELETE FROM attachments WHERE NOT EXISTS (SELECT 1 FROM records WHERE records.id = attachments.record_id)").Error
}
