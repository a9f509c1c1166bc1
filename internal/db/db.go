package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cufy/campusmatch/internal/config"
)

// NewDB initializes the database connection using the DSN from config.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate syncs the schema with the models and installs the partial unique
// index that backs the one-selected-per-male invariant. Shared with the
// sqlite test fixtures, both dialects support partial indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&ProfileAssignment{},
		&TemporaryMatch{},
		&PermanentMatch{},
		&SubscriptionPlan{},
		&UserAction{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS one_selected_per_male
		 ON profile_assignments (male_user_id) WHERE is_selected`,
	).Error; err != nil {
		return fmt.Errorf("failed to create selection index: %w", err)
	}

	return nil
}
