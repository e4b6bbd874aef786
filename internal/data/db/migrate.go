package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&dialog.UserState{},
		&dialog.SearchSession{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureStateIndexes(db)
}

func EnsureStateIndexes(db *gorm.DB) error {
	// Escalation scans look for chats that are not yet with a manager.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_state_open
		ON user_state(updated_at)
		WHERE transferred_to_human = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_user_state_open: %w", err)
	}
	return nil
}
