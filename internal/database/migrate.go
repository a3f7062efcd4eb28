package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/onquest-api/internal/models"
)

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.Trip{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.UnreadCounter{},
		&models.UserChat{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
