package db

import (
	"fmt"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Task{},
		&models.TaskDep{},
		&models.ChecklistItem{},
		&models.Sprint{},
		&models.RoutineRule{},
		&models.TaskStatusEvent{},
		&models.AutomationSetting{},
		&models.Suggestion{},
		&models.Comment{},
		&models.AuditLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
