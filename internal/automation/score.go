// Package automation scores backlog tasks against per-user thresholds
// and emits defer or split suggestions. It runs after the primary task
// mutation has committed and must never fail the caller.
package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// StageStep is the threshold shift applied per escalation stage.
const StageStep = 5

// Default thresholds for lazily created settings.
const (
	DefaultLow  = 35
	DefaultHigh = 70
)

// Score maps story points onto a 0-100 priority score.
func Score(points int) int {
	s := points * 9
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// EffectiveBounds returns a setting's thresholds shifted by its stage.
func EffectiveBounds(s *models.AutomationSetting) (low, high int) {
	return s.Low + s.Stage*StageStep, s.High + s.Stage*StageStep
}

// GetOrCreateSetting returns the user's per-workspace thresholds,
// lazily creating a row with the given defaults on first use.
func GetOrCreateSetting(gdb *gorm.DB, userID, workspaceID string, low, high int) (*models.AutomationSetting, error) {
	var s models.AutomationSetting
	err := gdb.Where("user_id = ? AND workspace_id = ?", userID, workspaceID).First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("automation: load setting: %w", err)
	}

	s = models.AutomationSetting{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Low:         low,
		High:        high,
		Stage:       0,
	}
	if err := gdb.Create(&s).Error; err != nil {
		// A concurrent dispatch may have created it first.
		var existing models.AutomationSetting
		if err2 := gdb.Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
			First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("automation: create setting: %w", err)
	}
	return &s, nil
}

// AdvanceStage bumps a setting's escalation stage. Called by the
// approval workflow, never by request handlers.
func AdvanceStage(gdb *gorm.DB, userID, workspaceID string) error {
	result := gdb.Model(&models.AutomationSetting{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Updates(map[string]interface{}{
			"stage":      gorm.Expr("stage + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("automation: advance stage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("automation: setting not found for user %s", userID)
	}
	return nil
}
