package sprint

import (
	"fmt"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// StatusCount holds a task status and its count within a sprint.
type StatusCount struct {
	Status string
	Count  int
}

// Summary describes the current state of a workspace's active sprint.
type Summary struct {
	Sprint          models.Sprint
	CommittedPoints int
	RemainingPoints int
	StatusCounts    []StatusCount
}

// GetSummary computes committed points and per-status task counts for
// the workspace's active sprint.
func GetSummary(gdb *gorm.DB, workspaceID string) (*Summary, error) {
	active, err := Active(gdb, workspaceID)
	if err != nil {
		return nil, err
	}

	committed, err := committedPoints(gdb, workspaceID, nil)
	if err != nil {
		return nil, err
	}

	var counts []StatusCount
	if err := gdb.Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Where("workspace_id = ? AND sprint_id = ?", workspaceID, active.ID).
		Group("status").
		Order("status ASC").
		Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("sprint: summary of %s: %w", active.ID, err)
	}

	return &Summary{
		Sprint:          *active,
		CommittedPoints: committed,
		RemainingPoints: active.CapacityPoints - committed,
		StatusCounts:    counts,
	}, nil
}
