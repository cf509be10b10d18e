// Package sprint provides sprint lifecycle operations and capacity
// enforcement.
package sprint

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to callers as invariant violations.
var (
	ErrNoActiveSprint   = errors.New("sprint: active sprint not found")
	ErrCapacityExceeded = errors.New("sprint: capacity exceeded")
	ErrNotFound         = errors.New("sprint: not found")
)

// StartOpts holds parameters for starting a new sprint.
type StartOpts struct {
	WorkspaceID    string
	Name           string
	CapacityPoints int
	PlannedEndAt   *time.Time
	ActorID        string
}

// GenerateID creates a unique sprint ID in sprint-xxxxxx format (6-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("sprint: generate ID: %w", err)
	}
	return "sprint-" + hex.EncodeToString(b), nil
}

// Start creates a new ACTIVE sprint, atomically closing any currently
// active sprint in the workspace and re-parenting tasks already in
// SPRINT status onto the new sprint. Concurrent starts serialize so
// exactly one sprint ends up ACTIVE; the unique index on active_token
// backstops the invariant.
func Start(gdb *gorm.DB, opts StartOpts) (*models.Sprint, error) {
	if opts.WorkspaceID == "" {
		return nil, fmt.Errorf("sprint: workspace is required")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("sprint: name is required")
	}
	if opts.CapacityPoints <= 0 {
		return nil, fmt.Errorf("sprint: capacity must be a positive integer, got %d", opts.CapacityPoints)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	var created models.Sprint
	err = db.Serializable(gdb, func(tx *gorm.DB) error {
		// Tasks still in SPRINT status carry over; they must fit the
		// new capacity or the start is rejected.
		carried, err := committedPoints(tx, opts.WorkspaceID, nil)
		if err != nil {
			return err
		}
		if carried > opts.CapacityPoints {
			return fmt.Errorf("%w: %d carried points exceed capacity %d",
				ErrCapacityExceeded, carried, opts.CapacityPoints)
		}

		now := time.Now()
		if err := tx.Model(&models.Sprint{}).
			Where("workspace_id = ? AND status = ?", opts.WorkspaceID, models.SprintActive).
			Updates(map[string]interface{}{
				"status":       models.SprintClosed,
				"active_token": nil,
				"ended_at":     now,
			}).Error; err != nil {
			return fmt.Errorf("sprint: close active: %w", err)
		}

		token := opts.WorkspaceID
		created = models.Sprint{
			ID:             id,
			WorkspaceID:    opts.WorkspaceID,
			Name:           opts.Name,
			CapacityPoints: opts.CapacityPoints,
			Status:         models.SprintActive,
			ActiveToken:    &token,
			StartedAt:      now,
			PlannedEndAt:   opts.PlannedEndAt,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("sprint: create: %w", err)
		}

		if err := tx.Model(&models.Task{}).
			Where("workspace_id = ? AND status = ?", opts.WorkspaceID, models.StatusSprint).
			Update("sprint_id", id).Error; err != nil {
			return fmt.Errorf("sprint: re-parent tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// End closes the workspace's active sprint, moving all remaining SPRINT
// tasks back to BACKLOG and clearing their sprint reference. One status
// event is written per moved task.
func End(gdb *gorm.DB, workspaceID, actorID string) (*models.Sprint, error) {
	var closed models.Sprint
	err := db.Serializable(gdb, func(tx *gorm.DB) error {
		active, err := activeTx(tx, workspaceID)
		if err != nil {
			return err
		}

		var remaining []models.Task
		if err := tx.Where("workspace_id = ? AND status = ?", workspaceID, models.StatusSprint).
			Find(&remaining).Error; err != nil {
			return fmt.Errorf("sprint: load remaining tasks: %w", err)
		}

		now := time.Now()
		for _, t := range remaining {
			if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).
				Updates(map[string]interface{}{
					"status":    models.StatusBacklog,
					"sprint_id": nil,
				}).Error; err != nil {
				return fmt.Errorf("sprint: return task %s to backlog: %w", t.ID, err)
			}
			from := models.StatusSprint
			event := models.TaskStatusEvent{
				TaskID:      t.ID,
				WorkspaceID: workspaceID,
				FromStatus:  &from,
				ToStatus:    models.StatusBacklog,
				ActorID:     actorID,
				Source:      models.SourceSprint,
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("sprint: record status event for %s: %w", t.ID, err)
			}
		}

		if err := tx.Model(&models.Sprint{}).Where("id = ?", active.ID).
			Updates(map[string]interface{}{
				"status":       models.SprintClosed,
				"active_token": nil,
				"ended_at":     now,
			}).Error; err != nil {
			return fmt.Errorf("sprint: close %s: %w", active.ID, err)
		}

		closed = *active
		closed.Status = models.SprintClosed
		closed.ActiveToken = nil
		closed.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// Active returns the workspace's ACTIVE sprint, or ErrNoActiveSprint.
func Active(gdb *gorm.DB, workspaceID string) (*models.Sprint, error) {
	return activeTx(gdb, workspaceID)
}

func activeTx(tx *gorm.DB, workspaceID string) (*models.Sprint, error) {
	var s models.Sprint
	err := tx.Where("workspace_id = ? AND status = ?", workspaceID, models.SprintActive).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSprint
		}
		return nil, fmt.Errorf("sprint: find active: %w", err)
	}
	return &s, nil
}

// EnforceCapacity validates that the tasks in entering (task id →
// proposed points) fit the workspace's active sprint alongside
// everything already committed. It must be called inside the same
// transaction that writes the task rows; calling it against a bare
// *gorm.DB re-introduces the check-then-act race it exists to prevent.
func EnforceCapacity(tx *gorm.DB, workspaceID string, entering map[string]int) error {
	if len(entering) == 0 {
		return nil
	}

	active, err := activeTx(tx, workspaceID)
	if err != nil {
		return err
	}

	exclude := make([]string, 0, len(entering))
	proposed := 0
	for id, pts := range entering {
		exclude = append(exclude, id)
		proposed += pts
	}

	committed, err := committedPoints(tx, workspaceID, exclude)
	if err != nil {
		return err
	}

	if next := committed + proposed; next > active.CapacityPoints {
		return fmt.Errorf("%w: %d points would exceed capacity %d",
			ErrCapacityExceeded, next, active.CapacityPoints)
	}
	return nil
}

// committedPoints sums the points of SPRINT-status tasks in the
// workspace, excluding the given task ids.
func committedPoints(tx *gorm.DB, workspaceID string, exclude []string) (int, error) {
	q := tx.Model(&models.Task{}).
		Where("workspace_id = ? AND status = ?", workspaceID, models.StatusSprint)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var total *int
	if err := q.Select("SUM(points)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sprint: sum committed points: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
