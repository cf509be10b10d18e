package task

import (
	"fmt"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/routine"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"gorm.io/gorm"
)

// MaxBulkTasks caps the number of tasks one bulk call may touch.
const MaxBulkTasks = 100

// Bulk actions.
const (
	BulkStatus = "status"
	BulkPoints = "points"
	BulkDelete = "delete"
)

// BulkOpts holds parameters for a bulk mutation. All tasks must live in
// the same workspace. Status is required for the status action, Points
// for the points action.
type BulkOpts struct {
	WorkspaceID string
	ActorID     string
	Action      string
	TaskIDs     []string
	Status      string
	Points      int
}

// BulkResult reports what a bulk call changed.
type BulkResult struct {
	Affected   []string
	Successors []*models.Task
}

// Bulk applies one action to up to MaxBulkTasks tasks atomically. A
// capacity or dependency failure anywhere in the batch rejects the
// whole batch; no task changes.
func Bulk(gdb *gorm.DB, opts BulkOpts) (*BulkResult, error) {
	ids := dedupe(opts.TaskIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("task: bulk requires at least one task id")
	}
	if len(ids) > MaxBulkTasks {
		return nil, fmt.Errorf("task: bulk limited to %d tasks, got %d", MaxBulkTasks, len(ids))
	}
	switch opts.Action {
	case BulkStatus:
		if !validStatus(opts.Status) {
			return nil, fmt.Errorf("task: invalid status %q", opts.Status)
		}
	case BulkPoints:
		if !ValidPoints(opts.Points) {
			return nil, fmt.Errorf("task: points %d not in allowed set %v", opts.Points, models.AllowedPoints)
		}
	case BulkDelete:
	default:
		return nil, fmt.Errorf("task: invalid bulk action %q", opts.Action)
	}

	result := &BulkResult{}
	err := db.Serializable(gdb, func(tx *gorm.DB) error {
		var tasks []models.Task
		if err := tx.Where("id IN ? AND workspace_id = ?", ids, opts.WorkspaceID).
			Find(&tasks).Error; err != nil {
			return fmt.Errorf("task: bulk load: %w", err)
		}
		if len(tasks) != len(ids) {
			found := make(map[string]bool, len(tasks))
			for _, t := range tasks {
				found[t.ID] = true
			}
			for _, id := range ids {
				if !found[id] {
					return fmt.Errorf("%w: %s", ErrNotFound, id)
				}
			}
		}

		switch opts.Action {
		case BulkStatus:
			return bulkStatus(tx, tasks, opts, result)
		case BulkPoints:
			return bulkPoints(tx, tasks, opts, result)
		default:
			return cascadeDelete(tx, ids)
		}
	})
	if err != nil {
		return nil, err
	}
	if opts.Action == BulkDelete {
		result.Affected = ids
	}
	return result, nil
}

func bulkStatus(tx *gorm.DB, tasks []models.Task, opts BulkOpts, result *BulkResult) error {
	target := opts.Status

	for _, t := range tasks {
		if t.Status != target && !isValidTransition(t.Status, target) {
			return fmt.Errorf("%w: %s (%s -> %s)", ErrInvalidTransition, t.ID, t.Status, target)
		}
	}

	if target == models.StatusSprint || target == models.StatusDone {
		for _, t := range tasks {
			blocked, err := GateBlocks(tx, t.ID, target)
			if err != nil {
				return err
			}
			if blocked {
				return fmt.Errorf("%w: %s", ErrDepsNotDone, t.ID)
			}
		}
	}

	var sprintID *string
	if target == models.StatusSprint {
		// One capacity check against the aggregate delta of the batch.
		entering := make(map[string]int, len(tasks))
		for _, t := range tasks {
			entering[t.ID] = t.Points
		}
		if err := sprint.EnforceCapacity(tx, opts.WorkspaceID, entering); err != nil {
			return err
		}
		active, err := sprint.Active(tx, opts.WorkspaceID)
		if err != nil {
			return err
		}
		sprintID = &active.ID
	}

	for i := range tasks {
		t := &tasks[i]
		if t.Status == target {
			continue
		}

		updates := map[string]interface{}{"status": target}
		switch target {
		case models.StatusSprint:
			updates["sprint_id"] = *sprintID
		case models.StatusBacklog:
			updates["sprint_id"] = nil
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("task: bulk update %s: %w", t.ID, err)
		}

		if target == models.StatusDone && t.Type == models.TypeRoutine {
			done := *t
			done.Status = models.StatusDone
			successor, err := routine.SpawnNext(tx, &done, opts.ActorID, time.Now())
			if err != nil {
				return err
			}
			if successor != nil {
				result.Successors = append(result.Successors, successor)
			}
		}

		from := t.Status
		if err := recordStatusEvent(tx, t, &from, target, opts.ActorID, models.SourceBulk); err != nil {
			return err
		}
		result.Affected = append(result.Affected, t.ID)
	}
	return nil
}

func bulkPoints(tx *gorm.DB, tasks []models.Task, opts BulkOpts, result *BulkResult) error {
	entering := map[string]int{}
	for _, t := range tasks {
		if t.Status == models.StatusSprint {
			entering[t.ID] = opts.Points
		}
	}
	if len(entering) > 0 {
		if err := sprint.EnforceCapacity(tx, opts.WorkspaceID, entering); err != nil {
			return err
		}
	}

	for _, t := range tasks {
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).
			Update("points", opts.Points).Error; err != nil {
			return fmt.Errorf("task: bulk repoint %s: %w", t.ID, err)
		}
		result.Affected = append(result.Affected, t.ID)
	}
	return nil
}

// Delete removes one task and its dependent records.
func Delete(gdb *gorm.DB, workspaceID, id string) error {
	return db.Serializable(gdb, func(tx *gorm.DB) error {
		if err := requireInWorkspace(tx, workspaceID, id); err != nil {
			return err
		}
		return cascadeDelete(tx, []string{id})
	})
}

// cascadeDelete removes tasks and every record hanging off them:
// dependency edges in both directions, suggestions, comments,
// checklist items, and routine rules. Edges pointing at the deleted
// tasks are cleaned as well so surviving tasks are not gated forever
// on rows that no longer exist.
func cascadeDelete(tx *gorm.DB, ids []string) error {
	if err := tx.Where("task_id IN ? OR depends_on_id IN ?", ids, ids).
		Delete(&models.TaskDep{}).Error; err != nil {
		return fmt.Errorf("task: delete dependency edges: %w", err)
	}
	if err := tx.Where("task_id IN ?", ids).Delete(&models.Suggestion{}).Error; err != nil {
		return fmt.Errorf("task: delete suggestions: %w", err)
	}
	if err := tx.Where("task_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("task: delete comments: %w", err)
	}
	if err := tx.Where("task_id IN ?", ids).Delete(&models.ChecklistItem{}).Error; err != nil {
		return fmt.Errorf("task: delete checklist items: %w", err)
	}
	if err := tx.Where("task_id IN ?", ids).Delete(&models.RoutineRule{}).Error; err != nil {
		return fmt.Errorf("task: delete routine rules: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("task: delete tasks: %w", err)
	}
	return nil
}

// dedupe removes duplicate ids preserving order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
