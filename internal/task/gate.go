package task

import (
	"fmt"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// GateBlocks reports whether a task's stored dependency edges block a
// transition to target. Only SPRINT and DONE are gated; BACKLOG is
// always allowed. Must be called inside the transaction that writes
// the status, so a dependency completing or appearing concurrently is
// observed consistently.
func GateBlocks(tx *gorm.DB, taskID, target string) (bool, error) {
	if target != models.StatusSprint && target != models.StatusDone {
		return false, nil
	}
	var count int64
	err := tx.Table("task_deps").
		Joins("JOIN tasks dep ON task_deps.depends_on_id = dep.id").
		Where("task_deps.task_id = ? AND dep.status <> ?", taskID, models.StatusDone).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("task: check dependencies of %s: %w", taskID, err)
	}
	return count > 0, nil
}

// depsUnmet reports whether any of the given dependency ids is not
// DONE. Used when a mutation replaces the edge set and transitions in
// the same call: the gate then applies to the edges being written, not
// the ones being discarded.
func depsUnmet(tx *gorm.DB, depIDs []string) (bool, error) {
	if len(depIDs) == 0 {
		return false, nil
	}
	var count int64
	err := tx.Model(&models.Task{}).
		Where("id IN ? AND status <> ?", depIDs, models.StatusDone).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("task: check dependency statuses: %w", err)
	}
	return count > 0, nil
}

// validateDeps checks a replacement dependency set: every id must
// resolve within the workspace, none may be the task itself, and the
// resulting graph must stay acyclic.
func validateDeps(tx *gorm.DB, workspaceID, taskID string, depIDs []string) error {
	for _, depID := range depIDs {
		if depID == taskID {
			return fmt.Errorf("%w: %s cannot depend on itself", ErrDepCycle, taskID)
		}
		var count int64
		if err := tx.Model(&models.Task{}).
			Where("id = ? AND workspace_id = ?", depID, workspaceID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("task: check dependency %s: %w", depID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: dependency %s", ErrNotFound, depID)
		}
		if reachable(tx, depID, taskID, map[string]bool{}) {
			return fmt.Errorf("%w: %s -> %s", ErrDepCycle, taskID, depID)
		}
	}
	return nil
}

// reachable performs a DFS from current following depends-on edges to
// determine if target is reachable.
func reachable(tx *gorm.DB, current, target string, visited map[string]bool) bool {
	if current == target {
		return true
	}
	if visited[current] {
		return false
	}
	visited[current] = true

	var deps []models.TaskDep
	if err := tx.Where("task_id = ?", current).Find(&deps).Error; err != nil {
		return false
	}
	for _, d := range deps {
		if reachable(tx, d.DependsOnID, target, visited) {
			return true
		}
	}
	return false
}

// ListReady returns BACKLOG tasks whose dependencies are all DONE,
// the candidates for pulling into a sprint. Epics are excluded since
// they are container tasks and not directly committable.
func ListReady(gdb *gorm.DB, workspaceID string) ([]models.Task, error) {
	blockedSub := gdb.Table("task_deps").
		Select("task_deps.task_id").
		Joins("JOIN tasks dep ON task_deps.depends_on_id = dep.id").
		Where("dep.status <> ?", models.StatusDone)

	var tasks []models.Task
	err := gdb.Where("workspace_id = ? AND status = ? AND type <> ?",
		workspaceID, models.StatusBacklog, models.TypeEpic).
		Where("id NOT IN (?)", blockedSub).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("task: ready: %w", err)
	}
	return tasks, nil
}
