package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/routine"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"gorm.io/gorm"
)

// Patch holds a partial task update: only non-nil fields change.
// DependencyIDs and Checklist use full-replace semantics. An empty
// Cadence string removes the routine rule; AssigneeID "" clears the
// assignee; ParentID "" detaches the task from its parent.
type Patch struct {
	Title            *string
	Description      *string
	DefinitionOfDone *string
	Points           *int
	Urgency          *string
	Risk             *string
	Type             *string
	Status           *string
	DueDate          *time.Time
	AssigneeID       *string
	ParentID         *string
	Tags             *[]string
	Checklist        *[]ChecklistInput
	DependencyIDs    *[]string
	Cadence          *string
}

// UpdateResult carries the mutated task, the status it moved from when
// the update changed status, and the successor spawned when completing
// a routine task.
type UpdateResult struct {
	Task           *models.Task
	StatusChanged  bool
	PreviousStatus string
	Successor      *models.Task
}

func (p Patch) validate() error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("task: title cannot be empty")
	}
	if p.Points != nil && !ValidPoints(*p.Points) {
		return fmt.Errorf("task: points %d not in allowed set %v", *p.Points, models.AllowedPoints)
	}
	if p.Urgency != nil && !validLevel(*p.Urgency) {
		return fmt.Errorf("task: invalid urgency %q", *p.Urgency)
	}
	if p.Risk != nil && !validLevel(*p.Risk) {
		return fmt.Errorf("task: invalid risk %q", *p.Risk)
	}
	if p.Type != nil && !validType(*p.Type) {
		return fmt.Errorf("task: invalid type %q", *p.Type)
	}
	if p.Status != nil && !validStatus(*p.Status) {
		return fmt.Errorf("task: invalid status %q", *p.Status)
	}
	if p.Cadence != nil && *p.Cadence != "" && !validCadence(*p.Cadence) {
		return fmt.Errorf("task: invalid cadence %q", *p.Cadence)
	}
	return nil
}

// Update is the single entry point for mutating one task. It validates
// the patch, then runs the whole transition inside one serializable
// transaction: dependency gate, capacity enforcement, field patch,
// dependency replacement, routine-rule upkeep, recurrence spawn, and
// the status event. A rejected update leaves every row untouched.
func Update(gdb *gorm.DB, workspaceID, id, actorID string, patch Patch) (*UpdateResult, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	err := db.Serializable(gdb, func(tx *gorm.DB) error {
		var current models.Task
		err := tx.Where("id = ? AND workspace_id = ?", id, workspaceID).First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("task: get %s for update: %w", id, err)
		}

		target := current.Status
		if patch.Status != nil {
			target = *patch.Status
		}
		points := current.Points
		if patch.Points != nil {
			points = *patch.Points
		}
		resultType := current.Type
		if patch.Type != nil {
			resultType = *patch.Type
		}
		statusChanging := target != current.Status
		if statusChanging && !isValidTransition(current.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
		}

		if patch.DependencyIDs != nil {
			if err := validateDeps(tx, workspaceID, id, *patch.DependencyIDs); err != nil {
				return err
			}
		}

		// Gate SPRINT/DONE targets on the dependency set the update
		// leaves behind, not the one it discards.
		if statusChanging && (target == models.StatusSprint || target == models.StatusDone) {
			var blocked bool
			if patch.DependencyIDs != nil {
				blocked, err = depsUnmet(tx, *patch.DependencyIDs)
			} else {
				blocked, err = GateBlocks(tx, id, target)
			}
			if err != nil {
				return err
			}
			if blocked {
				return ErrDepsNotDone
			}
		}

		updates := map[string]interface{}{}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.DefinitionOfDone != nil {
			updates["definition_of_done"] = *patch.DefinitionOfDone
		}
		if patch.Points != nil {
			updates["points"] = *patch.Points
		}
		if patch.Urgency != nil {
			updates["urgency"] = *patch.Urgency
		}
		if patch.Risk != nil {
			updates["risk"] = *patch.Risk
		}
		if patch.Type != nil {
			updates["type"] = *patch.Type
		}
		if patch.DueDate != nil {
			updates["due_date"] = *patch.DueDate
		}
		if patch.AssigneeID != nil {
			if *patch.AssigneeID == "" {
				updates["assignee_id"] = nil
			} else {
				updates["assignee_id"] = *patch.AssigneeID
			}
		}
		if patch.ParentID != nil {
			switch parent := *patch.ParentID; {
			case parent == "":
				updates["parent_id"] = nil
			case parent == id:
				return fmt.Errorf("task: %s cannot be its own parent", id)
			default:
				if err := requireInWorkspace(tx, workspaceID, parent); err != nil {
					return err
				}
				updates["parent_id"] = parent
			}
		}
		if patch.Tags != nil {
			tags, err := marshalTags(*patch.Tags)
			if err != nil {
				return err
			}
			updates["tags"] = tags
		}

		// Capacity applies when entering SPRINT and when changing the
		// points of a task already committed.
		inSprintAfter := target == models.StatusSprint
		if inSprintAfter && (statusChanging || points != current.Points) {
			if err := sprint.EnforceCapacity(tx, workspaceID, map[string]int{id: points}); err != nil {
				return err
			}
		}
		if statusChanging {
			updates["status"] = target
			switch target {
			case models.StatusSprint:
				active, err := sprint.Active(tx, workspaceID)
				if err != nil {
					return err
				}
				updates["sprint_id"] = active.ID
			case models.StatusBacklog:
				updates["sprint_id"] = nil
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Task{}).Where("id = ?", id).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("task: update %s: %w", id, err)
			}
		}

		if patch.DependencyIDs != nil {
			if err := tx.Where("task_id = ?", id).Delete(&models.TaskDep{}).Error; err != nil {
				return fmt.Errorf("task: clear dependencies of %s: %w", id, err)
			}
			for _, depID := range *patch.DependencyIDs {
				dep := models.TaskDep{TaskID: id, DependsOnID: depID}
				if err := tx.Create(&dep).Error; err != nil {
					return fmt.Errorf("task: create dependency %s: %w", depID, err)
				}
			}
		}

		if patch.Checklist != nil {
			if err := tx.Where("task_id = ?", id).Delete(&models.ChecklistItem{}).Error; err != nil {
				return fmt.Errorf("task: clear checklist of %s: %w", id, err)
			}
			for i, item := range *patch.Checklist {
				row := models.ChecklistItem{
					ID:       uuid.NewString(),
					TaskID:   id,
					Text:     item.Text,
					Done:     item.Done,
					Position: i,
				}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("task: create checklist item: %w", err)
				}
			}
		}

		if err := upsertRule(tx, &current, resultType, patch); err != nil {
			return err
		}

		// Re-read so the returned task and the recurrence clone see the
		// patched values.
		var updated models.Task
		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return fmt.Errorf("task: reload %s: %w", id, err)
		}
		result.Task = &updated
		result.StatusChanged = statusChanging
		result.PreviousStatus = current.Status

		if statusChanging && target == models.StatusDone && resultType == models.TypeRoutine {
			successor, err := routine.SpawnNext(tx, &updated, actorID, time.Now())
			if err != nil {
				return err
			}
			result.Successor = successor
		}

		if statusChanging {
			from := current.Status
			if err := recordStatusEvent(tx, &updated, &from, target, actorID, models.SourceAPI); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// upsertRule reconciles the task's routine rule with its resulting
// type and the cadence input. A non-ROUTINE resulting type, or an
// explicit empty cadence, removes the rule.
func upsertRule(tx *gorm.DB, current *models.Task, resultType string, patch Patch) error {
	removeRule := resultType != models.TypeRoutine ||
		(patch.Cadence != nil && *patch.Cadence == "")
	if removeRule {
		if err := tx.Where("task_id = ?", current.ID).
			Delete(&models.RoutineRule{}).Error; err != nil {
			return fmt.Errorf("task: remove routine rule of %s: %w", current.ID, err)
		}
		return nil
	}
	if patch.Cadence == nil {
		return nil
	}

	var existing models.RoutineRule
	err := tx.Where("task_id = ?", current.ID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Cadence != *patch.Cadence {
			if err := tx.Model(&models.RoutineRule{}).Where("id = ?", existing.ID).
				Update("cadence", *patch.Cadence).Error; err != nil {
				return fmt.Errorf("task: update routine rule of %s: %w", current.ID, err)
			}
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		nextAt := time.Now()
		if patch.DueDate != nil {
			nextAt = *patch.DueDate
		} else if current.DueDate != nil {
			nextAt = *current.DueDate
		}
		rule := models.RoutineRule{TaskID: current.ID, Cadence: *patch.Cadence, NextAt: nextAt}
		if err := tx.Create(&rule).Error; err != nil {
			return fmt.Errorf("task: create routine rule of %s: %w", current.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("task: load routine rule of %s: %w", current.ID, err)
	}
}
