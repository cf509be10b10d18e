// Package routine implements recurrence for ROUTINE tasks: completing
// an occurrence spawns the next one and advances the cadence pointer.
package routine

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// Interval returns the gap between occurrences for a cadence.
func Interval(cadence string) (time.Duration, error) {
	switch cadence {
	case models.CadenceDaily:
		return 24 * time.Hour, nil
	case models.CadenceWeekly:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("routine: unknown cadence %q", cadence)
	}
}

// NextDue computes when the successor of a task completed at now is
// due, and the rule's advanced pointer. The due date never lands in the
// past relative to completion time.
func NextDue(nextAt, now time.Time, cadence string) (dueAt, newNextAt time.Time, err error) {
	iv, err := Interval(cadence)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	dueAt = nextAt
	if now.After(dueAt) {
		dueAt = now
	}
	return dueAt, dueAt.Add(iv), nil
}

// generateID creates a unique task ID in task-xxxxxx format (6-char hex).
func generateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("routine: generate ID: %w", err)
	}
	return "task-" + hex.EncodeToString(b), nil
}

// SpawnNext creates the successor occurrence for a routine task that
// just completed, re-points the rule at it, and records the creation
// event. It must run inside the same transaction as the completing
// status write so a crash cannot leave a completed routine task with no
// successor. Returns nil when the task has no rule attached.
func SpawnNext(tx *gorm.DB, completed *models.Task, actorID string, now time.Time) (*models.Task, error) {
	var rule models.RoutineRule
	err := tx.Where("task_id = ?", completed.ID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("routine: load rule for %s: %w", completed.ID, err)
	}

	dueAt, newNextAt, err := NextDue(rule.NextAt, now, rule.Cadence)
	if err != nil {
		return nil, err
	}

	id, err := generateID()
	if err != nil {
		return nil, err
	}

	next := models.Task{
		ID:               id,
		WorkspaceID:      completed.WorkspaceID,
		CreatorID:        completed.CreatorID,
		Title:            completed.Title,
		Description:      completed.Description,
		DefinitionOfDone: completed.DefinitionOfDone,
		Points:           completed.Points,
		Urgency:          completed.Urgency,
		Risk:             completed.Risk,
		Type:             models.TypeRoutine,
		Status:           models.StatusBacklog,
		AssigneeID:       completed.AssigneeID,
		DueDate:          &dueAt,
		Tags:             completed.Tags,
	}
	if err := tx.Create(&next).Error; err != nil {
		return nil, fmt.Errorf("routine: create successor of %s: %w", completed.ID, err)
	}

	// Checklist is carried over by value: text preserved, done reset,
	// fresh item ids.
	var items []models.ChecklistItem
	if err := tx.Where("task_id = ?", completed.ID).Order("position ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("routine: load checklist of %s: %w", completed.ID, err)
	}
	for _, item := range items {
		copied := models.ChecklistItem{
			ID:       uuid.NewString(),
			TaskID:   next.ID,
			Text:     item.Text,
			Done:     false,
			Position: item.Position,
		}
		if err := tx.Create(&copied).Error; err != nil {
			return nil, fmt.Errorf("routine: copy checklist item: %w", err)
		}
	}

	// The rule follows the chain of occurrences.
	if err := tx.Model(&models.RoutineRule{}).Where("id = ?", rule.ID).
		Updates(map[string]interface{}{
			"task_id": next.ID,
			"next_at": newNextAt,
		}).Error; err != nil {
		return nil, fmt.Errorf("routine: advance rule %d: %w", rule.ID, err)
	}

	event := models.TaskStatusEvent{
		TaskID:      next.ID,
		WorkspaceID: next.WorkspaceID,
		FromStatus:  nil,
		ToStatus:    models.StatusBacklog,
		ActorID:     actorID,
		Source:      models.SourceRoutine,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("routine: record creation event: %w", err)
	}

	return &next, nil
}

// Overdue returns routine rules whose next occurrence is already due.
// Used by the periodic scan job; purely advisory.
func Overdue(gdb *gorm.DB, now time.Time) ([]models.RoutineRule, error) {
	var rules []models.RoutineRule
	if err := gdb.Where("next_at <= ?", now).Order("next_at ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("routine: list overdue: %w", err)
	}
	return rules, nil
}
