// Package task provides task lifecycle operations: creation, the
// transition orchestrator, dependency gating, bulk mutation, and
// deletion.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"gorm.io/gorm"
)

// Sentinel errors. Validation failures are returned as plain errors
// before any transaction opens; these mark invariant violations and
// missing rows detected inside one.
var (
	ErrNotFound          = errors.New("task: not found")
	ErrDepsNotDone       = errors.New("task: dependencies must be done before moving")
	ErrDepCycle          = errors.New("task: dependency cycle")
	ErrInvalidTransition = errors.New("task: invalid status transition")
)

// ValidTransitions maps each status to its valid next statuses. DONE
// has no out-edges: a completed occurrence stays completed, and a
// ROUTINE series continues through its spawned successor instead of a
// reopened task.
var ValidTransitions = map[string][]string{
	models.StatusBacklog: {models.StatusSprint, models.StatusDone},
	models.StatusSprint:  {models.StatusBacklog, models.StatusDone},
	models.StatusDone:    {},
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// ChecklistInput is one checklist entry supplied by a caller.
type ChecklistInput struct {
	Text string
	Done bool
}

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	WorkspaceID      string
	CreatorID        string
	Title            string
	Description      string
	DefinitionOfDone string
	Points           int
	Urgency          string
	Risk             string
	Type             string
	Status           string // BACKLOG (default) or SPRINT
	DueDate          *time.Time
	AssigneeID       string
	ParentID         string
	Tags             []string
	Checklist        []ChecklistInput
	DependencyIDs    []string
	Cadence          string // DAILY or WEEKLY; requires Type == ROUTINE
}

// ValidPoints reports whether p is in the story-point allowlist.
// Out-of-set values are rejected at the write boundary, never coerced.
func ValidPoints(p int) bool {
	for _, allowed := range models.AllowedPoints {
		if p == allowed {
			return true
		}
	}
	return false
}

func validLevel(s string) bool {
	return s == models.LevelLow || s == models.LevelMedium || s == models.LevelHigh
}

func validType(s string) bool {
	switch s {
	case models.TypeEpic, models.TypePBI, models.TypeTask, models.TypeRoutine:
		return true
	}
	return false
}

func validStatus(s string) bool {
	switch s {
	case models.StatusBacklog, models.StatusSprint, models.StatusDone:
		return true
	}
	return false
}

func validCadence(s string) bool {
	return s == models.CadenceDaily || s == models.CadenceWeekly
}

// GenerateID creates a unique task ID in task-xxxxxx format (6-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("task: generate ID: %w", err)
	}
	return "task-" + hex.EncodeToString(b), nil
}

// marshalTags encodes a tag set as a JSON array column value.
func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("task: marshal tags: %w", err)
	}
	return string(data), nil
}

// Create creates a new task. Status defaults to BACKLOG; SPRINT is
// allowed when the active sprint has room, and is gated on
// dependencies like any other SPRINT transition. DONE is not a valid
// creation status.
func Create(gdb *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.WorkspaceID == "" {
		return nil, fmt.Errorf("task: workspace is required")
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("task: title is required")
	}
	if !ValidPoints(opts.Points) {
		return nil, fmt.Errorf("task: points %d not in allowed set %v", opts.Points, models.AllowedPoints)
	}
	if opts.Urgency == "" {
		opts.Urgency = models.LevelMedium
	}
	if opts.Risk == "" {
		opts.Risk = models.LevelMedium
	}
	if opts.Type == "" {
		opts.Type = models.TypeTask
	}
	if opts.Status == "" {
		opts.Status = models.StatusBacklog
	}
	if !validLevel(opts.Urgency) || !validLevel(opts.Risk) {
		return nil, fmt.Errorf("task: urgency and risk must be LOW, MEDIUM, or HIGH")
	}
	if !validType(opts.Type) {
		return nil, fmt.Errorf("task: invalid type %q", opts.Type)
	}
	if opts.Status != models.StatusBacklog && opts.Status != models.StatusSprint {
		return nil, fmt.Errorf("task: creation status must be BACKLOG or SPRINT, got %q", opts.Status)
	}
	if opts.Cadence != "" {
		if !validCadence(opts.Cadence) {
			return nil, fmt.Errorf("task: invalid cadence %q", opts.Cadence)
		}
		if opts.Type != models.TypeRoutine {
			return nil, fmt.Errorf("task: cadence requires type ROUTINE, got %q", opts.Type)
		}
	}

	tags, err := marshalTags(opts.Tags)
	if err != nil {
		return nil, err
	}
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	var created models.Task
	err = db.Serializable(gdb, func(tx *gorm.DB) error {
		if opts.ParentID != "" {
			if err := requireInWorkspace(tx, opts.WorkspaceID, opts.ParentID); err != nil {
				return err
			}
		}
		if err := validateDeps(tx, opts.WorkspaceID, id, opts.DependencyIDs); err != nil {
			return err
		}

		if opts.Status == models.StatusSprint {
			blocked, err := depsUnmet(tx, opts.DependencyIDs)
			if err != nil {
				return err
			}
			if blocked {
				return ErrDepsNotDone
			}
			if err := sprint.EnforceCapacity(tx, opts.WorkspaceID, map[string]int{id: opts.Points}); err != nil {
				return err
			}
		}

		created = models.Task{
			ID:               id,
			WorkspaceID:      opts.WorkspaceID,
			CreatorID:        opts.CreatorID,
			Title:            opts.Title,
			Description:      opts.Description,
			DefinitionOfDone: opts.DefinitionOfDone,
			Points:           opts.Points,
			Urgency:          opts.Urgency,
			Risk:             opts.Risk,
			Type:             opts.Type,
			Status:           opts.Status,
			DueDate:          opts.DueDate,
			Tags:             tags,
		}
		if opts.AssigneeID != "" {
			created.AssigneeID = &opts.AssigneeID
		}
		if opts.ParentID != "" {
			created.ParentID = &opts.ParentID
		}
		if opts.Status == models.StatusSprint {
			active, err := sprint.Active(tx, opts.WorkspaceID)
			if err != nil {
				return err
			}
			created.SprintID = &active.ID
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("task: create: %w", err)
		}

		for i, item := range opts.Checklist {
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

		for _, depID := range opts.DependencyIDs {
			dep := models.TaskDep{TaskID: id, DependsOnID: depID}
			if err := tx.Create(&dep).Error; err != nil {
				return fmt.Errorf("task: create dependency %s: %w", depID, err)
			}
		}

		if opts.Cadence != "" {
			nextAt := time.Now()
			if opts.DueDate != nil {
				nextAt = *opts.DueDate
			}
			rule := models.RoutineRule{TaskID: id, Cadence: opts.Cadence, NextAt: nextAt}
			if err := tx.Create(&rule).Error; err != nil {
				return fmt.Errorf("task: create routine rule: %w", err)
			}
		}

		return recordStatusEvent(tx, &created, nil, created.Status, opts.CreatorID, models.SourceAPI)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Get retrieves a task scoped to a workspace, preloading dependencies
// and checklist. Out-of-workspace ids read as absent.
func Get(gdb *gorm.DB, workspaceID, id string) (*models.Task, error) {
	var t models.Task
	err := gdb.Preload("Deps").Preload("Checklist", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	}).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return &t, nil
}

// ListFilters holds optional filters for listing tasks.
type ListFilters struct {
	Status     string
	Type       string
	AssigneeID string
	SprintID   string
	ParentID   string
}

// List returns workspace tasks matching the filters, newest first.
func List(gdb *gorm.DB, workspaceID string, filters ListFilters) ([]models.Task, error) {
	q := gdb.Model(&models.Task{}).Where("workspace_id = ?", workspaceID)

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.AssigneeID != "" {
		q = q.Where("assignee_id = ?", filters.AssigneeID)
	}
	if filters.SprintID != "" {
		q = q.Where("sprint_id = ?", filters.SprintID)
	}
	if filters.ParentID != "" {
		q = q.Where("parent_id = ?", filters.ParentID)
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// requireInWorkspace fails with ErrNotFound unless id resolves to a
// task row in the workspace.
func requireInWorkspace(tx *gorm.DB, workspaceID, id string) error {
	var count int64
	if err := tx.Model(&models.Task{}).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("task: check %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// recordStatusEvent appends an immutable status-change audit row.
func recordStatusEvent(tx *gorm.DB, t *models.Task, from *string, to, actorID, source string) error {
	event := models.TaskStatusEvent{
		TaskID:      t.ID,
		WorkspaceID: t.WorkspaceID,
		FromStatus:  from,
		ToStatus:    to,
		ActorID:     actorID,
		Source:      source,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("task: record status event for %s: %w", t.ID, err)
	}
	return nil
}
