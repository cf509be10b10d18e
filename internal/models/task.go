package models

import "time"

// Task statuses.
const (
	StatusBacklog = "BACKLOG"
	StatusSprint  = "SPRINT"
	StatusDone    = "DONE"
)

// Task types.
const (
	TypeEpic    = "EPIC"
	TypePBI     = "PBI"
	TypeTask    = "TASK"
	TypeRoutine = "ROUTINE"
)

// Urgency and risk levels.
const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// AllowedPoints is the fixed set of valid story-point values.
var AllowedPoints = []int{1, 2, 3, 5, 8, 13, 21, 34}

// Task is the core work item in Sprintdeck.
type Task struct {
	ID               string  `gorm:"primaryKey;size:32"`
	WorkspaceID      string  `gorm:"size:32;not null;index"`
	CreatorID        string  `gorm:"size:32;not null"`
	Title            string  `gorm:"not null"`
	Description      string  `gorm:"type:text"`
	DefinitionOfDone string  `gorm:"type:text"`
	Points           int     `gorm:"not null"`
	Urgency          string  `gorm:"size:8;default:MEDIUM"`
	Risk             string  `gorm:"size:8;default:MEDIUM"`
	Type             string  `gorm:"size:8;default:TASK"`
	Status           string  `gorm:"size:8;default:BACKLOG;index"`
	SprintID         *string `gorm:"size:32;index"`
	ParentID         *string `gorm:"size:32"`
	AssigneeID       *string `gorm:"size:32"`
	DueDate          *time.Time
	Tags             string `gorm:"type:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Parent    *Task           `gorm:"foreignKey:ParentID"`
	Deps      []TaskDep       `gorm:"foreignKey:TaskID"`
	Checklist []ChecklistItem `gorm:"foreignKey:TaskID"`
}

// TaskDep represents a "must finish before" relationship: TaskID
// cannot enter SPRINT or DONE until DependsOnID is DONE.
type TaskDep struct {
	TaskID      string `gorm:"primaryKey;size:32"`
	DependsOnID string `gorm:"primaryKey;size:32"`

	Task      Task `gorm:"foreignKey:TaskID"`
	DependsOn Task `gorm:"foreignKey:DependsOnID"`
}

// ChecklistItem is one entry in a task's ordered checklist. Items have
// no identity beyond their parent task and are copied by value when a
// routine task recurs.
type ChecklistItem struct {
	ID       string `gorm:"primaryKey;size:36"`
	TaskID   string `gorm:"size:32;index;not null"`
	Text     string `gorm:"not null"`
	Done     bool   `gorm:"default:false"`
	Position int
}
