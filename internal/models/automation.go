package models

import "time"

// Suggestion kinds emitted by the automation dispatcher.
const (
	SuggestionDefer         = "DEFER"
	SuggestionSplitProposed = "SPLIT_PROPOSED"
	SuggestionSplitRequired = "SPLIT_REQUIRED"
)

// AutomationSetting holds per-(user, workspace) scoring thresholds.
// Stage is server-managed: it is advanced by an approval workflow and
// never writable by clients. Effective bounds are Low/High + Stage*5.
type AutomationSetting struct {
	UserID      string `gorm:"primaryKey;size:32"`
	WorkspaceID string `gorm:"primaryKey;size:32"`
	Low         int    `gorm:"default:35"`
	High        int    `gorm:"default:70"`
	Stage       int    `gorm:"default:0"`
	UpdatedAt   time.Time
}

// Suggestion is an advisory record produced by the automation
// dispatcher for a task. Detail carries the generator's sub-item
// payload as JSON for split suggestions.
type Suggestion struct {
	ID          string `gorm:"primaryKey;size:36"`
	TaskID      string `gorm:"size:32;index;not null"`
	WorkspaceID string `gorm:"size:32;index;not null"`
	Kind        string `gorm:"size:16;not null"`
	Detail      string `gorm:"type:json"`
	CreatedAt   time.Time
}

// Comment is a free-form note on a task.
type Comment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TaskID    string `gorm:"size:32;index;not null"`
	AuthorID  string `gorm:"size:32"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}
