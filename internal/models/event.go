package models

import "time"

// Status-event sources.
const (
	SourceAPI     = "api"
	SourceBulk    = "bulk"
	SourceRoutine = "routine"
	SourceSprint  = "sprint"
)

// TaskStatusEvent is an immutable audit record written every time a
// task's status changes. FromStatus is nil for creations.
type TaskStatusEvent struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	TaskID      string  `gorm:"size:32;index;not null"`
	WorkspaceID string  `gorm:"size:32;index;not null"`
	FromStatus  *string `gorm:"size:8"`
	ToStatus    string  `gorm:"size:8;not null"`
	ActorID     string  `gorm:"size:32"`
	Source      string  `gorm:"size:16;default:api"`
	CreatedAt   time.Time
}

// AuditLog records a best-effort trail of engine actions. Writes are
// fire-and-forget and must never fail the mutation they describe.
type AuditLog struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ActorID     string `gorm:"size:32"`
	Action      string `gorm:"size:64;not null"`
	WorkspaceID string `gorm:"size:32;index"`
	Metadata    string `gorm:"type:json"`
	CreatedAt   time.Time
}
