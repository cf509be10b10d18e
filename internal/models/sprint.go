package models

import "time"

// Sprint statuses.
const (
	SprintActive = "ACTIVE"
	SprintClosed = "CLOSED"
)

// Sprint is a time-boxed, capacity-bounded commitment container.
//
// ActiveToken equals WorkspaceID while the sprint is ACTIVE and is NULL
// once CLOSED; the unique index on it is what guarantees at most one
// ACTIVE sprint per workspace at the database level.
type Sprint struct {
	ID             string  `gorm:"primaryKey;size:32"`
	WorkspaceID    string  `gorm:"size:32;not null;index"`
	Name           string  `gorm:"not null"`
	CapacityPoints int     `gorm:"not null"`
	Status         string  `gorm:"size:8;default:ACTIVE"`
	ActiveToken    *string `gorm:"size:32;uniqueIndex"`
	StartedAt      time.Time
	PlannedEndAt   *time.Time
	EndedAt        *time.Time
}
