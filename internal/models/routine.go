package models

import "time"

// Routine cadences. Absence of a RoutineRule row means no recurrence;
// there is no "NONE" cadence value stored.
const (
	CadenceDaily  = "DAILY"
	CadenceWeekly = "WEEKLY"
)

// RoutineRule drives recurrence for a ROUTINE task. The rule follows
// the chain of occurrences: completing the task re-points TaskID at the
// newly spawned successor.
type RoutineRule struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	TaskID  string `gorm:"size:32;uniqueIndex;not null"`
	Cadence string `gorm:"size:8;not null"`
	NextAt  time.Time
}
