package board

import (
	"errors"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"gorm.io/gorm"
)

// TaskRow holds task data for display in a board column.
type TaskRow struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Points   int        `json:"points"`
	Urgency  string     `json:"urgency"`
	Type     string     `json:"type"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// SprintHeader holds the active sprint's numbers for the board header.
type SprintHeader struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CapacityPoints  int    `json:"capacityPoints"`
	CommittedPoints int    `json:"committedPoints"`
	RemainingPoints int    `json:"remainingPoints"`
}

// Snapshot is one full board state for a workspace.
type Snapshot struct {
	Workspace string               `json:"workspace"`
	Sprint    *SprintHeader        `json:"sprint"`
	Columns   map[string][]TaskRow `json:"columns"`
}

// LoadSnapshot reads the workspace's board state: the active sprint
// header when one exists, and every task grouped by status.
func LoadSnapshot(db *gorm.DB, workspace string) (*Snapshot, error) {
	snap := &Snapshot{
		Workspace: workspace,
		Columns: map[string][]TaskRow{
			models.StatusBacklog: {},
			models.StatusSprint:  {},
			models.StatusDone:    {},
		},
	}

	summary, err := sprint.GetSummary(db, workspace)
	switch {
	case err == nil:
		snap.Sprint = &SprintHeader{
			ID:              summary.Sprint.ID,
			Name:            summary.Sprint.Name,
			CapacityPoints:  summary.Sprint.CapacityPoints,
			CommittedPoints: summary.CommittedPoints,
			RemainingPoints: summary.RemainingPoints,
		}
	case errors.Is(err, sprint.ErrNoActiveSprint):
		// The board renders without a header between sprints.
	default:
		return nil, err
	}

	// Urgency is a string enum, so ordering needs an explicit rank.
	var tasks []models.Task
	if err := db.Where("workspace_id = ?", workspace).
		Order("CASE urgency WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END ASC, due_date ASC, created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	for _, t := range tasks {
		row := TaskRow{
			ID:      t.ID,
			Title:   t.Title,
			Points:  t.Points,
			Urgency: t.Urgency,
			Type:    t.Type,
			DueDate: t.DueDate,
		}
		if t.AssigneeID != nil {
			row.Assignee = *t.AssigneeID
		}
		snap.Columns[t.Status] = append(snap.Columns[t.Status], row)
	}
	return snap, nil
}
