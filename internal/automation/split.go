package automation

import (
	"context"
	"fmt"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

// SubItem is one suggested piece of a split task.
type SubItem struct {
	Title   string `json:"title"`
	Points  int    `json:"points"`
	Urgency string `json:"urgency"`
	Risk    string `json:"risk"`
	Detail  string `json:"detail"`
}

// Generator produces 2-4 suggested sub-items for a task. It may be
// backed by a remote model or the deterministic Heuristic; either way
// the dispatcher sanitizes the output before storing it.
type Generator interface {
	Generate(ctx context.Context, title, description string, points int) ([]SubItem, error)
}

// Heuristic is the deterministic fallback Generator: split count and
// point allocation follow the task's magnitude.
type Heuristic struct{}

// Generate splits a task into 2-4 parts sized by snapping an even share
// of the points into the allowed set.
func (Heuristic) Generate(_ context.Context, title, _ string, points int) ([]SubItem, error) {
	count := 2
	switch {
	case points >= 21:
		count = 4
	case points >= 13:
		count = 3
	}

	share := SnapPoints(points / count)
	items := make([]SubItem, count)
	for i := range items {
		items[i] = SubItem{
			Title:   fmt.Sprintf("%s (part %d of %d)", title, i+1, count),
			Points:  share,
			Urgency: models.LevelMedium,
			Risk:    models.LevelMedium,
			Detail:  fmt.Sprintf("Carve out a %d-point slice of the original scope.", share),
		}
	}
	return items, nil
}

// SnapPoints coerces a value onto the nearest allowed story-point
// value, preferring the smaller on ties. Only the automation heuristic
// coerces; direct task writes reject out-of-set points outright.
func SnapPoints(p int) int {
	best := models.AllowedPoints[0]
	bestDist := abs(p - best)
	for _, allowed := range models.AllowedPoints[1:] {
		if d := abs(p - allowed); d < bestDist {
			best = allowed
			bestDist = d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Sanitize clamps generator output to task-field invariants and bounds
// the item count to 2-4, so a misbehaving remote generator cannot store
// invalid suggestions.
func Sanitize(items []SubItem) []SubItem {
	if len(items) > 4 {
		items = items[:4]
	}
	out := make([]SubItem, 0, len(items))
	for _, item := range items {
		if item.Title == "" {
			continue
		}
		item.Points = SnapPoints(item.Points)
		if item.Urgency != models.LevelLow && item.Urgency != models.LevelHigh {
			item.Urgency = models.LevelMedium
		}
		if item.Risk != models.LevelLow && item.Risk != models.LevelHigh {
			item.Risk = models.LevelMedium
		}
		out = append(out, item)
	}
	return out
}
