package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// deferPayload is the Detail body of a DEFER suggestion.
type deferPayload struct {
	Tip string `json:"tip"`
}

// splitPayload is the Detail body of a split suggestion.
type splitPayload struct {
	Mandatory bool      `json:"mandatory"`
	Items     []SubItem `json:"items"`
}

// Dispatch scores a task and records the matching suggestion. It runs
// only for BACKLOG tasks, after the mutation that produced them has
// committed; callers log and swallow its error. Re-running for the
// same task just adds another advisory record.
func Dispatch(ctx context.Context, gdb *gorm.DB, gen Generator, t *models.Task, userID string, defaultLow, defaultHigh int) (*models.Suggestion, error) {
	if t.Status != models.StatusBacklog {
		return nil, nil
	}

	setting, err := GetOrCreateSetting(gdb, userID, t.WorkspaceID, defaultLow, defaultHigh)
	if err != nil {
		return nil, err
	}
	low, high := EffectiveBounds(setting)
	score := Score(t.Points)

	var kind string
	var payload interface{}
	switch {
	case score < low:
		kind = models.SuggestionDefer
		payload = deferPayload{
			Tip: fmt.Sprintf("Score %d is below your threshold %d; keep %q in the backlog for now.", score, low, t.Title),
		}
	default:
		kind = models.SuggestionSplitProposed
		mandatory := score > high
		if mandatory {
			kind = models.SuggestionSplitRequired
		}
		items, err := generateSplit(ctx, gen, t)
		if err != nil {
			return nil, err
		}
		payload = splitPayload{Mandatory: mandatory, Items: items}
	}

	detail, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("automation: marshal suggestion: %w", err)
	}

	suggestion := models.Suggestion{
		ID:          uuid.NewString(),
		TaskID:      t.ID,
		WorkspaceID: t.WorkspaceID,
		Kind:        kind,
		Detail:      string(detail),
	}
	if err := gdb.Create(&suggestion).Error; err != nil {
		return nil, fmt.Errorf("automation: store suggestion: %w", err)
	}
	return &suggestion, nil
}

// generateSplit runs the configured generator and sanitizes its
// output, falling back to the deterministic heuristic when the
// generator fails or returns too few usable items.
func generateSplit(ctx context.Context, gen Generator, t *models.Task) ([]SubItem, error) {
	if gen == nil {
		gen = Heuristic{}
	}
	items, err := gen.Generate(ctx, t.Title, t.Description, t.Points)
	if err == nil {
		items = Sanitize(items)
	}
	if err != nil || len(items) < 2 {
		items, err = Heuristic{}.Generate(ctx, t.Title, t.Description, t.Points)
		if err != nil {
			return nil, fmt.Errorf("automation: split %s: %w", t.ID, err)
		}
		items = Sanitize(items)
	}
	return items, nil
}

// ListSuggestions returns a task's suggestions, newest first.
func ListSuggestions(gdb *gorm.DB, workspaceID, taskID string) ([]models.Suggestion, error) {
	var suggestions []models.Suggestion
	if err := gdb.Where("workspace_id = ? AND task_id = ?", workspaceID, taskID).
		Order("created_at DESC").Find(&suggestions).Error; err != nil {
		return nil, fmt.Errorf("automation: list suggestions: %w", err)
	}
	return suggestions, nil
}
