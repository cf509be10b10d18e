package task

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"gorm.io/gorm"
)

// committedTotal sums points over SPRINT-status tasks in ws1.
func committedTotal(t *testing.T, gdb *gorm.DB) int {
	t.Helper()
	var tasks []models.Task
	if err := gdb.Where("workspace_id = ? AND status = ?", "ws1", models.StatusSprint).
		Find(&tasks).Error; err != nil {
		t.Fatalf("load sprint tasks: %v", err)
	}
	total := 0
	for _, tk := range tasks {
		total += tk.Points
	}
	return total
}

func moveToSprint(t *testing.T, gdb *gorm.DB, id string) {
	t.Helper()
	if _, err := Update(gdb, "ws1", id, "alice", Patch{Status: strPtr(models.StatusSprint)}); err != nil {
		t.Fatalf("move %s to sprint: %v", id, err)
	}
}

func TestCapacity_RejectsOverflow(t *testing.T) {
	gdb := openTestDB(t)
	startTestSprint(t, gdb, 10)
	first := createTestTask(t, gdb, "First", 8)
	second := createTestTask(t, gdb, "Second", 3)

	moveToSprint(t, gdb, first.ID)

	_, err := Update(gdb, "ws1", second.ID, "alice", Patch{Status: strPtr(models.StatusSprint)})
	if !errors.Is(err, sprint.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}

	if got := committedTotal(t, gdb); got != 8 {
		t.Errorf("committed points = %d, want 8", got)
	}
	reloaded, err := Get(gdb, "ws1", second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != models.StatusBacklog || reloaded.SprintID != nil {
		t.Errorf("rejected task mutated: status=%s sprintId=%v", reloaded.Status, reloaded.SprintID)
	}
}

func TestCapacity_AcceptsExactFit(t *testing.T) {
	gdb := openTestDB(t)
	s := startTestSprint(t, gdb, 10)
	first := createTestTask(t, gdb, "First", 8)
	second := createTestTask(t, gdb, "Second", 2)

	moveToSprint(t, gdb, first.ID)
	moveToSprint(t, gdb, second.ID)

	if got := committedTotal(t, gdb); got != 10 {
		t.Errorf("committed points = %d, want 10", got)
	}
	reloaded, _ := Get(gdb, "ws1", second.ID)
	if reloaded.SprintID == nil || *reloaded.SprintID != s.ID {
		t.Errorf("SprintID = %v, want %s", reloaded.SprintID, s.ID)
	}
}

func TestCapacity_NoActiveSprint(t *testing.T) {
	gdb := openTestDB(t)
	task := createTestTask(t, gdb, "Orphan", 2)

	_, err := Update(gdb, "ws1", task.ID, "alice", Patch{Status: strPtr(models.StatusSprint)})
	if !errors.Is(err, sprint.ErrNoActiveSprint) {
		t.Fatalf("err = %v, want ErrNoActiveSprint", err)
	}
}

func TestCapacity_PointChangeInSprint(t *testing.T) {
	gdb := openTestDB(t)
	startTestSprint(t, gdb, 10)
	a := createTestTask(t, gdb, "A", 5)
	b := createTestTask(t, gdb, "B", 3)
	moveToSprint(t, gdb, a.ID)
	moveToSprint(t, gdb, b.ID)

	// 5+3 committed; growing B to 8 would make 13.
	_, err := Update(gdb, "ws1", b.ID, "alice", Patch{Points: intPtr(8)})
	if !errors.Is(err, sprint.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	reloaded, _ := Get(gdb, "ws1", b.ID)
	if reloaded.Points != 3 {
		t.Errorf("points = %d, want unchanged 3", reloaded.Points)
	}

	// Shrinking B is always fine, and growing within headroom works.
	if _, err := Update(gdb, "ws1", b.ID, "alice", Patch{Points: intPtr(2)}); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if _, err := Update(gdb, "ws1", b.ID, "alice", Patch{Points: intPtr(5)}); err != nil {
		t.Fatalf("grow within headroom: %v", err)
	}
	if got := committedTotal(t, gdb); got != 10 {
		t.Errorf("committed points = %d, want 10", got)
	}
}

func TestCapacity_BacklogPointChangeUnchecked(t *testing.T) {
	gdb := openTestDB(t)
	startTestSprint(t, gdb, 5)
	a := createTestTask(t, gdb, "A", 3)

	// Not in the sprint, so capacity does not apply.
	if _, err := Update(gdb, "ws1", a.ID, "alice", Patch{Points: intPtr(34)}); err != nil {
		t.Fatalf("backlog point change: %v", err)
	}
}

func TestCreate_DirectlyIntoSprint(t *testing.T) {
	gdb := openTestDB(t)
	s := startTestSprint(t, gdb, 10)

	created, err := Create(gdb, CreateOpts{
		WorkspaceID: "ws1", CreatorID: "alice", Title: "Committed at birth", Points: 8,
		Status: models.StatusSprint,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != models.StatusSprint || created.SprintID == nil || *created.SprintID != s.ID {
		t.Errorf("created = status %s sprint %v", created.Status, created.SprintID)
	}

	_, err = Create(gdb, CreateOpts{
		WorkspaceID: "ws1", CreatorID: "alice", Title: "Too big", Points: 3,
		Status: models.StatusSprint,
	})
	if !errors.Is(err, sprint.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	var count int64
	gdb.Model(&models.Task{}).Where("title = ?", "Too big").Count(&count)
	if count != 0 {
		t.Errorf("rejected create left a row behind")
	}
}

func TestSprintToBacklog_ClearsSprintID(t *testing.T) {
	gdb := openTestDB(t)
	startTestSprint(t, gdb, 10)
	a := createTestTask(t, gdb, "A", 5)
	moveToSprint(t, gdb, a.ID)

	result, err := Update(gdb, "ws1", a.ID, "alice", Patch{Status: strPtr(models.StatusBacklog)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.Task.SprintID != nil {
		t.Errorf("SprintID = %v, want nil", *result.Task.SprintID)
	}

	var events int64
	gdb.Model(&models.TaskStatusEvent{}).Where("task_id = ?", a.ID).Count(&events)
	// create + to-sprint + to-backlog
	if events != 3 {
		t.Errorf("status events = %d, want 3", events)
	}
}

func TestCapacity_ConcurrentMoves(t *testing.T) {
	gdb := openTestDB(t)
	startTestSprint(t, gdb, 8)

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = createTestTask(t, gdb, fmt.Sprintf("Racer %d", i), 3).ID
	}

	// Race every task into the sprint at once. Whatever interleaving
	// the scheduler produces, the committed total must stay within
	// capacity: only rejections and retry conflicts are acceptable
	// failures.
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = Update(gdb, "ws1", ids[i], "alice", Patch{Status: strPtr(models.StatusSprint)})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, sprint.ErrCapacityExceeded), errors.Is(err, db.ErrTxConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	committed := committedTotal(t, gdb)
	if committed > 8 {
		t.Errorf("committed = %d points, exceeds capacity 8", committed)
	}
	if accepted*3 != committed {
		t.Errorf("accepted %d moves but committed %d points", accepted, committed)
	}
	if accepted > 2 {
		t.Errorf("accepted = %d moves of 3 points into capacity 8, want at most 2", accepted)
	}
}
