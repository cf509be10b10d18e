package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/notify"
	"github.com/sprintdeck/sprintdeck/internal/routine"
	"gorm.io/gorm"
)

// StartScan runs the periodic routine/due-date scan on the given
// 5-field cron expression until ctx is cancelled. The scan is purely
// advisory: it announces overdue work, it never mutates tasks.
func StartScan(ctx context.Context, gdb *gorm.DB, hub *notify.Hub, expr string) error {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		if err := scanOnce(gdb, hub, time.Now()); err != nil {
			log.Printf("scan: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scan: parse cron %q: %w", expr, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// scanOnce reports routine rules past their next occurrence and
// backlog tasks past their due date.
func scanOnce(gdb *gorm.DB, hub *notify.Hub, now time.Time) error {
	rules, err := routine.Overdue(gdb, now)
	if err != nil {
		return err
	}

	var overdueTasks int64
	if err := gdb.Model(&models.Task{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.StatusBacklog, now).
		Count(&overdueTasks).Error; err != nil {
		return fmt.Errorf("scan: count overdue tasks: %w", err)
	}

	if hub == nil || (len(rules) == 0 && overdueTasks == 0) {
		return nil
	}
	hub.Announce(notify.Event{
		Title:    "Backlog attention needed",
		Body:     fmt.Sprintf("%d routine rule(s) due, %d backlog task(s) past due date.", len(rules), overdueTasks),
		Severity: "warning",
	})
	return nil
}
