package board

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// statusChangeEvent holds data for one task status transition pushed to
// the client.
type statusChangeEvent struct {
	ID         uint    `json:"id"`
	TaskID     string  `json:"taskId"`
	FromStatus *string `json:"fromStatus"`
	ToStatus   string  `json:"toStatus"`
	Source     string  `json:"source"`
}

// handleSSE streams task status transitions for the workspace, polling
// the event log for rows newer than the last one sent.
func handleSSE(db *gorm.DB, workspace string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"workspace": workspace})
		c.Writer.Flush()

		if db == nil {
			return
		}

		// Only alert on transitions that happen after the client connects.
		var lastSeenID uint
		var latest models.TaskStatusEvent
		if err := db.Where("workspace_id = ?", workspace).
			Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var events []models.TaskStatusEvent
				db.Where("workspace_id = ? AND id > ?", workspace, lastSeenID).
					Order("id ASC").
					Find(&events)
				if len(events) == 0 {
					continue
				}
				lastSeenID = events[len(events)-1].ID

				for _, e := range events {
					writeSSE(c.Writer, "status-change", statusChangeEvent{
						ID:         e.ID,
						TaskID:     e.TaskID,
						FromStatus: e.FromStatus,
						ToStatus:   e.ToStatus,
						Source:     e.Source,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
