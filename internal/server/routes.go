package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sprintdeck/sprintdeck/internal/automation"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/notify"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"github.com/sprintdeck/sprintdeck/internal/task"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, hub *notify.Hub) {
	api := router.Group("/api", requirePrincipal())

	api.POST("/tasks", handleTaskCreate(db, hub))
	api.GET("/tasks", handleTaskList(db))
	api.GET("/tasks/ready", handleTaskReady(db))
	api.GET("/tasks/:id", handleTaskGet(db))
	api.PATCH("/tasks/:id", handleTaskUpdate(db, hub))
	api.DELETE("/tasks/:id", handleTaskDelete(db, hub))
	api.POST("/tasks/bulk", handleTaskBulk(db, hub))
	api.GET("/tasks/:id/suggestions", handleSuggestions(db))

	api.POST("/sprints", handleSprintStart(db, hub))
	api.POST("/sprints/end", handleSprintEnd(db, hub))
	api.GET("/sprints/active", handleSprintSummary(db))
}

type checklistItemInput struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

func checklistInputs(items []checklistItemInput) []task.ChecklistInput {
	out := make([]task.ChecklistInput, len(items))
	for i, item := range items {
		out[i] = task.ChecklistInput{Text: item.Text, Done: item.Done}
	}
	return out
}

// normalizeCadence maps the wire value onto the engine's optional
// cadence: the literal "NONE" means removal, same as null.
func normalizeCadence(s string) string {
	if s == "NONE" {
		return ""
	}
	return s
}

type createTaskRequest struct {
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	DefinitionOfDone string               `json:"definitionOfDone"`
	Points           int                  `json:"points"`
	Urgency          string               `json:"urgency"`
	Risk             string               `json:"risk"`
	Type             string               `json:"type"`
	Status           string               `json:"status"`
	DueDate          *time.Time           `json:"dueDate"`
	AssigneeID       string               `json:"assigneeId"`
	ParentID         string               `json:"parentId"`
	Tags             []string             `json:"tags"`
	Checklist        []checklistItemInput `json:"checklist"`
	DependencyIDs    []string             `json:"dependencyIds"`
	RoutineCadence   string               `json:"routineCadence"`
}

func handleTaskCreate(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("task: parse request: %w", err))
			return
		}

		created, err := task.Create(db, task.CreateOpts{
			WorkspaceID:      p.WorkspaceID,
			CreatorID:        p.UserID,
			Title:            req.Title,
			Description:      req.Description,
			DefinitionOfDone: req.DefinitionOfDone,
			Points:           req.Points,
			Urgency:          req.Urgency,
			Risk:             req.Risk,
			Type:             req.Type,
			Status:           req.Status,
			DueDate:          req.DueDate,
			AssigneeID:       req.AssigneeID,
			ParentID:         req.ParentID,
			Tags:             req.Tags,
			Checklist:        checklistInputs(req.Checklist),
			DependencyIDs:    req.DependencyIDs,
			Cadence:          normalizeCadence(req.RoutineCadence),
		})
		if err != nil {
			fail(c, err)
			return
		}

		if hub != nil {
			hub.Audit(p.UserID, "task.create", p.WorkspaceID, map[string]interface{}{"taskId": created.ID})
			hub.Automation(*created, p.UserID)
		}
		c.JSON(http.StatusCreated, created)
	}
}

type updateTaskRequest struct {
	Title            *string               `json:"title"`
	Description      *string               `json:"description"`
	DefinitionOfDone *string               `json:"definitionOfDone"`
	Points           *int                  `json:"points"`
	Urgency          *string               `json:"urgency"`
	Risk             *string               `json:"risk"`
	Type             *string               `json:"type"`
	Status           *string               `json:"status"`
	DueDate          *time.Time            `json:"dueDate"`
	AssigneeID       *string               `json:"assigneeId"`
	Tags             *[]string             `json:"tags"`
	Checklist        *[]checklistItemInput `json:"checklist"`
	DependencyIDs    *[]string             `json:"dependencyIds"`
	RoutineCadence   *string               `json:"routineCadence"`
}

func handleTaskUpdate(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("task: parse request: %w", err))
			return
		}

		patch := task.Patch{
			Title:            req.Title,
			Description:      req.Description,
			DefinitionOfDone: req.DefinitionOfDone,
			Points:           req.Points,
			Urgency:          req.Urgency,
			Risk:             req.Risk,
			Type:             req.Type,
			Status:           req.Status,
			DueDate:          req.DueDate,
			AssigneeID:       req.AssigneeID,
			Tags:             req.Tags,
			DependencyIDs:    req.DependencyIDs,
		}
		if req.Checklist != nil {
			items := checklistInputs(*req.Checklist)
			patch.Checklist = &items
		}
		if req.RoutineCadence != nil {
			cadence := normalizeCadence(*req.RoutineCadence)
			patch.Cadence = &cadence
		}

		result, err := task.Update(db, p.WorkspaceID, c.Param("id"), p.UserID, patch)
		if err != nil {
			if hub != nil && errors.Is(err, sprint.ErrCapacityExceeded) {
				hub.Announce(notify.Event{
					Title:    "Sprint capacity rejection",
					Body:     err.Error(),
					Severity: "warning",
				})
			}
			fail(c, err)
			return
		}

		if hub != nil {
			hub.Audit(p.UserID, "task.update", p.WorkspaceID, map[string]interface{}{"taskId": result.Task.ID})
			if result.StatusChanged && result.Task.Status == models.StatusBacklog {
				hub.Automation(*result.Task, p.UserID)
			}
			if result.Successor != nil {
				hub.Automation(*result.Successor, p.UserID)
			}
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleTaskDelete(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		id := c.Param("id")
		if err := task.Delete(db, p.WorkspaceID, id); err != nil {
			fail(c, err)
			return
		}
		if hub != nil {
			hub.Audit(p.UserID, "task.delete", p.WorkspaceID, map[string]interface{}{"taskId": id})
		}
		c.Status(http.StatusNoContent)
	}
}

type bulkRequest struct {
	Action  string   `json:"action"`
	TaskIDs []string `json:"taskIds"`
	Status  string   `json:"status"`
	Points  int      `json:"points"`
}

func handleTaskBulk(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("task: parse request: %w", err))
			return
		}

		result, err := task.Bulk(db, task.BulkOpts{
			WorkspaceID: p.WorkspaceID,
			ActorID:     p.UserID,
			Action:      req.Action,
			TaskIDs:     req.TaskIDs,
			Status:      req.Status,
			Points:      req.Points,
		})
		if err != nil {
			if hub != nil && errors.Is(err, sprint.ErrCapacityExceeded) {
				hub.Announce(notify.Event{
					Title:    "Sprint capacity rejection",
					Body:     err.Error(),
					Severity: "warning",
				})
			}
			fail(c, err)
			return
		}

		if hub != nil {
			hub.Audit(p.UserID, "task.bulk."+req.Action, p.WorkspaceID, map[string]interface{}{
				"taskIds": result.Affected,
			})
			if req.Action == task.BulkStatus && req.Status == models.StatusBacklog {
				for _, id := range result.Affected {
					if t, err := task.Get(db, p.WorkspaceID, id); err == nil {
						hub.Automation(*t, p.UserID)
					}
				}
			}
			for _, successor := range result.Successors {
				hub.Automation(*successor, p.UserID)
			}
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleTaskGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		t, err := task.Get(db, p.WorkspaceID, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleTaskList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		tasks, err := task.List(db, p.WorkspaceID, task.ListFilters{
			Status:     c.Query("status"),
			Type:       c.Query("type"),
			AssigneeID: c.Query("assigneeId"),
			SprintID:   c.Query("sprintId"),
			ParentID:   c.Query("parentId"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func handleTaskReady(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		tasks, err := task.ListReady(db, p.WorkspaceID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func handleSuggestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		suggestions, err := automation.ListSuggestions(db, p.WorkspaceID, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, suggestions)
	}
}

type startSprintRequest struct {
	Name           string     `json:"name"`
	CapacityPoints int        `json:"capacityPoints"`
	PlannedEndAt   *time.Time `json:"plannedEndAt"`
}

func handleSprintStart(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		var req startSprintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("sprint: parse request: %w", err))
			return
		}

		started, err := sprint.Start(db, sprint.StartOpts{
			WorkspaceID:    p.WorkspaceID,
			Name:           req.Name,
			CapacityPoints: req.CapacityPoints,
			PlannedEndAt:   req.PlannedEndAt,
			ActorID:        p.UserID,
		})
		if err != nil {
			fail(c, err)
			return
		}

		if hub != nil {
			hub.Audit(p.UserID, "sprint.start", p.WorkspaceID, map[string]interface{}{"sprintId": started.ID})
			hub.Announce(notify.Event{
				Title:    fmt.Sprintf("Sprint %q started", started.Name),
				Body:     fmt.Sprintf("Capacity %d points.", started.CapacityPoints),
				Severity: "success",
			})
		}
		c.JSON(http.StatusCreated, started)
	}
}

func handleSprintEnd(db *gorm.DB, hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		closed, err := sprint.End(db, p.WorkspaceID, p.UserID)
		if err != nil {
			fail(c, err)
			return
		}

		if hub != nil {
			hub.Audit(p.UserID, "sprint.end", p.WorkspaceID, map[string]interface{}{"sprintId": closed.ID})
			hub.Announce(notify.Event{
				Title:    fmt.Sprintf("Sprint %q ended", closed.Name),
				Body:     "Remaining tasks returned to the backlog.",
				Severity: "info",
			})
		}
		c.JSON(http.StatusOK, closed)
	}
}

func handleSprintSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		summary, err := sprint.GetSummary(db, p.WorkspaceID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
