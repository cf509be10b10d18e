package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sprintdeck/sprintdeck/internal/db"
	"github.com/sprintdeck/sprintdeck/internal/sprint"
	"github.com/sprintdeck/sprintdeck/internal/task"
)

const principalKey = "principal"

// Principal is the acting identity resolved by the upstream session
// and workspace resolvers. The engine trusts these values and performs
// no credential verification itself.
type Principal struct {
	UserID      string
	Role        string
	WorkspaceID string
}

// requirePrincipal extracts the principal headers and aborts with 401
// when they are missing.
func requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal{
			UserID:      c.GetHeader("X-User-ID"),
			Role:        c.GetHeader("X-Role"),
			WorkspaceID: c.GetHeader("X-Workspace-ID"),
		}
		if p.UserID == "" || p.WorkspaceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing principal headers",
			})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) Principal {
	return c.MustGet(principalKey).(Principal)
}

// fail maps engine errors onto HTTP statuses: absent rows read as 404,
// invariant violations as 409, transient conflicts as 503, and
// everything else (validation) as 400.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, task.ErrNotFound) || errors.Is(err, sprint.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sprint.ErrCapacityExceeded),
		errors.Is(err, sprint.ErrNoActiveSprint),
		errors.Is(err, task.ErrDepsNotDone),
		errors.Is(err, task.ErrDepCycle),
		errors.Is(err, task.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, db.ErrTxConflict):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
