package board

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up the board routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, workspace string) {
	router.GET("/", handleBoard(workspace))
	router.GET("/api/board", handleSnapshot(db, workspace))
	router.GET("/api/events", handleSSE(db, workspace))
}

func handleBoard(workspace string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "board.html", gin.H{
			"workspace": workspace,
		})
	}
}

func handleSnapshot(db *gorm.DB, workspace string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := LoadSnapshot(db, workspace)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
