// Package board serves a read-only web view of a workspace's sprint:
// the active sprint's burn-down numbers, the task columns, and a live
// event stream. It reads the same database as the API server and never
// mutates it.
package board

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the board server.
type StartOpts struct {
	DB        *gorm.DB
	Port      int
	Workspace string
	Out       io.Writer
}

// Start launches the board HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("board: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8081
	}
	if opts.Workspace == "" {
		opts.Workspace = "local"
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.DB, opts.Workspace)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Sprint board running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("board: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with templates and routes.
func NewRouter(db *gorm.DB, workspace string) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, db, workspace)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("board: parse templates: %w", err)
	}
	return tmpl, nil
}
