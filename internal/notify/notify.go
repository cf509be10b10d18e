// Package notify runs best-effort side effects off the request path:
// audit-log writes, automation dispatch, and lifecycle announcements
// to chat sinks. Failures are logged and swallowed; the primary
// mutation has already committed by the time a job runs.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/automation"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"gorm.io/gorm"
)

// jobTimeout bounds each side-effect job.
const jobTimeout = 10 * time.Second

// Event is a lifecycle notification for chat sinks.
type Event struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
}

// Sink posts events to an external channel.
type Sink interface {
	Name() string
	Post(ctx context.Context, e Event) error
}

// Hub queues side-effect jobs and drains them on a worker goroutine.
type Hub struct {
	db    *gorm.DB
	gen   automation.Generator
	low   int
	high  int
	sinks []Sink

	jobs chan func(ctx context.Context)
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// HubOpts holds parameters for creating a Hub.
type HubOpts struct {
	DB          *gorm.DB
	Generator   automation.Generator
	DefaultLow  int
	DefaultHigh int
	Sinks       []Sink
}

// NewHub creates a Hub and starts its worker.
func NewHub(opts HubOpts) *Hub {
	if opts.DefaultLow == 0 {
		opts.DefaultLow = automation.DefaultLow
	}
	if opts.DefaultHigh == 0 {
		opts.DefaultHigh = automation.DefaultHigh
	}
	h := &Hub{
		db:    opts.DB,
		gen:   opts.Generator,
		low:   opts.DefaultLow,
		high:  opts.DefaultHigh,
		sinks: opts.Sinks,
		jobs:  make(chan func(ctx context.Context), 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for job := range h.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		job(ctx)
		cancel()
		h.wg.Done()
	}
}

// enqueue schedules a job without blocking; a full queue or a closed
// hub drops the job with a log line rather than stalling the caller.
func (h *Hub) enqueue(job func(ctx context.Context)) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		log.Printf("notify: hub closed, dropping job")
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	select {
	case h.jobs <- job:
	default:
		h.wg.Done()
		log.Printf("notify: queue full, dropping job")
	}
}

// Wait blocks until all queued jobs have run. Intended for tests and
// shutdown.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Close drains outstanding jobs and stops the worker. Jobs enqueued
// after Close are dropped, never sent on the closed channel.
func (h *Hub) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.wg.Wait()
		close(h.jobs)
	})
}

// Audit queues an audit-log write.
func (h *Hub) Audit(actorID, action, workspaceID string, metadata map[string]interface{}) {
	h.enqueue(func(ctx context.Context) {
		meta := "{}"
		if len(metadata) > 0 {
			data, err := json.Marshal(metadata)
			if err != nil {
				log.Printf("notify: marshal audit metadata: %v", err)
			} else {
				meta = string(data)
			}
		}
		entry := models.AuditLog{
			ActorID:     actorID,
			Action:      action,
			WorkspaceID: workspaceID,
			Metadata:    meta,
		}
		if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
			log.Printf("notify: audit %q: %v", action, err)
		}
	})
}

// Automation queues a scoring dispatch for a newly created or
// backlog-entering task.
func (h *Hub) Automation(t models.Task, userID string) {
	h.enqueue(func(ctx context.Context) {
		if _, err := automation.Dispatch(ctx, h.db, h.gen, &t, userID, h.low, h.high); err != nil {
			log.Printf("notify: automation dispatch for %s: %v", t.ID, err)
		}
	})
}

// Announce queues an event post to every configured sink.
func (h *Hub) Announce(e Event) {
	h.enqueue(func(ctx context.Context) {
		for _, sink := range h.sinks {
			if err := sink.Post(ctx, e); err != nil {
				log.Printf("notify: %s: %v", sink.Name(), err)
			}
		}
	})
}
