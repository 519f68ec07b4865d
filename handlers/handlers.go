// Package handlers holds the gin handlers for the worker control surface,
// notifications, the offline queue and the reconciled data views.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-lifeline/clients"
	"go-lifeline/datasync"
	"go-lifeline/notify"
	"go-lifeline/queue"
	"go-lifeline/session"
	"go-lifeline/types"
	"go-lifeline/worker"
)

// IncidentStore is the emergencies repository. Reads are only used before
// the snapshot controller has reconciled state.
type IncidentStore interface {
	Create(ctx context.Context, inc types.Incident) (string, error)
	SetStatus(ctx context.Context, id string, next types.Status, extra map[string]any) error
	GetByID(ctx context.Context, id string) (types.Incident, error)
	ListByStatus(ctx context.Context, s types.Status) ([]types.Incident, error)
}

// UserStore persists user profiles behind sessions.
type UserStore interface {
	Get(ctx context.Context, uid string) (types.User, error)
	Put(ctx context.Context, u types.User) error
}

// Handlers carries the collaborators every route needs. Incidents and Users
// may be nil when no backend is configured; incident writes are then queued
// for replay.
type Handlers struct {
	Worker     *worker.Worker
	Hub        *clients.Hub
	Dispatcher *notify.Dispatcher
	Queue      *queue.Queue
	Sync       *queue.SyncManager
	Controller *datasync.Controller
	Incidents  IncidentStore
	Users      UserStore
	Sessions   *session.Store
	Logger     *slog.Logger
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// Healthz reports liveness.
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports whether the worker is active and data sync is running.
func (h *Handlers) Readyz(c *gin.Context) {
	activated := h.Worker.State() == worker.StateActivated
	syncing := h.Controller != nil && h.Controller.Started()
	status := http.StatusOK
	if !activated {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"worker": h.Worker.State(), "sync": syncing})
}
