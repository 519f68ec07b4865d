package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-lifeline/queue"
)

type enqueueRequest struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handlers) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	rec, err := h.Queue.Enqueue(c.Request.Context(), queue.Record{ID: req.ID, Kind: req.Kind, Payload: req.Payload})
	switch {
	case errors.Is(err, queue.ErrConflict):
		errorJSON(c, http.StatusConflict, err)
		return
	case err != nil && !errors.Is(err, queue.ErrEmpty):
		h.Logger.Error("enqueue failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, err)
		return
	case err != nil:
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err := h.Sync.RegisterReplay(queue.ReplayTag); err != nil {
		h.Logger.Warn("register replay failed", "error", err)
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handlers) ListQueue(c *gin.Context) {
	list, err := h.Queue.List(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) Ack(c *gin.Context) {
	err := h.Queue.Ack(c.Request.Context(), c.Param("id"))
	if errors.Is(err, queue.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ClearQueue(c *gin.Context) {
	n, err := h.Queue.Clear(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// Replay hands queued records to connected clients immediately.
func (h *Handlers) Replay(c *gin.Context) {
	n, err := h.Queue.ReplayAll(c.Request.Context())
	if errors.Is(err, queue.ErrNoClients) {
		errorJSON(c, http.StatusConflict, err)
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": n})
}
