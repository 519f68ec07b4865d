package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-lifeline/worker"
)

// PostMessage accepts control messages on the worker's message port.
func (h *Handlers) PostMessage(c *gin.Context) {
	var msg worker.ControlMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	err := h.Worker.HandleMessage(c.Request.Context(), msg)
	if errors.Is(err, worker.ErrUnknownMessage) {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		h.Logger.Error("control message failed", "type", msg.Type, "error", err)
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.Worker.State()})
}

func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":      h.Worker.State(),
		"partitions": h.Worker.Partitions(),
		"clients":    h.Hub.MatchAll(),
	})
}

// ClientStream registers the caller as a client and streams its messages as
// server-sent events until the connection closes.
func (h *Handlers) ClientStream(c *gin.Context) {
	id := uuid.NewString()
	page := c.Query("url")
	if page == "" {
		page = h.Hub.Origin() + "/"
	}
	ch, release := h.Hub.Register(id, page)
	defer release()
	h.Logger.Debug("client connected", "client", id, "url", page)

	c.SSEvent("ready", gin.H{"clientId": id})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(msg.Type, msg.Data)
			return true
		case <-ctx.Done():
			return false
		}
	})
	h.Logger.Debug("client disconnected", "client", id)
}

type syncRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// RegisterSync schedules a sync tag for the next connectivity opportunity.
func (h *Handlers) RegisterSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err := h.Sync.RegisterReplay(req.Tag); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": h.Sync.Pending()})
}
