package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-lifeline/notify"
)

// Push displays a raw push payload. With ?target= the rendered notification
// is also fanned out through FCM.
func (h *Handlers) Push(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	n := h.Dispatcher.Push(body)

	resp := gin.H{"notification": n}
	if target := c.Query("target"); target != "" {
		id, err := h.Dispatcher.Fanout(c.Request.Context(), target, n)
		if err != nil {
			h.Logger.Warn("push fan-out failed", "target", target, "error", err)
			resp["fanoutError"] = err.Error()
		} else {
			resp["messageId"] = id
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dispatcher.Tray().List())
}

type clickRequest struct {
	Action string `json:"action"`
}

// Click routes a notification click.
func (h *Handlers) Click(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	intent, err := h.Dispatcher.Click(c.Param("id"), req.Action)
	if errors.Is(err, notify.ErrUnknownNotification) {
		errorJSON(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *Handlers) CloseNotification(c *gin.Context) {
	if !h.Dispatcher.Dismiss(c.Param("id")) {
		errorJSON(c, http.StatusNotFound, notify.ErrUnknownNotification)
		return
	}
	c.Status(http.StatusNoContent)
}
