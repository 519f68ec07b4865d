package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-lifeline/db"
	"go-lifeline/session"
	"go-lifeline/types"
)

func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.Sessions.Load()
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
		errorJSON(c, http.StatusUnauthorized, err)
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, sess)
	}
}

type sessionRequest struct {
	User types.User `json:"user"`
}

func (h *Handlers) PutSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	user, err := h.resolveUser(c.Request.Context(), req.User)
	switch {
	case errors.Is(err, db.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
		return
	case err != nil:
		errorJSON(c, http.StatusBadGateway, err)
		return
	}
	sess, err := h.Sessions.Save(user)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handlers) DeleteSession(c *gin.Context) {
	h.Sessions.Clear()
	c.Status(http.StatusNoContent)
}

// resolveUser loads the stored profile when only an id is given and records
// the profile otherwise. Guests and the no-backend case pass through.
func (h *Handlers) resolveUser(ctx context.Context, u types.User) (types.User, error) {
	if h.Users == nil || u.ID == "" || u.Type == types.GuestUser {
		return u, nil
	}
	if u.Type == "" {
		return h.Users.Get(ctx, u.ID)
	}
	if err := h.Users.Put(ctx, u); err != nil {
		h.Logger.Warn("user profile not saved", "user", u.ID, "error", err)
	}
	return u, nil
}
