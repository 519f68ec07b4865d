package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-lifeline/db"
	"go-lifeline/proximity"
	"go-lifeline/queue"
	"go-lifeline/types"
)

// KindIncident marks queued incident reports.
const KindIncident = "incident"

// ListIncidents serves reconciled state. Before the controller has started,
// a status filter is answered from the repository instead.
func (h *Handlers) ListIncidents(c *gin.Context) {
	status := types.Status(c.Query("status"))
	if status != "" && h.Incidents != nil && !h.Controller.Started() {
		list, err := h.Incidents.ListByStatus(c.Request.Context(), status)
		if err != nil {
			h.Logger.Error("list incidents failed", "status", status, "error", err)
			errorJSON(c, http.StatusBadGateway, err)
			return
		}
		if list == nil {
			list = []types.Incident{}
		}
		c.JSON(http.StatusOK, list)
		return
	}
	c.JSON(http.StatusOK, h.Controller.State().IncidentsByStatus(status))
}

func (h *Handlers) GetIncident(c *gin.Context) {
	id := c.Param("id")
	if inc, ok := h.Controller.State().Incident(id); ok {
		c.JSON(http.StatusOK, inc)
		return
	}
	if h.Incidents == nil {
		errorJSON(c, http.StatusNotFound, db.ErrNotFound)
		return
	}
	inc, err := h.Incidents.GetByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case err != nil:
		h.Logger.Error("get incident failed", "id", id, "error", err)
		errorJSON(c, http.StatusBadGateway, err)
	default:
		c.JSON(http.StatusOK, inc)
	}
}

// CreateIncident writes a report through the repository. When the backend is
// unavailable the report is queued for replay and 202 is returned instead.
func (h *Handlers) CreateIncident(c *gin.Context) {
	var inc types.Incident
	if err := c.ShouldBindJSON(&inc); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if h.Incidents != nil {
		id, err := h.Incidents.Create(c.Request.Context(), inc)
		if err == nil {
			c.JSON(http.StatusCreated, gin.H{"id": id})
			return
		}
		h.Logger.Warn("create incident failed, queueing", "error", err)
	}

	payload, err := json.Marshal(inc)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	rec, err := h.Queue.Enqueue(c.Request.Context(), queue.Record{ID: c.GetHeader("Idempotency-Key"), Kind: KindIncident, Payload: payload})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrConflict) {
			status = http.StatusConflict
		}
		errorJSON(c, status, err)
		return
	}
	if err := h.Sync.RegisterReplay(queue.ReplayTag); err != nil {
		h.Logger.Warn("register replay failed", "error", err)
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": rec})
}

type statusRequest struct {
	Status types.Status   `json:"status" binding:"required"`
	Extra  map[string]any `json:"extra"`
}

// SetStatus moves an incident forward through its lifecycle.
func (h *Handlers) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if !req.Status.Known() {
		errorJSON(c, http.StatusBadRequest, errors.New("unknown status "+string(req.Status)))
		return
	}
	if h.Incidents == nil {
		errorJSON(c, http.StatusServiceUnavailable, errors.New("backend not configured"))
		return
	}
	err := h.Incidents.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.Extra)
	switch {
	case errors.Is(err, db.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case errors.Is(err, db.ErrInvalidTransition):
		errorJSON(c, http.StatusConflict, err)
	case err != nil:
		h.Logger.Error("set status failed", "id", c.Param("id"), "error", err)
		errorJSON(c, http.StatusBadGateway, err)
	default:
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
	}
}

func (h *Handlers) ListCenters(c *gin.Context) {
	c.JSON(http.StatusOK, h.Controller.State().Centers())
}

// NearestCenters ranks the reconciled rescue centers around ?lat=&lng= and
// recommends the closest one that handles ?type=.
func (h *Handlers) NearestCenters(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if err := errors.Join(errLat, errLng); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	ranked := proximity.Rank(types.LatLng{Lat: lat, Lng: lng}, h.Controller.State().Centers(), c.Query("type"))
	resp := gin.H{"centers": ranked}
	if best, ok := proximity.Recommend(ranked); ok {
		resp["recommended"] = best
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Markers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Controller.Markers().Markers())
}

func (h *Handlers) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Controller.Alerts().View())
}

// DismissAlert hides the visible alert and shows the next one.
func (h *Handlers) DismissAlert(c *gin.Context) {
	h.Controller.Alerts().Dismiss()
	c.JSON(http.StatusOK, h.Controller.Alerts().View())
}
