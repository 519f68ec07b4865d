package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"go-lifeline/handlers"
	"go-lifeline/logger"
	"go-lifeline/worker"
)

// SetupRouter mounts the API and hands every unmatched request to the cache
// strategy engine. pushLimit bounds POST /push per second; zero disables it.
func SetupRouter(h *handlers.Handlers, engine *worker.Engine, pushLimit rate.Limit, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.AccessMiddleware(log))

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sw := r.Group("/sw")
	{
		sw.POST("/message", h.PostMessage)
		sw.GET("/state", h.State)
		sw.GET("/clients/stream", h.ClientStream)
		sw.POST("/sync", h.RegisterSync)
	}

	r.POST("/push", limit(pushLimit), h.Push)
	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/:id/click", h.Click)
	r.POST("/notifications/:id/close", h.CloseNotification)

	q := r.Group("/queue")
	{
		q.POST("", h.Enqueue)
		q.GET("", h.ListQueue)
		q.DELETE("", h.ClearQueue)
		q.DELETE("/:id", h.Ack)
		q.POST("/replay", h.Replay)
	}

	api := r.Group("/api")
	{
		api.GET("/incidents", h.ListIncidents)
		api.POST("/incidents", h.CreateIncident)
		api.GET("/incidents/:id", h.GetIncident)
		api.POST("/incidents/:id/status", h.SetStatus)
		api.GET("/centers", h.ListCenters)
		api.GET("/centers/markers", h.Markers)
		api.GET("/centers/nearest", h.NearestCenters)
		api.GET("/alerts", h.Alerts)
		api.POST("/alerts/dismiss", h.DismissAlert)
	}

	r.GET("/session", h.GetSession)
	r.POST("/session", h.PutSession)
	r.DELETE("/session", h.DeleteSession)

	r.NoRoute(gin.WrapH(engine))
	r.NoMethod(gin.WrapH(engine))

	return r
}

func limit(l rate.Limit) gin.HandlerFunc {
	if l <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	lim := rate.NewLimiter(l, int(l)+1)
	return func(c *gin.Context) {
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
