package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"callsight-backend/internal/jobs"
	"callsight-backend/internal/services/health"
	"callsight-backend/internal/shared/config"
	"callsight-backend/internal/shared/metrics"
	"callsight-backend/internal/shared/server/middleware"
	"callsight-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers wired by bootstrap.
type RouterDeps struct {
	Config     config.Config
	JobHandler *jobs.Handler
	Health     *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			respond.JSON(c, http.StatusOK, deps.Health.Report(c.Request.Context()))
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.JobHandler != nil {
		deps.JobHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
