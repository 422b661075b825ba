package main

import (
	"database/sql"
	"net/http"
	"time"

	"audit-trail/internal/httpapi"
	"audit-trail/internal/metrics"
	"audit-trail/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type routeDeps struct {
	db       *sql.DB
	registry *prometheus.Registry
	authMW   gin.HandlerFunc
	handlers httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(d.registry)))

	// protected API group
	api := r.Group("/api")
	api.Use(d.authMW)
	httpapi.Register(api, d.handlers)
}
