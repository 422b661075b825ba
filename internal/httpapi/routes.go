package httpapi

import (
	"audit-trail/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the audit-log endpoints on g. g must already verify the bearer token.
func Register(g *gin.RouterGroup, h Handlers) {
	logs := g.Group("/audit-logs")
	{
		logs.POST("", h.CreateAuditLog)
		logs.GET("", h.ListAuditLogs)
		logs.GET("/search", h.SearchAuditLogs)
		logs.GET("/stats", h.AuditStats)
		logs.GET("/entity/:entity_type/:entity_id", h.EntityHistory)
		logs.GET("/:id", h.GetAuditLog)
		logs.GET("/:id/details", h.GetAuditLogDetails)
		logs.DELETE("/:id", rbac.RequireSuperAdmin(), h.DeleteAuditLog)
	}
}
