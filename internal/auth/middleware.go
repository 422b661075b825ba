package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Gin keys mirrored from the request context for request logging.
const (
	GinUserIDKey = "user_id"
	GinRoleKey   = "role"
)

// RequireAccessToken verifies a bearer token and injects identity and client IP
// into the request context. Visibility rules live in internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "User authentication required")
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		ctx = WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Set(GinUserIDKey, claims.UserID)
		c.Set(GinRoleKey, claims.Role)

		c.Next()
	}
}

// bearerToken extracts the credential from "Bearer <token>"; the scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
}
