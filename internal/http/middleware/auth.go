// README: Firebase ID-token auth and dashboard permission checks.
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/infra"
)

const (
	ctxUID         = "auth.uid"
	ctxRole        = "auth.role"
	ctxPermissions = "auth.permissions"

	// PermissionTasksAndOrder allows reading tasks and orders.
	PermissionTasksAndOrder = "TasksAndOrder"
	RoleAdmin               = "admin"
)

// Auth verifies the bearer token and stores the caller on the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, token.Role())
		c.Set(ctxPermissions, token.Permissions())
		c.Next()
	}
}

// RequirePermission lets through admins and callers whose "permissions" claim
// lists perm. It must run after Auth.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) == RoleAdmin || slices.Contains(callerPermissions(c), perm) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing permission " + perm})
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func callerPermissions(c *gin.Context) []string {
	return c.GetStringSlice(ctxPermissions)
}
