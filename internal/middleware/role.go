package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/pkg/response"
)

// RequireRole lets through callers whose role is one of roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := Caller(c)
		if caller.UserID == 0 {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !slices.Contains(roles, caller.Role) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
