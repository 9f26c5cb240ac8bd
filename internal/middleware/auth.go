package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/auth"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/pkg/response"
)

const (
	// ContextCaller holds the models.Caller of an authenticated request.
	ContextCaller = "caller"
	// ContextUserEmail holds the email claim, when the token carries one.
	ContextUserEmail = "user_email"
)

// JWT requires a valid "Bearer <token>" Authorization header and stores the caller on the context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if errors.Is(err, auth.ErrExpiredToken) {
			response.Unauthorized(c, "token expired")
			c.Abort()
			return
		}
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextCaller, claims.Caller())
		if claims.Email != "" {
			c.Set(ContextUserEmail, claims.Email)
		}
		c.Next()
	}
}

// Caller returns the authenticated caller, or the zero Caller outside JWT.
func Caller(c *gin.Context) models.Caller {
	v, _ := c.Get(ContextCaller)
	caller, _ := v.(models.Caller)
	return caller
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
