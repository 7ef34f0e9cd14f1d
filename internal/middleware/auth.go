package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"matchroom-service/internal/apperr"
	"matchroom-service/internal/telemetry"
)

// TokenResolver maps a bearer token to a user id.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (int, error)
}

// AuthMiddleware validates the Authorization header and stores the caller as "userID".
func AuthMiddleware(tokens TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		userID, err := tokens.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.MessageOf(err)})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// RequestID propagates X-Request-Id into the request context for audit events.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			c.Next()
			return
		}
		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(telemetry.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
