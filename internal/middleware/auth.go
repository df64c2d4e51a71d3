package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/security"
)

const (
	userIDKey    = "user_id"
	anonymousKey = "anonymous"
)

// Auth resolves the caller identity. A bearer token must verify; without one the request
// runs as the configured anonymous user, or is rejected when anonymous access is off.
func Auth(cfg config.SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if !cfg.AllowAnonymous {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
				return
			}
			c.Set(userIDKey, cfg.AnonymousUser)
			c.Set(anonymousKey, true)
			c.Next()
			return
		}

		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		claims, err := security.ParseToken(strings.TrimSpace(tokenStr), cfg.TokenSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(anonymousKey, false)
		c.Next()
	}
}

// OptionalAuth is for public routes. A valid bearer token identifies the caller; a missing,
// malformed or expired one falls back to the anonymous user instead of failing.
func OptionalAuth(cfg config.SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, anonymous := cfg.AnonymousUser, true

		if tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			if claims, err := security.ParseToken(strings.TrimSpace(tokenStr), cfg.TokenSecret); err == nil {
				userID, anonymous = claims.UserID, false
			}
		}

		c.Set(userIDKey, userID)
		c.Set(anonymousKey, anonymous)
		c.Next()
	}
}

// UserID returns the identity resolved by Auth, or "" when Auth did not run.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func IsAnonymous(c *gin.Context) bool {
	return c.GetBool(anonymousKey)
}
