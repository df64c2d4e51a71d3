package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireUser only lets through callers that presented a valid token.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" || IsAnonymous(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
