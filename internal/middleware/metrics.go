package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/divyandj/IMAGE-Hackathon/internal/metrics"
)

// Metrics records every request under its route template, not the raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.RequestStarted()

		c.Next()

		metrics.RequestFinished(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
