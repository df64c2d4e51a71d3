package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
)

// respondError writes err as {"error": msg}. Internal causes are logged, never returned.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if status >= http.StatusInternalServerError {
		h.requestLog(c).Error().
			Err(unwrapCause(err)).
			Str("path", c.Request.URL.Path).
			Msg(apperr.PublicMessage(err))
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// requestLog prefers the logger the Logger middleware put on the request.
func (h HandlerSet) requestLog(c *gin.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.log
}

func unwrapCause(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err
	}
	return err
}

// bindJSON binds the body into req and answers 400 with msg when it does not fit.
func bindJSON(c *gin.Context, req any, msg string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return false
	}
	return true
}
