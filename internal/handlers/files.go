package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

func (h HandlerSet) ServeGenerated(c *gin.Context) {
	h.serveFile(c, storage.AreaGenerated)
}

func (h HandlerSet) ServeUpload(c *gin.Context) {
	h.serveFile(c, storage.AreaUploads)
}

func (h HandlerSet) serveFile(c *gin.Context, area storage.Area) {
	key, err := storage.Key(area, strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	rc, obj, err := h.files.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		h.requestLog(c).Error().Err(err).Str("key", key).Msg("open stored file failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := c.Writer.Header()
	header.Set("Content-Type", contentType)
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Cache-Control", "public, max-age=86400")
	if contentType == "image/svg+xml" {
		header.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}
	if obj.Size > 0 {
		header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.requestLog(c).Debug().Err(err).Str("key", key).Msg("file stream interrupted")
	}
}
