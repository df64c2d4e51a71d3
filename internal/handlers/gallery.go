package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/divyandj/IMAGE-Hackathon/internal/middleware"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
)

type galleryItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	URL       string    `json:"url"`
	Likes     int       `json:"likes"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

type likeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
	Liked   bool   `json:"liked"`
}

func newFeedUpgrader(allowedOrigins []string) websocket.Upgrader {
	allow := middleware.OriginAllowed(allowedOrigins)
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allow(origin)
		},
	}
}

func toGalleryItems(images []models.Image) []galleryItem {
	items := make([]galleryItem, 0, len(images))
	for _, img := range images {
		items = append(items, galleryItem{
			ID:        img.ID,
			Title:     img.Title,
			Category:  img.Category,
			URL:       img.URL,
			Likes:     img.Likes,
			Prompt:    img.Prompt,
			CreatedAt: img.CreatedAt,
		})
	}
	return items
}

func (h HandlerSet) GalleryAll(c *gin.Context) {
	images, err := h.gallery.All(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGalleryItems(images))
}

func (h HandlerSet) GalleryUser(c *gin.Context) {
	images, err := h.gallery.ByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGalleryItems(images))
}

func (h HandlerSet) GalleryTop(c *gin.Context) {
	limit := service.DefaultTopLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = v
	}

	images, err := h.gallery.Top(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGalleryItems(images))
}

func (h HandlerSet) LikeImage(c *gin.Context) {
	res, err := h.gallery.ToggleLike(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, likeResponse{Message: "Like toggled", Likes: res.Likes, Liked: res.Liked})
}

func (h HandlerSet) GalleryFeed(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gallery feed is disabled"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.requestLog(c).Debug().Err(err).Msg("feed upgrade failed")
		return
	}
	h.hub.Attach(conn)
}
