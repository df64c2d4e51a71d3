package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/events"
	"github.com/divyandj/IMAGE-Hackathon/internal/middleware"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

type Pinger func(ctx context.Context) error

// Deps is everything the HTTP layer needs. Hub and CachePing may be nil.
type Deps struct {
	Auth      *service.AuthService
	Gallery   *service.GalleryService
	Uploads   *service.UploadService
	Studio    *service.StudioService
	Files     storage.FileStore
	Hub       *events.Hub
	StorePing Pinger
	CachePing Pinger
}

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	auth    *service.AuthService
	gallery *service.GalleryService
	uploads *service.UploadService
	studio  *service.StudioService
	files   storage.FileStore
	hub     *events.Hub
	limiter *middleware.RateLimiter

	upgrader websocket.Upgrader

	storePing Pinger
	cachePing Pinger
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		auth:      deps.Auth,
		gallery:   deps.Gallery,
		uploads:   deps.Uploads,
		studio:    deps.Studio,
		files:     deps.Files,
		hub:       deps.Hub,
		limiter:   middleware.NewRateLimiter(cfg.RateLimit),
		upgrader:  newFeedUpgrader(cfg.AllowOrigins),
		storePing: deps.StorePing,
		cachePing: deps.CachePing,
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/healthz", h.Health)

	router.GET("/generated/*path", h.ServeGenerated)
	router.GET("/uploads/*path", h.ServeUpload)

	limited := h.limiter.Handler()
	bodyLimit := middleware.BodyLimit(h.maxBody())

	// Public routes ignore bad tokens; the rest reject them and honour allowanonymous.
	public := router.Group("", bodyLimit, middleware.OptionalAuth(h.cfg.Security))
	authenticated := router.Group("", bodyLimit, middleware.Auth(h.cfg.Security))

	public.POST("/image/modify", limited, h.ModifyImage)
	public.POST("/image/story", limited, h.GenerateStory)
	public.POST("/analyze-image", limited, h.AnalyzeImage)
	public.GET("/gallery/all", h.GalleryAll)
	public.GET("/gallery/top", h.GalleryTop)
	public.GET("/gallery/feed", h.GalleryFeed)

	authenticated.POST("/image/generate", limited, h.GenerateImage)
	authenticated.POST("/image/upload", limited, h.UploadImage)
	authenticated.POST("/image/save", limited, h.SaveImage)
	authenticated.GET("/gallery/user", h.GalleryUser)
	authenticated.POST("/gallery/like/:id", h.LikeImage)

	auth := router.Group("/auth", bodyLimit)
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.GET("/profile", middleware.Auth(h.cfg.Security), middleware.RequireUser(), h.Profile)
	}
}

// maxBody leaves room for the multipart envelope around the file itself.
func (h HandlerSet) maxBody() int64 {
	return h.cfg.Storage.MaxUploadSize + 1<<20
}
