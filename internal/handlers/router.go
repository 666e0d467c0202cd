package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/skyvault/skyvault/internal/middleware"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// RouterConfig bundles what the router needs beyond the handlers.
type RouterConfig struct {
	JWT            *pkg.JWTManager
	Redis          *redis.Client
	RateLimit      middleware.RateLimitConfig
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires all routes and middleware into a gin engine.
func NewRouter(
	config RouterConfig,
	auth *AuthHandler,
	files *FileHandler,
	folders *FolderHandler,
	download *DownloadHandler,
	share *ShareHandler,
	stats *StatsHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(config.Logger),
		middleware.RequestLogger(config.Logger),
		middleware.CORS(config.AllowedOrigins),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(config.Redis, config.RateLimit, config.Logger))

	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)

	// Public share resolution; the token is the only credential.
	api.GET("/shared/:token", share.Resolve)

	authed := api.Group("")
	authed.Use(middleware.Auth(config.JWT))
	{
		authed.GET("/me", auth.Profile)
		authed.DELETE("/me", auth.DeleteAccount)

		authed.POST("/files", files.Upload)
		authed.GET("/files", files.List)
		authed.GET("/files/recent", files.Recent)
		authed.GET("/files/:id", files.Get)
		authed.PATCH("/files/:id/rename", files.Rename)
		authed.PATCH("/files/:id/move", files.Move)
		authed.POST("/files/:id/favorite", files.ToggleFavorite)
		authed.DELETE("/files/:id", files.Delete)
		authed.POST("/files/:id/restore", files.Restore)
		authed.POST("/files/:id/duplicate", files.Duplicate)
		authed.GET("/files/:id/download", download.Download)
		authed.POST("/files/:id/share", share.Share)
		authed.DELETE("/files/:id/share", share.Revoke)

		authed.POST("/folders", folders.Create)
		authed.GET("/folders/tree", folders.Tree)
		authed.GET("/folders/root", folders.Contents)
		authed.GET("/folders/:id", folders.Get)
		authed.GET("/folders/:id/contents", folders.Contents)
		authed.PATCH("/folders/:id/rename", folders.Rename)
		authed.PATCH("/folders/:id/move", folders.Move)
		authed.POST("/folders/:id/favorite", folders.ToggleFavorite)
		authed.DELETE("/folders/:id", folders.Delete)
		authed.POST("/folders/:id/restore", folders.Restore)

		authed.GET("/trash", folders.Trash)

		authed.GET("/stats/storage", stats.Report)
		authed.GET("/stats/quota", stats.Quota)
		authed.GET("/stats/calendar", stats.Calendar)
	}

	return router
}

// Handlers bundles every HTTP handler for the command wiring.
type Handlers struct {
	Auth     *AuthHandler
	Files    *FileHandler
	Folders  *FolderHandler
	Download *DownloadHandler
	Share    *ShareHandler
	Stats    *StatsHandler
}

// NewHandlers builds every handler from the service set.
func NewHandlers(
	userSvc *services.UserService,
	fileSvc *services.FileService,
	folderSvc *services.FolderService,
	shareSvc *services.ShareService,
	statsSvc *services.StatsService,
	quotaSvc *services.QuotaService,
) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(userSvc),
		Files:    NewFileHandler(fileSvc),
		Folders:  NewFolderHandler(folderSvc),
		Download: NewDownloadHandler(fileSvc),
		Share:    NewShareHandler(shareSvc),
		Stats:    NewStatsHandler(statsSvc, quotaSvc),
	}
}
