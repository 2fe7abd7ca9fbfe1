package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
	"github.com/Kouriin1/Servicio-Comunitario/internal/middleware"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

// HealthCheck is a named dependency probe reported by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	workspaces  middleware.WorkspaceSource
	authn       middleware.Authenticator
	authLimiter *middleware.RateLimiter
	checks      []HealthCheck
	metrics     http.Handler
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	workspaces middleware.WorkspaceSource,
	authn middleware.Authenticator,
	checks []HealthCheck,
	metrics http.Handler,
) HandlerSet {
	h := HandlerSet{
		log:        log,
		cfg:        cfg,
		workspaces: workspaces,
		authn:      authn,
		checks:     checks,
		metrics:    metrics,
	}
	if cfg.RateLimit.Enabled {
		h.authLimiter = middleware.NewRateLimiter("auth", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	return h
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.Workspace(h.workspaces, h.log))

	auth := v1.Group("/auth")
	if h.authLimiter != nil {
		auth.Use(h.authLimiter.Middleware())
	}
	auth.POST("/signin", h.SignIn)
	auth.POST("/signup", h.SignUp)
	auth.POST("/signout", h.SignOut)
	auth.POST("/recover", h.RequestRecovery)
	auth.POST("/recover/verify", h.VerifyRecovery)
	auth.POST("/confirm", h.ConfirmEmail)
	auth.PUT("/password", h.UpdatePassword)
	auth.GET("/state", h.State)

	v1.GET("/catalogs", h.Catalogs)
	v1.GET("/content", h.ListContent)
	v1.GET("/content/events", h.ListEvents)
	v1.GET("/content/works", h.ListWorks)
	v1.GET("/content/:id", h.GetContent)

	bookmarks := v1.Group("/bookmarks")
	bookmarks.Use(middleware.RequireSession(h.authn))
	bookmarks.GET("", h.ListBookmarks)
	bookmarks.POST("/:id/toggle", h.ToggleBookmark)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.RequireSession(h.authn),
		middleware.RequireRoles(models.RoleAdmin),
	)
	admin.POST("/publications", h.CreatePublication)
	admin.PATCH("/publications/:id", h.UpdatePublication)
	admin.DELETE("/publications/:id", h.DeletePublication)
}
