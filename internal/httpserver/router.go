package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tasknotes/internal/handler"
	"tasknotes/pkg/otel"
	"tasknotes/pkg/rbac"
)

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type RouterConfig struct {
	AuthHandler   *handler.AuthHandler
	TaskHandler   *handler.TaskHandler
	Authenticator Authenticator
	// PublicDir is served read-only under PublicPath ("/storage" when empty).
	// An empty PublicDir disables it.
	PublicDir   string
	PublicPath  string
	ReadyChecks []ReadyCheck
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(cfg.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, rc := range cfg.ReadyChecks {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.PublicDir != "" {
		path := cfg.PublicPath
		if path == "" {
			path = "/storage"
		}
		r.Static(path, cfg.PublicDir)
	}

	// Public
	r.POST("/register", cfg.AuthHandler.Register)
	r.POST("/login", cfg.AuthHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(cfg.Authenticator, cfg.Logger))
	{
		auth.POST("/logout", cfg.AuthHandler.Logout)
		auth.POST("/tasks/create", RequirePermission(rbac.PermissionCreateTask), cfg.TaskHandler.CreateTask)
		auth.GET("/tasks", RequirePermission(rbac.PermissionReadTask), cfg.TaskHandler.GetTasks)
	}

	return r
}
