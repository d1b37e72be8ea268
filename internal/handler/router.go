package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Links    *LinkHandler
	Redirect *RedirectHandler
	Health   *HealthHandler
	// Middleware runs after logging and recovery, before any route.
	Middleware []gin.HandlerFunc
}

// NewRouter mounts the API, the probes and, as the fallback, the short code
// redirect. Named routes always win over codes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cfg.Middleware...)

	router.GET("/healthz", cfg.Health.Healthz)
	router.GET("/info", cfg.Health.Info)

	api := router.Group("/api")
	{
		api.GET("/health", cfg.Health.Health)
		cfg.Links.Register(api)
	}

	router.NoRoute(cfg.Redirect.Handle)

	return router
}
