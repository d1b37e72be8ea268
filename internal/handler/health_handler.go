package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Kosench/shortlink/internal/clicks"
	"github.com/gin-gonic/gin"
)

const healthVersion = "1.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

type ClickStats interface {
	Stats() clicks.Stats
}

// ServiceInfo is static metadata reported by /info.
type ServiceInfo struct {
	Service       string
	Version       string
	Driver        string
	ClickTracking string
	// DatabaseVersion is optional; nil reports the driver name only.
	DatabaseVersion func(ctx context.Context) (string, error)
}

type HealthHandler struct {
	store  Pinger
	cache  CacheChecker
	clicks ClickStats
	info   ServiceInfo
}

// NewHealthHandler wires the probes. cache and clickStats may be nil when
// Redis or the async recorder are disabled.
func NewHealthHandler(store Pinger, cache CacheChecker, clickStats ClickStats, info ServiceInfo) *HealthHandler {
	return &HealthHandler{
		store:  store,
		cache:  cache,
		clicks: clickStats,
		info:   info,
	}
}

// Healthz is the liveness probe. It never touches the store.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": healthVersion})
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	services := gin.H{}

	// Проверяем БД
	if err := h.store.Ping(ctx); err != nil {
		services["database"] = "unhealthy"
		status = "degraded"
	} else {
		services["database"] = "healthy"
	}

	// Проверяем Redis
	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			services["cache"] = "unhealthy"
			status = "degraded"
		} else {
			services["cache"] = "healthy"
		}
	} else {
		services["cache"] = "disabled"
	}

	response := gin.H{
		"status":   status,
		"services": services,
	}
	if h.clicks != nil {
		response["clicks"] = h.clicks.Stats()
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"service":         h.info.Service,
		"version":         h.info.Version,
		"database_driver": h.info.Driver,
		"cache_enabled":   h.cache != nil,
		"click_tracking":  h.info.ClickTracking,
	}

	if h.info.DatabaseVersion != nil {
		if version, err := h.info.DatabaseVersion(c.Request.Context()); err == nil {
			info["database_version"] = version
		}
	}
	if h.cache != nil {
		info["cache_driver"] = "redis"
	}

	c.JSON(http.StatusOK, info)
}
