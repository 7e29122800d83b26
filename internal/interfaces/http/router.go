// Package http assembles the REST surface of the resolution service: the
// gin route tree, cross-cutting middleware, and the server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/prometheus"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/handlers"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	ExportHandler     *handlers.ExportHandler
	ResolutionHandler *handlers.ResolutionHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	RateLimit   *middleware.RateLimitConfig
	Logging     *middleware.LoggingConfig

	// Infrastructure
	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete route tree: global middleware, public
// health and metrics endpoints, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// Global middleware, order matters: recovery outermost, then request
	// identity, then policy.
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}
	r.Use(middleware.RequestLogging(logger, cfg.Metrics, logCfg))

	if cfg.RateLimiter != nil {
		rlCfg := middleware.DefaultRateLimitConfig()
		if cfg.RateLimit != nil {
			rlCfg = *cfg.RateLimit
		}
		r.Use(middleware.RateLimit(cfg.RateLimiter, rlCfg))
	}

	// Public probes and metrics scrape endpoint.
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	registerExportRoutes(api, cfg.ExportHandler)
	registerResolutionRoutes(api, cfg.ResolutionHandler)

	return r
}

// registerExportRoutes mounts the read-side endpoints: resolved entities,
// their evidence and timelines, provenance packs, and quality reports.
func registerExportRoutes(api *gin.RouterGroup, h *handlers.ExportHandler) {
	if h == nil {
		return
	}

	api.GET("/entities", h.ListEntities)
	api.GET("/entities/:id", h.GetEntity)
	api.GET("/entities/:id/evidence", h.GetEvidence)
	api.GET("/entities/:id/timeline", h.GetTimeline)
	api.GET("/entities/:id/pack", h.GetPack)

	api.GET("/mismatches", h.ListMismatches)

	api.GET("/packs", h.ListPacks)
	api.POST("/packs/archive", h.ArchivePacks)

	api.POST("/metrics/report", h.GetMetrics)
}

// registerResolutionRoutes mounts the write-side endpoints: batch runs and
// single-mention resolution.
func registerResolutionRoutes(api *gin.RouterGroup, h *handlers.ResolutionHandler) {
	if h == nil {
		return
	}

	api.POST("/resolution/runs", h.Run)
	api.POST("/resolution/mentions", h.Resolve)
}
