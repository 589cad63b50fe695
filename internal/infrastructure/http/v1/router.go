// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"raccolta/internal/core/numerator"
	"raccolta/internal/domain"
	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/documents"
	"raccolta/internal/domain/syncer"
	"raccolta/internal/infrastructure/http/v1/handlers"
	"raccolta/internal/infrastructure/http/v1/middleware"
	"raccolta/pkg/logger"
)

// RouterConfig holds the dependencies of the local API.
type RouterConfig struct {
	Creator  *documents.Creator
	Sync     *syncer.Manager
	Counters *counter.Manager
	Store    domain.Store
	Logger   *logger.Logger

	// Metrics observes requests; MetricsHandler serves /metrics. Both optional.
	Metrics        middleware.RequestObserver
	MetricsHandler http.Handler

	// Numbering is the document numbering strategy; reservations are
	// refused unless it is StrategyReserved.
	Numbering numerator.Strategy

	AgentID   int64
	AgentCode string
	Version   string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	router.Use(middleware.ErrorHandler())

	var status handlers.StatusReporter
	if cfg.Sync != nil {
		status = cfg.Sync
	}
	healthHandler := handlers.NewHealthHandler(cfg.Store, status, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AgentContext(cfg.AgentID, cfg.AgentCode, cfg.Logger))
	v1.Use(middleware.Decompress())

	base := handlers.NewBaseHandler()

	if cfg.Creator != nil {
		handlers.NewOrderHandler(base, cfg.Creator).RegisterRoutes(v1.Group("/orders"))
		handlers.NewPickingHandler(base, cfg.Creator).RegisterRoutes(v1.Group("/pickings"))
		handlers.NewDeliveryNoteHandler(base, cfg.Creator).RegisterRoutes(v1.Group("/ddts"))
	}
	if cfg.Sync != nil {
		handlers.NewSyncHandler(base, cfg.Sync).RegisterRoutes(v1.Group("/sync"))
	}
	if cfg.Counters != nil {
		handlers.NewCounterHandler(base, cfg.Counters, cfg.Numbering).RegisterRoutes(v1.Group("/counters"))
	}

	return router
}
