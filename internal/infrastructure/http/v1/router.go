// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txboundary/internal/infrastructure/http/v1/handlers"
	"txboundary/internal/infrastructure/http/v1/middleware"
	"txboundary/internal/infrastructure/metrics"
	"txboundary/internal/infrastructure/storage/postgres"
	"txboundary/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is used by health checks; optional
	Pool *postgres.Pool

	// TxManager binds a database session per API request; optional
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// Ledger serves account and transfer endpoints
	Ledger handlers.LedgerService

	// Metrics records HTTP request metrics; MetricsHandler serves /metrics
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
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
	if cfg.TxManager != nil {
		v1.Use(middleware.Session(cfg.TxManager))
	}
	if cfg.Ledger != nil {
		handlers.NewLedgerHandler(handlers.NewBaseHandler(), cfg.Ledger).RegisterRoutes(v1)
	}

	return router
}
