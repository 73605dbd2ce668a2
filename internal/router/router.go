package router

import (
	"net/http"

	"f451comms/internal/common"
	"f451comms/internal/config"
	"f451comms/internal/domain/dispatch"
	"f451comms/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New creates and configures the Gin router with all middleware and routes.
func New(
	cfg *config.Config,
	dispatchHandler *dispatch.Handler,
	registry *dispatch.Registry,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)
	r.Use(rateLimiter.Middleware())

	// Custom structured logger middleware
	r.Use(gin.Logger())

	// Public routes
	r.GET("/health", healthCheck(registry))

	// Protected API routes (API key required)
	protectedAPI := r.Group("/api/v1")
	protectedAPI.Use(middleware.Auth(cfg.Auth.APIKeys))
	{
		dispatchHandler.RegisterRoutes(protectedAPI)
	}

	return r
}

// healthCheck handles GET /health, reporting the configured channel set so
// probes can see which adapters came up.
func healthCheck(registry *dispatch.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		channels := registry.Channels()
		names := make([]string, len(channels))
		for i, ch := range channels {
			names[i] = string(ch)
		}
		common.Success(c, http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "f451comms",
			"channels": names,
		})
	}
}
