// Package api provides the HTTP API for the Warden server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/handlers"
	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/auth"
	"github.com/iteksmart/warden/internal/db"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/metering"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
	"github.com/iteksmart/warden/internal/telemetry"
)

// Config holds configuration for the API router.
type Config struct {
	// RateLimit is the request budget in limiter notation (e.g. "100-M"),
	// applied to validation and credentialed routes.
	RateLimit string
	// RedisURL shares the rate-limit budget across replicas when set.
	RedisURL string
	// Version is reported by the health endpoints.
	Version string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		RateLimit: "100-M",
		Version:   "dev",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
	db     *db.DB
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	tokens *auth.TokenManager,
	collector *metrics.Collector,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
		db:     database,
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	// Probes and operational metrics, no auth.
	healthHandler := handlers.NewHealthHandler(database, cfg.Version)
	r.Engine.GET("/healthz", healthHandler.Live)
	r.Engine.GET("/readyz", healthHandler.Ready)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	credentials := auth.NewCredentialValidator(database, logger)
	validator := license.NewValidator(database, logger)
	ingestor := telemetry.NewIngestor(database, logger)
	meter := metering.NewMeter(database, logger)

	licensesHandler := handlers.NewLicensesHandler(database, validator, collector, logger)
	orgsHandler := handlers.NewOrganizationsHandler(database, logger)
	agentsHandler := handlers.NewAgentsHandler(database, ingestor, collector, logger)
	alertsHandler := handlers.NewAlertsHandler(database, logger)
	commandsHandler := handlers.NewCommandsHandler(database, collector, logger)
	usageHandler := handlers.NewUsageHandler(meter, collector, logger)
	webhooksHandler := handlers.NewWebhooksHandler(database, logger)

	apiV1 := r.Engine.Group("/api/v1")

	// License validation is the hot path agents and installers hit without
	// an API key. Rate limited, otherwise public.
	apiV1.POST("/licenses/validate", rateLimiter, licensesHandler.Validate)

	// Administrative surface, admin bearer token required.
	admin := apiV1.Group("")
	admin.Use(middleware.RequireAdmin(tokens))
	admin.POST("/licenses/create", licensesHandler.Create)
	admin.GET("/licenses", licensesHandler.List)
	admin.GET("/licenses/:id", licensesHandler.Get)
	admin.PATCH("/licenses/:id/status", licensesHandler.UpdateStatus)
	admin.GET("/licenses/:id/validations", licensesHandler.ListValidations)
	admin.POST("/organizations", orgsHandler.Create)
	admin.GET("/organizations", orgsHandler.List)
	admin.GET("/organizations/:id", orgsHandler.Get)
	admin.POST("/organizations/:id/apikeys", orgsHandler.CreateAPIKey)
	admin.GET("/organizations/:id/apikeys", orgsHandler.ListAPIKeys)
	admin.DELETE("/organizations/:id/apikeys/:keyId", orgsHandler.RevokeAPIKey)

	// Organization surface, org API key with the matching scope required.
	agentScoped := apiV1.Group("")
	agentScoped.Use(rateLimiter, middleware.RequireOrgKey(credentials, models.ScopeAgents))
	agentScoped.POST("/agents/register", agentsHandler.Register)
	agentScoped.GET("/agents", agentsHandler.List)
	agentScoped.GET("/agents/:id", agentsHandler.Get)
	agentScoped.PUT("/agents/:id", agentsHandler.Update)
	agentScoped.DELETE("/agents/:id", agentsHandler.Delete)
	agentScoped.POST("/agents/:id/metrics", agentsHandler.ReportMetrics)
	agentScoped.GET("/agents/:id/metrics", agentsHandler.ListMetrics)
	agentScoped.GET("/agents/:id/alerts", alertsHandler.List)
	agentScoped.PUT("/agents/:id/alerts/:alertId/resolve", alertsHandler.Resolve)
	agentScoped.POST("/agents/:id/commands", commandsHandler.Enqueue)
	agentScoped.GET("/agents/:id/commands", commandsHandler.List)

	usageScoped := apiV1.Group("")
	usageScoped.Use(rateLimiter, middleware.RequireOrgKey(credentials, models.ScopeUsage))
	usageScoped.POST("/usage/record", usageHandler.Record)
	usageScoped.GET("/usage/summary", usageHandler.Summary)

	webhookScoped := apiV1.Group("")
	webhookScoped.Use(rateLimiter, middleware.RequireOrgKey(credentials, models.ScopeWebhooks))
	webhookScoped.POST("/webhooks", webhooksHandler.Create)
	webhookScoped.GET("/webhooks", webhooksHandler.List)
	webhookScoped.GET("/webhooks/:id", webhooksHandler.Get)
	webhookScoped.DELETE("/webhooks/:id", webhooksHandler.Delete)

	// Agent-facing surface, per-agent credential required. Agents poll for
	// commands and acknowledge progress here.
	agentAPI := r.Engine.Group("/api/v1/agent")
	agentAPI.Use(rateLimiter, middleware.RequireAgent(credentials))
	agentAPI.GET("/commands", commandsHandler.Poll)
	agentAPI.POST("/commands/:id/ack", commandsHandler.Ack)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
