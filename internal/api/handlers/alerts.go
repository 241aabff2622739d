package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/models"
)

// AlertsStore defines the persistence operations for alert queries.
type AlertsStore interface {
	GetAgentForOrg(ctx context.Context, orgID, agentID uuid.UUID) (*models.Agent, error)
	ListAgentAlerts(ctx context.Context, agentID uuid.UUID, unresolvedOnly bool, limit int) ([]*models.AgentAlert, error)
	ResolveAgentAlert(ctx context.Context, orgID, agentID, alertID uuid.UUID, resolvedBy string) (bool, error)
}

// AlertsHandler handles alert listing and resolution.
type AlertsHandler struct {
	store  AlertsStore
	logger zerolog.Logger
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(store AlertsStore, logger zerolog.Logger) *AlertsHandler {
	return &AlertsHandler{
		store:  store,
		logger: logger.With().Str("component", "alerts_handler").Logger(),
	}
}

// List returns alerts for one agent, newest first. Pass ?unresolved=true to
// hide resolved alerts.
// GET /api/v1/agents/:id/alerts
func (h *AlertsHandler) List(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	unresolvedOnly := c.Query("unresolved") == "true"
	limit := limitParam(c.Query("limit"), 50, 200)

	alerts, err := h.store.ListAgentAlerts(c.Request.Context(), agentID, unresolvedOnly, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// Resolve marks one alert resolved. Resolving an already resolved alert keeps
// the original resolution.
// PUT /api/v1/agents/:id/alerts/:alertId/resolve
func (h *AlertsHandler) Resolve(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}
	alertID, err := uuid.Parse(c.Param("alertId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}

	resolvedBy := "api"
	if key, ok := c.Get(middleware.ContextKeyAPIKey); ok {
		if apiKey, ok := key.(*models.APIKey); ok && apiKey.Name != "" {
			resolvedBy = apiKey.Name
		}
	}

	exists, err := h.store.ResolveAgentAlert(c.Request.Context(), orgID, agentID, alertID, resolvedBy)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to resolve alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve alert"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
