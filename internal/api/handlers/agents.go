package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
	"github.com/iteksmart/warden/internal/telemetry"
)

// AgentsStore defines the persistence operations for agent management.
type AgentsStore interface {
	UpsertAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error)
	GetAgentForOrg(ctx context.Context, orgID, agentID uuid.UUID) (*models.Agent, error)
	ListAgents(ctx context.Context, orgID uuid.UUID) ([]*models.Agent, error)
	UpdateAgent(ctx context.Context, agent *models.Agent) (bool, error)
	DeleteAgent(ctx context.Context, orgID, agentID uuid.UUID) (bool, error)
	ListAgentMetrics(ctx context.Context, agentID uuid.UUID, metricType models.MetricType, limit int) ([]*models.AgentMetric, error)
}

// AgentsHandler handles agent registration, lifecycle and telemetry ingest.
type AgentsHandler struct {
	store     AgentsStore
	ingestor  *telemetry.Ingestor
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler.
func NewAgentsHandler(store AgentsStore, ingestor *telemetry.Ingestor, collector *metrics.Collector, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		store:     store,
		ingestor:  ingestor,
		collector: collector,
		logger:    logger.With().Str("component", "agents_handler").Logger(),
	}
}

// Register enrolls an agent, or refreshes it when the hostname is already
// known to the organization. A fresh credential is issued either way and is
// only shown in this response.
// POST /api/v1/agents/register
func (h *AgentsHandler) Register(c *gin.Context) {
	orgID, ok := middleware.OrgID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	var req models.RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	credential, err := license.GenerateAgentCredential()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate agent credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register agent"})
		return
	}

	agent := models.NewAgent(orgID, req.Hostname, req.OSType)
	agent.OSVersion = req.OSVersion
	agent.AgentVersion = req.AgentVersion
	agent.IPAddress = req.IPAddress
	agent.MACAddress = req.MACAddress
	agent.Config = req.Config
	agent.CredentialHash = license.HashCredential(credential)

	stored, err := h.store.UpsertAgent(c.Request.Context(), agent)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to register agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register agent"})
		return
	}

	h.logger.Info().
		Str("agent_id", stored.ID.String()).
		Str("org_id", orgID.String()).
		Str("hostname", stored.Hostname).
		Msg("agent registered")

	c.JSON(http.StatusCreated, gin.H{
		"agent":           stored,
		"agentCredential": credential,
		"endpoints": gin.H{
			"metrics":  "/api/v1/agents/" + stored.ID.String() + "/metrics",
			"commands": "/api/v1/agent/commands",
		},
	})
}

// Get returns one agent of the caller's organization.
// GET /api/v1/agents/:id
func (h *AgentsHandler) Get(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get agent"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	c.JSON(http.StatusOK, agent)
}

// List returns all agents of the caller's organization.
// GET /api/v1/agents
func (h *AgentsHandler) List(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)

	agents, err := h.store.ListAgents(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list agents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// UpdateAgentRequest is the request body for updating agent attributes.
type UpdateAgentRequest struct {
	Status       models.AgentStatus  `json:"status,omitempty" binding:"omitempty,oneof=active inactive revoked"`
	AgentVersion string              `json:"agentVersion,omitempty"`
	Config       *models.AgentConfig `json:"config,omitempty"`
}

// Update changes mutable agent attributes.
// PUT /api/v1/agents/:id
func (h *AgentsHandler) Update(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update agent"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	if req.Status != "" {
		agent.Status = req.Status
	}
	if req.AgentVersion != "" {
		agent.AgentVersion = req.AgentVersion
	}
	if req.Config != nil {
		agent.Config = *req.Config
	}

	updated, err := h.store.UpdateAgent(c.Request.Context(), agent)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to update agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update agent"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	c.JSON(http.StatusOK, agent)
}

// Delete removes an agent and its telemetry.
// DELETE /api/v1/agents/:id
func (h *AgentsHandler) Delete(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	deleted, err := h.store.DeleteAgent(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete agent"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	h.logger.Info().Str("agent_id", agentID.String()).Msg("agent deleted")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListMetrics returns an agent's recent telemetry reports, newest first,
// optionally filtered by ?type=.
// GET /api/v1/agents/:id/metrics
func (h *AgentsHandler) ListMetrics(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list metrics"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	metricType := models.MetricType(c.Query("type"))
	if metricType != "" && !metricType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type filter"})
		return
	}

	limit := limitParam(c.Query("limit"), 100, 500)
	reports, err := h.store.ListAgentMetrics(c.Request.Context(), agentID, metricType, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"metrics": reports})
}

// ReportMetrics ingests a telemetry report and returns any alerts it raised.
// POST /api/v1/agents/:id/metrics
func (h *AgentsHandler) ReportMetrics(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	var req models.ReportMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	alerts, err := h.ingestor.Ingest(c.Request.Context(), orgID, agentID, req)
	if err != nil {
		if errors.Is(err, telemetry.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to ingest metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest metrics"})
		return
	}

	summaries := make([]models.AlertSummary, len(alerts))
	severities := make([]string, len(alerts))
	for i, a := range alerts {
		summaries[i] = a.Summary()
		severities[i] = string(a.Severity)
	}
	h.collector.ObserveIngest(string(req.MetricType), severities)

	c.JSON(http.StatusOK, gin.H{
		"status": "received",
		"alerts": summaries,
	})
}
