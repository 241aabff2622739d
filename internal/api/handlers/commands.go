package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
)

// CommandsStore defines the persistence operations for the command queue.
type CommandsStore interface {
	GetAgentForOrg(ctx context.Context, orgID, agentID uuid.UUID) (*models.Agent, error)
	CreateAgentCommand(ctx context.Context, cmd *models.AgentCommand) error
	ListAgentCommands(ctx context.Context, agentID uuid.UUID, status models.CommandStatus) ([]*models.AgentCommand, error)
	AdvanceAgentCommand(ctx context.Context, agentID, commandID uuid.UUID, next models.CommandStatus, result string) (*models.AgentCommand, bool, error)
}

// CommandsHandler handles the operator-facing command queue and the
// agent-facing poll and acknowledge endpoints.
type CommandsHandler struct {
	store     CommandsStore
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewCommandsHandler creates a new CommandsHandler.
func NewCommandsHandler(store CommandsStore, collector *metrics.Collector, logger zerolog.Logger) *CommandsHandler {
	return &CommandsHandler{
		store:     store,
		collector: collector,
		logger:    logger.With().Str("component", "commands_handler").Logger(),
	}
}

// Enqueue queues a command for an agent.
// POST /api/v1/agents/:id/commands
func (h *CommandsHandler) Enqueue(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	var req models.EnqueueCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create command"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	createdBy := "api"
	if key, ok := c.Get(middleware.ContextKeyAPIKey); ok {
		if apiKey, ok := key.(*models.APIKey); ok && apiKey.Name != "" {
			createdBy = apiKey.Name
		}
	}

	cmd := models.NewAgentCommand(agentID, req.CommandType, req.CommandData, createdBy)
	if err := h.store.CreateAgentCommand(c.Request.Context(), cmd); err != nil {
		h.logger.Error().Err(err).Msg("failed to create command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create command"})
		return
	}

	h.collector.CommandsEnqueued.Inc()
	h.logger.Info().
		Str("command_id", cmd.ID.String()).
		Str("agent_id", agentID.String()).
		Str("type", cmd.CommandType).
		Msg("command queued")

	c.JSON(http.StatusCreated, cmd)
}

// List returns an agent's commands, optionally filtered by ?status=.
// GET /api/v1/agents/:id/commands
func (h *CommandsHandler) List(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
		return
	}

	agent, err := h.store.GetAgentForOrg(c.Request.Context(), orgID, agentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list commands"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	status := models.CommandStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	commands, err := h.store.ListAgentCommands(c.Request.Context(), agentID, status)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list commands")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list commands"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

// Poll returns the caller agent's pending commands. Used by agents on their
// report interval.
// GET /api/v1/agent/commands
func (h *CommandsHandler) Poll(c *gin.Context) {
	agent, ok := middleware.Agent(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	commands, err := h.store.ListAgentCommands(c.Request.Context(), agent.ID, models.CommandStatusPending)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to poll commands")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to poll commands"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

// Ack advances a command's status on behalf of the caller agent. Transitions
// only move forward; a stale acknowledgement is rejected.
// POST /api/v1/agent/commands/:id/ack
func (h *CommandsHandler) Ack(c *gin.Context) {
	agent, ok := middleware.Agent(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	commandID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command ID"})
		return
	}

	var req models.AckCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	cmd, applied, err := h.store.AdvanceAgentCommand(c.Request.Context(), agent.ID, commandID, req.Status, req.Result)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to acknowledge command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge command"})
		return
	}
	if cmd == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
		return
	}
	if !applied {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition", "command": cmd})
		return
	}

	c.JSON(http.StatusOK, cmd)
}
