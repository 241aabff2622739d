package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/models"
)

// WebhooksStore defines the persistence operations for webhook subscriptions.
type WebhooksStore interface {
	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, orgID, id uuid.UUID) (*models.Webhook, error)
	ListWebhooks(ctx context.Context, orgID uuid.UUID) ([]*models.Webhook, error)
	DeleteWebhook(ctx context.Context, orgID, id uuid.UUID) (bool, error)
}

// WebhooksHandler handles webhook subscription management.
type WebhooksHandler struct {
	store  WebhooksStore
	logger zerolog.Logger
}

// NewWebhooksHandler creates a new WebhooksHandler.
func NewWebhooksHandler(store WebhooksStore, logger zerolog.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		store:  store,
		logger: logger.With().Str("component", "webhooks_handler").Logger(),
	}
}

// Create registers a webhook subscription. The signing secret is returned
// once and never stored in plaintext responses afterwards.
// POST /api/v1/webhooks
func (h *WebhooksHandler) Create(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)

	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	for _, event := range req.Events {
		if !event.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event: " + string(event)})
			return
		}
	}

	secret, err := license.GenerateWebhookSecret()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate webhook secret")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}

	webhook := models.NewWebhook(orgID, req.URL, secret, req.Events)
	if err := h.store.CreateWebhook(c.Request.Context(), webhook); err != nil {
		h.logger.Error().Err(err).Msg("failed to create webhook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}

	h.logger.Info().Str("webhook_id", webhook.ID.String()).Str("url", webhook.URL).Msg("webhook created")
	c.JSON(http.StatusCreated, gin.H{
		"webhook": webhook,
		"secret":  secret,
	})
}

// Get returns one webhook of the caller's organization.
// GET /api/v1/webhooks/:id
func (h *WebhooksHandler) Get(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook ID"})
		return
	}

	webhook, err := h.store.GetWebhook(c.Request.Context(), orgID, id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get webhook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get webhook"})
		return
	}
	if webhook == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}

	c.JSON(http.StatusOK, webhook)
}

// List returns the caller organization's webhooks.
// GET /api/v1/webhooks
func (h *WebhooksHandler) List(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)

	webhooks, err := h.store.ListWebhooks(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list webhooks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": webhooks})
}

// Delete removes a webhook subscription.
// DELETE /api/v1/webhooks/:id
func (h *WebhooksHandler) Delete(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook ID"})
		return
	}

	deleted, err := h.store.DeleteWebhook(c.Request.Context(), orgID, id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete webhook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete webhook"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
