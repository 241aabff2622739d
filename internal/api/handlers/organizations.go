package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/models"
)

// OrganizationsStore defines the persistence operations for organization and
// API key administration.
type OrganizationsStore interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, orgID, id uuid.UUID) (bool, error)
}

// OrganizationsHandler handles admin-facing organization management.
type OrganizationsHandler struct {
	store  OrganizationsStore
	logger zerolog.Logger
}

// NewOrganizationsHandler creates a new OrganizationsHandler.
func NewOrganizationsHandler(store OrganizationsStore, logger zerolog.Logger) *OrganizationsHandler {
	return &OrganizationsHandler{
		store:  store,
		logger: logger.With().Str("component", "organizations_handler").Logger(),
	}
}

// CreateOrganizationRequest is the request body for creating an organization.
type CreateOrganizationRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

// Create registers a new organization.
// POST /api/v1/organizations (admin)
func (h *OrganizationsHandler) Create(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	existing, err := h.store.GetOrganizationByDomain(c.Request.Context(), req.Domain)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to check domain")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "domain already registered"})
		return
	}

	org := models.NewOrganization(req.Name, req.Domain)
	if err := h.store.CreateOrganization(c.Request.Context(), org); err != nil {
		h.logger.Error().Err(err).Msg("failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	// New organizations get a default API key so they can start calling the
	// API immediately. The plaintext is returned once and never stored.
	plaintext, err := license.GenerateOrgKey()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}
	key := models.NewAPIKey(org.ID, "default", license.HashCredential(plaintext), nil)
	if err := h.store.CreateAPIKey(c.Request.Context(), key); err != nil {
		h.logger.Error().Err(err).Msg("failed to create API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	h.logger.Info().Str("org_id", org.ID.String()).Str("domain", org.Domain).Msg("organization created")
	c.JSON(http.StatusCreated, gin.H{
		"organization": org,
		"apiKey":       key,
		"key":          plaintext,
	})
}

// Get returns one organization.
// GET /api/v1/organizations/:id (admin)
func (h *OrganizationsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	org, err := h.store.GetOrganization(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	c.JSON(http.StatusOK, org)
}

// List returns all organizations.
// GET /api/v1/organizations (admin)
func (h *OrganizationsHandler) List(c *gin.Context) {
	orgs, err := h.store.ListOrganizations(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list organizations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// CreateAPIKeyRequest is the request body for issuing an organization API key.
type CreateAPIKeyRequest struct {
	Name   string               `json:"name" binding:"required"`
	Scopes []models.APIKeyScope `json:"scopes,omitempty" binding:"omitempty,dive,oneof=validate agents usage webhooks"`
}

// CreateAPIKey issues a new API key for an organization. The plaintext key is
// returned once and never stored.
// POST /api/v1/organizations/:id/apikeys (admin)
func (h *OrganizationsHandler) CreateAPIKey(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	org, err := h.store.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create API key"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	plaintext, err := license.GenerateOrgKey()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create API key"})
		return
	}

	key := models.NewAPIKey(org.ID, req.Name, license.HashCredential(plaintext), req.Scopes)
	if err := h.store.CreateAPIKey(c.Request.Context(), key); err != nil {
		h.logger.Error().Err(err).Msg("failed to create API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create API key"})
		return
	}

	h.logger.Info().Str("org_id", org.ID.String()).Str("key_id", key.ID.String()).Msg("API key created")
	c.JSON(http.StatusCreated, gin.H{
		"apiKey": key,
		"key":    plaintext,
	})
}

// ListAPIKeys returns the API keys of an organization. Hashes never appear in
// the response.
// GET /api/v1/organizations/:id/apikeys (admin)
func (h *OrganizationsHandler) ListAPIKeys(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	keys, err := h.store.ListAPIKeys(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list API keys")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list API keys"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"apiKeys": keys})
}

// RevokeAPIKey deactivates an API key.
// DELETE /api/v1/organizations/:id/apikeys/:keyId (admin)
func (h *OrganizationsHandler) RevokeAPIKey(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid API key ID"})
		return
	}

	revoked, err := h.store.RevokeAPIKey(c.Request.Context(), orgID, keyID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to revoke API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke API key"})
		return
	}
	if !revoked {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	h.logger.Info().Str("org_id", orgID.String()).Str("key_id", keyID.String()).Msg("API key revoked")
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
