// Package handlers implements the HTTP endpoints.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
)

// LicensesStore defines the persistence operations for license management.
type LicensesStore interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	CreateLicense(ctx context.Context, lic *models.License) error
	GetLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ListLicenses(ctx context.Context, orgID uuid.UUID) ([]*models.License, error)
	UpdateLicenseStatus(ctx context.Context, id uuid.UUID, status models.LicenseStatus) error
	ListValidations(ctx context.Context, licenseID uuid.UUID, limit int) ([]*models.LicenseValidation, error)
}

// LicensesHandler handles license validation and administration endpoints.
type LicensesHandler struct {
	store     LicensesStore
	validator *license.Validator
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewLicensesHandler creates a new LicensesHandler.
func NewLicensesHandler(store LicensesStore, validator *license.Validator, collector *metrics.Collector, logger zerolog.Logger) *LicensesHandler {
	return &LicensesHandler{
		store:     store,
		validator: validator,
		collector: collector,
		logger:    logger.With().Str("component", "licenses_handler").Logger(),
	}
}

// ValidateLicenseRequest is the request body for a validation attempt.
type ValidateLicenseRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	ProductID  string `json:"productId,omitempty"`
	MachineID  string `json:"machineId,omitempty"`
}

// Validate runs the admission decision for a license key. Business outcomes
// are always HTTP 200; an invalid license is a result, not an error.
// POST /api/v1/licenses/validate
func (h *LicensesHandler) Validate(c *gin.Context) {
	var req ValidateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), license.Request{
		LicenseKey: req.LicenseKey,
		ProductID:  req.ProductID,
		MachineID:  req.MachineID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("validation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}

	outcome := "valid"
	if !result.Valid {
		outcome = result.Reason
	}
	h.collector.ObserveValidation(outcome)

	c.JSON(http.StatusOK, result)
}

// Create issues a new license for an organization.
// POST /api/v1/licenses/create (admin)
func (h *LicensesHandler) Create(c *gin.Context) {
	var req models.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	org, err := h.store.GetOrganization(c.Request.Context(), req.OrganizationID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to look up organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create license"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	ent, ok := license.DefaultsFor(req.Tier)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier"})
		return
	}

	key, err := license.GenerateKey()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate license key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create license"})
		return
	}

	lic := models.NewLicense(org.ID, key, req.Tier)
	lic.MaxUsers = ent.MaxUsers
	lic.MaxProducts = ent.MaxProducts
	lic.MaxAPICalls = ent.MaxAPICalls
	lic.MaxStorageBytes = ent.MaxStorageBytes
	lic.Features = ent.Features
	lic.AllowedProducts = req.AllowedProducts
	lic.ExpiresAt = req.ExpiresAt
	if req.MaxUsers != nil {
		lic.MaxUsers = *req.MaxUsers
	}
	if req.MaxProducts != nil {
		lic.MaxProducts = *req.MaxProducts
	}
	if req.MaxMachines != nil {
		lic.MaxMachines = *req.MaxMachines
	}
	if req.IsTrial || req.Tier == models.TierTrial {
		lic.StartTrial()
	}

	if err := h.store.CreateLicense(c.Request.Context(), lic); err != nil {
		h.logger.Error().Err(err).Msg("failed to create license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create license"})
		return
	}

	h.logger.Info().
		Str("license_id", lic.ID.String()).
		Str("org_id", org.ID.String()).
		Str("tier", string(lic.Tier)).
		Msg("license created")

	c.JSON(http.StatusCreated, gin.H{
		"license":    lic.Summary(),
		"licenseKey": lic.Key,
	})
}

// Get returns one license.
// GET /api/v1/licenses/:id (admin)
func (h *LicensesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license ID"})
		return
	}

	lic, err := h.store.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get license"})
		return
	}
	if lic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
		return
	}

	c.JSON(http.StatusOK, lic)
}

// List returns licenses, optionally filtered by organization.
// GET /api/v1/licenses?orgId= (admin)
func (h *LicensesHandler) List(c *gin.Context) {
	orgID := uuid.Nil
	if param := c.Query("orgId"); param != "" {
		id, err := uuid.Parse(param)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
			return
		}
		orgID = id
	}

	licenses, err := h.store.ListLicenses(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list licenses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list licenses"})
		return
	}

	summaries := make([]*models.LicenseSummary, len(licenses))
	for i, lic := range licenses {
		summaries[i] = lic.Summary()
	}
	c.JSON(http.StatusOK, gin.H{"licenses": summaries})
}

// UpdateStatus changes the lifecycle status of a license.
// PATCH /api/v1/licenses/:id/status (admin)
func (h *LicensesHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license ID"})
		return
	}

	var req models.UpdateLicenseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	lic, err := h.store.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update license"})
		return
	}
	if lic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
		return
	}

	if err := h.store.UpdateLicenseStatus(c.Request.Context(), id, req.Status); err != nil {
		h.logger.Error().Err(err).Msg("failed to update license status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update license"})
		return
	}

	actor := "admin"
	if subject, ok := middleware.AdminSubject(c); ok {
		actor = subject
	}
	h.logger.Info().
		Str("license_id", id.String()).
		Str("from", string(lic.Status)).
		Str("to", string(req.Status)).
		Str("actor", actor).
		Msg("license status updated")

	lic.Status = req.Status
	lic.UpdatedAt = time.Now()
	c.JSON(http.StatusOK, lic.Summary())
}

// ListValidations returns the newest audit rows for a license.
// GET /api/v1/licenses/:id/validations (admin)
func (h *LicensesHandler) ListValidations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license ID"})
		return
	}

	lic, err := h.store.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list validations"})
		return
	}
	if lic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
		return
	}

	limit := limitParam(c.Query("limit"), 100, 500)

	validations, err := h.store.ListValidations(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list validations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list validations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"validations": validations})
}
