package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api/middleware"
	"github.com/iteksmart/warden/internal/metering"
	"github.com/iteksmart/warden/internal/metrics"
	"github.com/iteksmart/warden/internal/models"
)

// UsageHandler handles usage metering endpoints.
type UsageHandler struct {
	meter     *metering.Meter
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(meter *metering.Meter, collector *metrics.Collector, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		meter:     meter,
		collector: collector,
		logger:    logger.With().Str("component", "usage_handler").Logger(),
	}
}

// Record meters one usage event against a license of the caller's
// organization.
// POST /api/v1/usage/record
func (h *UsageHandler) Record(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)

	var req models.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	record, err := h.meter.Record(c.Request.Context(), orgID, req)
	if err != nil {
		if errors.Is(err, metering.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to record usage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
		return
	}

	h.collector.UsageRecorded.Inc()
	c.JSON(http.StatusCreated, record)
}

// Summary aggregates usage for one license over a period.
// GET /api/v1/usage/summary?licenseId=&period=
func (h *UsageHandler) Summary(c *gin.Context) {
	orgID, _ := middleware.OrgID(c)

	licenseID, err := uuid.Parse(c.Query("licenseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license ID"})
		return
	}
	period := models.UsagePeriod(c.DefaultQuery("period", string(models.UsagePeriodDay)))

	summary, err := h.meter.Summary(c.Request.Context(), orgID, licenseID, period)
	if err != nil {
		if errors.Is(err, metering.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to summarize usage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize usage"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
