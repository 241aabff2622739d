// Package metering records and summarizes append-only usage events.
package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/models"
)

// ErrLicenseNotFound is returned when the license key does not resolve to a
// license owned by the calling organization.
var ErrLicenseNotFound = errors.New("license not found")

// Store is the datastore surface the meter needs.
type Store interface {
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	GetLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	CreateUsageRecord(ctx context.Context, r *models.UsageRecord) error
	SummarizeUsage(ctx context.Context, licenseID uuid.UUID, since time.Time) ([]models.UsageSummaryItem, error)
}

// Meter writes usage events and aggregates them over fixed windows. Writes
// are append-only and commutative, there is no ordering requirement across
// concurrent callers.
type Meter struct {
	store  Store
	logger zerolog.Logger
}

// NewMeter creates a Meter backed by the given store.
func NewMeter(store Store, logger zerolog.Logger) *Meter {
	return &Meter{
		store:  store,
		logger: logger.With().Str("component", "metering").Logger(),
	}
}

// Record appends one usage event under the license named by key. The license
// must belong to the calling organization; a foreign or unknown key is
// reported as not found.
func (m *Meter) Record(ctx context.Context, orgID uuid.UUID, req models.RecordUsageRequest) (*models.UsageRecord, error) {
	lic, err := m.store.GetLicenseByKey(ctx, req.LicenseKey)
	if err != nil {
		return nil, fmt.Errorf("look up license: %w", err)
	}
	if lic == nil || lic.OrgID != orgID {
		return nil, ErrLicenseNotFound
	}

	rec := models.NewUsageRecord(lic.ID, lic.OrgID, req.ProductID, req.Action)
	if req.Quantity > 0 {
		rec.Quantity = req.Quantity
	}
	if err := m.store.CreateUsageRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}

	m.logger.Debug().
		Str("license_id", lic.ID.String()).
		Str("product_id", req.ProductID).
		Str("action", req.Action).
		Int64("quantity", rec.Quantity).
		Msg("usage recorded")
	return rec, nil
}

// Summary aggregates usage for a license over the trailing period window.
// Foreign licenses are reported as not found.
func (m *Meter) Summary(ctx context.Context, orgID, licenseID uuid.UUID, period models.UsagePeriod) (*models.UsageSummary, error) {
	lic, err := m.store.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return nil, fmt.Errorf("look up license: %w", err)
	}
	if lic == nil || lic.OrgID != orgID {
		return nil, ErrLicenseNotFound
	}

	if !period.IsValid() {
		period = models.UsagePeriodDay
	}
	since := time.Now().Add(-period.Duration())

	items, err := m.store.SummarizeUsage(ctx, licenseID, since)
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}

	summary := &models.UsageSummary{
		LicenseID: licenseID,
		Period:    period,
		Since:     since,
		Items:     items,
	}
	for _, item := range items {
		summary.Total += item.Total
	}
	return summary, nil
}
