package models

import (
	"time"

	"github.com/google/uuid"
)

// UsagePeriod selects the aggregation window for usage summaries.
type UsagePeriod string

const (
	UsagePeriodDay   UsagePeriod = "day"
	UsagePeriodWeek  UsagePeriod = "week"
	UsagePeriodMonth UsagePeriod = "month"
)

// IsValid checks if the period is one of the known windows.
func (p UsagePeriod) IsValid() bool {
	switch p {
	case UsagePeriodDay, UsagePeriodWeek, UsagePeriodMonth:
		return true
	}
	return false
}

// Duration returns the length of the aggregation window.
func (p UsagePeriod) Duration() time.Duration {
	switch p {
	case UsagePeriodWeek:
		return 7 * 24 * time.Hour
	case UsagePeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// UsageRecord is one metered unit of product activity under a license.
type UsageRecord struct {
	ID         uuid.UUID `json:"id"`
	LicenseID  uuid.UUID `json:"license_id"`
	OrgID      uuid.UUID `json:"org_id"`
	ProductID  string    `json:"product_id"`
	Action     string    `json:"action"`
	Quantity   int64     `json:"quantity"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewUsageRecord creates a usage record with quantity 1 unless overridden.
func NewUsageRecord(licenseID, orgID uuid.UUID, productID, action string) *UsageRecord {
	return &UsageRecord{
		ID:         uuid.New(),
		LicenseID:  licenseID,
		OrgID:      orgID,
		ProductID:  productID,
		Action:     action,
		Quantity:   1,
		RecordedAt: time.Now(),
	}
}

// UsageSummaryItem is one aggregated bucket in a usage summary.
type UsageSummaryItem struct {
	ProductID string `json:"product_id"`
	Action    string `json:"action"`
	Total     int64  `json:"total"`
}

// UsageSummary aggregates usage for one license over a period.
type UsageSummary struct {
	LicenseID uuid.UUID          `json:"license_id"`
	Period    UsagePeriod        `json:"period"`
	Since     time.Time          `json:"since"`
	Items     []UsageSummaryItem `json:"items"`
	Total     int64              `json:"total"`
}

// RecordUsageRequest is the request body for metering an activity unit.
type RecordUsageRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	ProductID  string `json:"productId" binding:"required"`
	Action     string `json:"action" binding:"required"`
	Quantity   int64  `json:"quantity,omitempty" binding:"omitempty,min=1"`
}
