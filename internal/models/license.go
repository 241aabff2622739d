package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LicenseTier is the ordinal subscription class of a license. Defaults for a
// tier are snapshotted onto the license at creation and never re-derived.
type LicenseTier string

const (
	// TierTrial is the time-boxed evaluation tier.
	TierTrial LicenseTier = "TRIAL"
	// TierStarter is the entry paid tier.
	TierStarter LicenseTier = "STARTER"
	// TierProfessional is the mid paid tier.
	TierProfessional LicenseTier = "PROFESSIONAL"
	// TierEnterprise unlocks all products.
	TierEnterprise LicenseTier = "ENTERPRISE"
	// TierUnlimited is the top tier with effectively no quotas.
	TierUnlimited LicenseTier = "UNLIMITED"
)

// ValidLicenseTiers returns all valid tiers in ascending order.
func ValidLicenseTiers() []LicenseTier {
	return []LicenseTier{TierTrial, TierStarter, TierProfessional, TierEnterprise, TierUnlimited}
}

// IsValid checks if the tier is one of the known tiers.
func (t LicenseTier) IsValid() bool {
	for _, valid := range ValidLicenseTiers() {
		if t == valid {
			return true
		}
	}
	return false
}

// Rank returns the ordinal position of the tier, or -1 for unknown tiers.
func (t LicenseTier) Rank() int {
	for i, valid := range ValidLicenseTiers() {
		if t == valid {
			return i
		}
	}
	return -1
}

// LicenseStatus is the lifecycle state of a license.
type LicenseStatus string

const (
	// LicenseStatusActive means the license passes status checks.
	LicenseStatusActive LicenseStatus = "ACTIVE"
	// LicenseStatusSuspended means the license is administratively paused.
	LicenseStatusSuspended LicenseStatus = "SUSPENDED"
	// LicenseStatusExpired means the license or its trial window lapsed.
	LicenseStatusExpired LicenseStatus = "EXPIRED"
	// LicenseStatusCancelled means the license was terminated.
	LicenseStatusCancelled LicenseStatus = "CANCELLED"
)

// ValidLicenseStatuses returns all valid statuses.
func ValidLicenseStatuses() []LicenseStatus {
	return []LicenseStatus{LicenseStatusActive, LicenseStatusSuspended, LicenseStatusExpired, LicenseStatusCancelled}
}

// IsValid checks if the status is one of the known statuses.
func (s LicenseStatus) IsValid() bool {
	for _, valid := range ValidLicenseStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// Features is the capability map snapshotted onto a license. Named fields
// cover known capabilities; Extra leaves room for forward-compatible flags.
type Features struct {
	DemoWatermark      bool            `json:"demo_watermark,omitempty"`
	EmailSupport       bool            `json:"email_support,omitempty"`
	PrioritySupport    bool            `json:"priority_support,omitempty"`
	DedicatedSupport   bool            `json:"dedicated_support,omitempty"`
	CustomBranding     bool            `json:"custom_branding,omitempty"`
	SLA                bool            `json:"sla,omitempty"`
	AuditLogs          bool            `json:"audit_logs,omitempty"`
	WhiteLabel         bool            `json:"white_label,omitempty"`
	CustomIntegrations bool            `json:"custom_integrations,omitempty"`
	CustomDevelopment  bool            `json:"custom_development,omitempty"`
	Extra              map[string]bool `json:"extra,omitempty"`
}

// License entitles one organization to use specified products under quota
// limits. Quota and feature fields are a frozen snapshot of the tier defaults
// taken at creation time.
type License struct {
	ID              uuid.UUID     `json:"id"`
	OrgID           uuid.UUID     `json:"org_id"`
	Key             string        `json:"license_key"`
	Tier            LicenseTier   `json:"tier"`
	Status          LicenseStatus `json:"status"`
	MaxUsers        int           `json:"max_users"`
	MaxProducts     int           `json:"max_products"`
	MaxAPICalls     int           `json:"max_api_calls"`
	MaxStorageBytes int64         `json:"max_storage_bytes"`
	AllowedProducts []string      `json:"allowed_products"`
	Features        Features      `json:"features"`
	StartDate       time.Time     `json:"start_date"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	IsTrial         bool          `json:"is_trial"`
	TrialEndsAt     *time.Time    `json:"trial_ends_at,omitempty"`
	MachineIDs      []string      `json:"machine_ids,omitempty"`
	MaxMachines     int           `json:"max_machines"`
	LastValidated   *time.Time    `json:"last_validated,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// DefaultMaxMachines bounds the machine set when a license does not override it.
const DefaultMaxMachines = 5

// TrialDuration is how long a trial license remains usable after creation.
const TrialDuration = 30 * 24 * time.Hour

// NewLicense creates a new ACTIVE License owned by the given organization.
// Quota and feature fields must be filled from the entitlement snapshot by
// the caller.
func NewLicense(orgID uuid.UUID, key string, tier LicenseTier) *License {
	now := time.Now()
	return &License{
		ID:          uuid.New(),
		OrgID:       orgID,
		Key:         key,
		Tier:        tier,
		Status:      LicenseStatusActive,
		StartDate:   now,
		MaxMachines: DefaultMaxMachines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// StartTrial marks the license as a trial ending TrialDuration from now.
func (l *License) StartTrial() {
	ends := time.Now().Add(TrialDuration)
	l.IsTrial = true
	l.TrialEndsAt = &ends
}

// IsExpiredAt reports whether the license's hard expiry has passed at the
// given instant. It does not consult the stored status.
func (l *License) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IsTrialExpiredAt reports whether the trial window has lapsed at the given
// instant.
func (l *License) IsTrialExpiredAt(now time.Time) bool {
	return l.IsTrial && l.TrialEndsAt != nil && l.TrialEndsAt.Before(now)
}

// HasMachine reports whether the hashed machine id is already bound.
func (l *License) HasMachine(hash string) bool {
	for _, h := range l.MachineIDs {
		if h == hash {
			return true
		}
	}
	return false
}

// FeaturesJSON returns the features as JSON bytes for database storage.
func (l *License) FeaturesJSON() ([]byte, error) {
	return json.Marshal(l.Features)
}

// SetFeatures sets the features from JSON bytes.
func (l *License) SetFeatures(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &l.Features)
}

// CreateLicenseRequest is the request body for creating a license.
type CreateLicenseRequest struct {
	OrganizationID  uuid.UUID   `json:"organizationId" binding:"required"`
	Tier            LicenseTier `json:"tier" binding:"required,oneof=TRIAL STARTER PROFESSIONAL ENTERPRISE UNLIMITED"`
	MaxUsers        *int        `json:"maxUsers,omitempty" binding:"omitempty,min=1"`
	MaxProducts     *int        `json:"maxProducts,omitempty" binding:"omitempty,min=1"`
	MaxMachines     *int        `json:"maxMachines,omitempty" binding:"omitempty,min=1"`
	AllowedProducts []string    `json:"allowedProducts,omitempty"`
	ExpiresAt       *time.Time  `json:"expiresAt,omitempty"`
	IsTrial         bool        `json:"isTrial,omitempty"`
}

// UpdateLicenseStatusRequest is the request body for a status change.
type UpdateLicenseStatusRequest struct {
	Status LicenseStatus `json:"status" binding:"required,oneof=ACTIVE SUSPENDED EXPIRED CANCELLED"`
}

// LicenseSummary is the compact representation returned by list endpoints.
type LicenseSummary struct {
	ID            uuid.UUID     `json:"id"`
	Key           string        `json:"license_key"`
	Tier          LicenseTier   `json:"tier"`
	Status        LicenseStatus `json:"status"`
	MaxUsers      int           `json:"max_users"`
	MaxProducts   int           `json:"max_products"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	IsTrial       bool          `json:"is_trial"`
	LastValidated *time.Time    `json:"last_validated,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Summary returns the compact representation of the license.
func (l *License) Summary() *LicenseSummary {
	return &LicenseSummary{
		ID:            l.ID,
		Key:           l.Key,
		Tier:          l.Tier,
		Status:        l.Status,
		MaxUsers:      l.MaxUsers,
		MaxProducts:   l.MaxProducts,
		ExpiresAt:     l.ExpiresAt,
		IsTrial:       l.IsTrial,
		LastValidated: l.LastValidated,
		CreatedAt:     l.CreatedAt,
	}
}
