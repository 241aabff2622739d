package models

import (
	"time"

	"github.com/google/uuid"
)

// UnknownLicenseID is the sentinel license id recorded on validation audit
// rows when the submitted key did not match any license.
var UnknownLicenseID = uuid.Nil

// LicenseValidation is an audit record of one validation attempt. Every
// attempt produces exactly one row, including attempts against unknown keys.
type LicenseValidation struct {
	ID            uuid.UUID `json:"id"`
	LicenseID     uuid.UUID `json:"license_id"`
	LicenseKey    string    `json:"license_key"`
	IsValid       bool      `json:"is_valid"`
	FailureReason string    `json:"failure_reason,omitempty"`
	MachineID     string    `json:"machine_id,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	ValidatedAt   time.Time `json:"validated_at"`
}

// NewLicenseValidation creates an audit record for a validation attempt.
// Pass UnknownLicenseID when the key matched no license.
func NewLicenseValidation(licenseID uuid.UUID, licenseKey string, isValid bool, reason string) *LicenseValidation {
	return &LicenseValidation{
		ID:            uuid.New(),
		LicenseID:     licenseID,
		LicenseKey:    licenseKey,
		IsValid:       isValid,
		FailureReason: reason,
		ValidatedAt:   time.Now(),
	}
}
