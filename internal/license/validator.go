package license

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/models"
)

// Failure reasons returned on the validation response and written to the
// audit trail.
const (
	ReasonUnknownKey         = "unknown key"
	ReasonLicenseExpired     = "license expired"
	ReasonTrialExpired       = "trial period expired"
	ReasonProductNotIncluded = "product not included"
	ReasonMachineLimit       = "machine limit exceeded"
)

// Store is the datastore surface the validator needs.
type Store interface {
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	UpdateLicenseStatus(ctx context.Context, id uuid.UUID, status models.LicenseStatus) error
	// BindMachine atomically appends the machine hash unless it is already
	// bound or the license is at capacity. It reports whether the hash is
	// bound after the call.
	BindMachine(ctx context.Context, licenseID uuid.UUID, machineHash string, maxMachines int) (bool, error)
	TouchLicenseValidated(ctx context.Context, id uuid.UUID, at time.Time) error
	CreateValidation(ctx context.Context, v *models.LicenseValidation) error
	CreateUsageRecord(ctx context.Context, r *models.UsageRecord) error
}

// Request carries one validation attempt plus requester metadata for the
// audit trail.
type Request struct {
	LicenseKey string
	ProductID  string
	MachineID  string
	IPAddress  string
	UserAgent  string
}

// Snapshot is the entitlement view returned on a successful validation.
type Snapshot struct {
	Tier            models.LicenseTier `json:"tier"`
	MaxUsers        int                `json:"maxUsers"`
	MaxProducts     int                `json:"maxProducts"`
	AllowedProducts []string           `json:"allowedProducts"`
	Features        models.Features    `json:"features"`
	ExpiresAt       *time.Time         `json:"expiresAt,omitempty"`
	IsTrial         bool               `json:"isTrial"`
	TrialEndsAt     *time.Time         `json:"trialEndsAt,omitempty"`
}

// Result is the outcome of a validation attempt. Business failures are
// expressed here, never as errors; the error return of Validate is reserved
// for datastore faults.
type Result struct {
	Valid   bool      `json:"valid"`
	Reason  string    `json:"reason,omitempty"`
	License *Snapshot `json:"license,omitempty"`
}

// Validator runs the license admission decision chain. Every attempt writes
// exactly one audit row before the result is returned.
type Validator struct {
	store  Store
	logger zerolog.Logger
}

// NewValidator creates a Validator backed by the given store.
func NewValidator(store Store, logger zerolog.Logger) *Validator {
	return &Validator{
		store:  store,
		logger: logger.With().Str("component", "validator").Logger(),
	}
}

// Validate runs the decision chain for one attempt. The checks short-circuit
// in a fixed order: key lookup, status, hard expiry, trial expiry, product
// entitlement, machine binding. Expiry transitions are lazy and happen as a
// side effect of the observing call.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	if !IsWellFormedKey(req.LicenseKey) {
		return v.deny(ctx, nil, req, ReasonUnknownKey)
	}

	lic, err := v.store.GetLicenseByKey(ctx, req.LicenseKey)
	if err != nil {
		return nil, fmt.Errorf("look up license: %w", err)
	}
	if lic == nil {
		return v.deny(ctx, nil, req, ReasonUnknownKey)
	}

	if lic.Status != models.LicenseStatusActive {
		reason := fmt.Sprintf("license is %s", strings.ToLower(string(lic.Status)))
		return v.deny(ctx, lic, req, reason)
	}

	now := time.Now()
	if lic.IsExpiredAt(now) {
		if err := v.expire(ctx, lic); err != nil {
			return nil, err
		}
		return v.deny(ctx, lic, req, ReasonLicenseExpired)
	}
	if lic.IsTrialExpiredAt(now) {
		if err := v.expire(ctx, lic); err != nil {
			return nil, err
		}
		return v.deny(ctx, lic, req, ReasonTrialExpired)
	}

	if req.ProductID != "" && !ProductAllowed(lic, req.ProductID) {
		return v.deny(ctx, lic, req, ReasonProductNotIncluded)
	}

	if req.MachineID != "" {
		hash := HashMachineID(req.MachineID)
		bound, err := v.store.BindMachine(ctx, lic.ID, hash, lic.MaxMachines)
		if err != nil {
			return nil, fmt.Errorf("bind machine: %w", err)
		}
		if !bound {
			return v.deny(ctx, lic, req, ReasonMachineLimit)
		}
	}

	if err := v.store.TouchLicenseValidated(ctx, lic.ID, now); err != nil {
		return nil, fmt.Errorf("touch license: %w", err)
	}

	if req.ProductID != "" {
		rec := models.NewUsageRecord(lic.ID, lic.OrgID, req.ProductID, "license_validation")
		if err := v.store.CreateUsageRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("record validation usage: %w", err)
		}
	}

	if err := v.audit(ctx, lic, req, true, ""); err != nil {
		return nil, err
	}

	v.logger.Debug().
		Str("license_id", lic.ID.String()).
		Str("tier", string(lic.Tier)).
		Msg("license validated")

	return &Result{Valid: true, License: snapshotOf(lic)}, nil
}

// deny writes the audit row for a failed attempt and returns the business
// outcome.
func (v *Validator) deny(ctx context.Context, lic *models.License, req Request, reason string) (*Result, error) {
	if err := v.audit(ctx, lic, req, false, reason); err != nil {
		return nil, err
	}
	event := v.logger.Info().Str("reason", reason)
	if lic != nil {
		event = event.Str("license_id", lic.ID.String())
	}
	event.Msg("license validation denied")
	return &Result{Valid: false, Reason: reason}, nil
}

func (v *Validator) expire(ctx context.Context, lic *models.License) error {
	if err := v.store.UpdateLicenseStatus(ctx, lic.ID, models.LicenseStatusExpired); err != nil {
		return fmt.Errorf("expire license: %w", err)
	}
	lic.Status = models.LicenseStatusExpired
	return nil
}

func (v *Validator) audit(ctx context.Context, lic *models.License, req Request, valid bool, reason string) error {
	licenseID := models.UnknownLicenseID
	if lic != nil {
		licenseID = lic.ID
	}
	rec := models.NewLicenseValidation(licenseID, req.LicenseKey, valid, reason)
	rec.ProductID = req.ProductID
	if req.MachineID != "" {
		rec.MachineID = HashMachineID(req.MachineID)
	}
	rec.IPAddress = req.IPAddress
	rec.UserAgent = req.UserAgent
	if err := v.store.CreateValidation(ctx, rec); err != nil {
		return fmt.Errorf("write validation audit: %w", err)
	}
	return nil
}

func snapshotOf(lic *models.License) *Snapshot {
	return &Snapshot{
		Tier:            lic.Tier,
		MaxUsers:        lic.MaxUsers,
		MaxProducts:     lic.MaxProducts,
		AllowedProducts: lic.AllowedProducts,
		Features:        lic.Features,
		ExpiresAt:       lic.ExpiresAt,
		IsTrial:         lic.IsTrial,
		TrialEndsAt:     lic.TrialEndsAt,
	}
}
