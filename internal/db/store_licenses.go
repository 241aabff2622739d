package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iteksmart/warden/internal/models"
)

const licenseColumns = `
	id, org_id, license_key, tier, status,
	max_users, max_products, max_api_calls, max_storage_bytes,
	allowed_products, features, start_date, expires_at,
	is_trial, trial_ends_at, machine_ids, max_machines,
	last_validated, created_at, updated_at
`

func scanLicense(row pgx.Row) (*models.License, error) {
	var lic models.License
	var tier, status string
	var features []byte
	err := row.Scan(
		&lic.ID, &lic.OrgID, &lic.Key, &tier, &status,
		&lic.MaxUsers, &lic.MaxProducts, &lic.MaxAPICalls, &lic.MaxStorageBytes,
		&lic.AllowedProducts, &features, &lic.StartDate, &lic.ExpiresAt,
		&lic.IsTrial, &lic.TrialEndsAt, &lic.MachineIDs, &lic.MaxMachines,
		&lic.LastValidated, &lic.CreatedAt, &lic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lic.Tier = models.LicenseTier(tier)
	lic.Status = models.LicenseStatus(status)
	if err := lic.SetFeatures(features); err != nil {
		return nil, fmt.Errorf("decode license features: %w", err)
	}
	return &lic, nil
}

// CreateLicense creates a new license row.
func (db *DB) CreateLicense(ctx context.Context, lic *models.License) error {
	features, err := lic.FeaturesJSON()
	if err != nil {
		return fmt.Errorf("encode license features: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO licenses (
			id, org_id, license_key, tier, status,
			max_users, max_products, max_api_calls, max_storage_bytes,
			allowed_products, features, start_date, expires_at,
			is_trial, trial_ends_at, machine_ids, max_machines,
			last_validated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		lic.ID, lic.OrgID, lic.Key, string(lic.Tier), string(lic.Status),
		lic.MaxUsers, lic.MaxProducts, lic.MaxAPICalls, lic.MaxStorageBytes,
		lic.AllowedProducts, features, lic.StartDate, lic.ExpiresAt,
		lic.IsTrial, lic.TrialEndsAt, lic.MachineIDs, lic.MaxMachines,
		lic.LastValidated, lic.CreatedAt, lic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// GetLicenseByKey returns a license by its key, or nil when unknown.
func (db *DB) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	lic, err := scanLicense(db.Pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	return lic, nil
}

// GetLicenseByID returns a license by ID, or nil when unknown.
func (db *DB) GetLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	lic, err := scanLicense(db.Pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get license by id: %w", err)
	}
	return lic, nil
}

// ListLicenses returns all licenses, newest first. A zero orgID lists every
// organization's licenses.
func (db *DB) ListLicenses(ctx context.Context, orgID uuid.UUID) ([]*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY created_at DESC`
	args := []any{}
	if orgID != uuid.Nil {
		query = `SELECT ` + licenseColumns + ` FROM licenses WHERE org_id = $1 ORDER BY created_at DESC`
		args = append(args, orgID)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, lic)
	}
	return licenses, rows.Err()
}

// UpdateLicenseStatus sets the lifecycle status of a license.
func (db *DB) UpdateLicenseStatus(ctx context.Context, id uuid.UUID, status models.LicenseStatus) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE licenses SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	return nil
}

// BindMachine appends the machine hash to the license's machine set unless it
// is already present or the set is at capacity. The append is a single
// conditional update, so concurrent binds against the last free slot cannot
// both succeed. It reports whether the hash is bound after the call.
func (db *DB) BindMachine(ctx context.Context, licenseID uuid.UUID, machineHash string, maxMachines int) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE licenses
		SET machine_ids = array_append(machine_ids, $2), updated_at = NOW()
		WHERE id = $1
		  AND NOT machine_ids @> ARRAY[$2]::text[]
		  AND cardinality(machine_ids) < $3
	`, licenseID, machineHash, maxMachines)
	if err != nil {
		return false, fmt.Errorf("bind machine: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// No row updated: either the hash was already bound (idempotent success)
	// or the set is full (capacity denial).
	var bound bool
	err = db.Pool.QueryRow(ctx, `
		SELECT machine_ids @> ARRAY[$2]::text[] FROM licenses WHERE id = $1
	`, licenseID, machineHash).Scan(&bound)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check machine binding: %w", err)
	}
	return bound, nil
}

// TouchLicenseValidated records the time of the latest successful validation.
func (db *DB) TouchLicenseValidated(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE licenses SET last_validated = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch license validated: %w", err)
	}
	return nil
}

// CreateValidation appends one validation audit row.
func (db *DB) CreateValidation(ctx context.Context, v *models.LicenseValidation) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO license_validations (
			id, license_id, license_key, is_valid, failure_reason,
			machine_id, product_id, ip_address, user_agent, validated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		v.ID, v.LicenseID, v.LicenseKey, v.IsValid, v.FailureReason,
		v.MachineID, v.ProductID, v.IPAddress, v.UserAgent, v.ValidatedAt,
	)
	if err != nil {
		return fmt.Errorf("create validation record: %w", err)
	}
	return nil
}

// ListValidations returns the newest validation audit rows for a license.
func (db *DB) ListValidations(ctx context.Context, licenseID uuid.UUID, limit int) ([]*models.LicenseValidation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, license_id, license_key, is_valid, failure_reason,
		       machine_id, product_id, ip_address, user_agent, validated_at
		FROM license_validations
		WHERE license_id = $1
		ORDER BY validated_at DESC
		LIMIT $2
	`, licenseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	defer rows.Close()

	var validations []*models.LicenseValidation
	for rows.Next() {
		var v models.LicenseValidation
		err := rows.Scan(
			&v.ID, &v.LicenseID, &v.LicenseKey, &v.IsValid, &v.FailureReason,
			&v.MachineID, &v.ProductID, &v.IPAddress, &v.UserAgent, &v.ValidatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		validations = append(validations, &v)
	}
	return validations, rows.Err()
}
