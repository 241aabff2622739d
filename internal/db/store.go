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

// Get* methods return (nil, nil) when the row does not exist. Callers decide
// whether that is a 404 or a business outcome.

// Organization methods

// CreateOrganization creates a new organization.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO organizations (id, name, domain, contact_name, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, org.ID, org.Name, org.Domain, org.ContactName, org.ContactEmail, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganization returns an organization by ID.
func (db *DB) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, domain, contact_name, contact_email, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Domain, &org.ContactName, &org.ContactEmail, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// GetOrganizationByDomain returns an organization by its unique domain.
func (db *DB) GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, domain, contact_name, contact_email, created_at, updated_at
		FROM organizations
		WHERE domain = $1
	`, domain).Scan(&org.ID, &org.Name, &org.Domain, &org.ContactName, &org.ContactEmail, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by domain: %w", err)
	}
	return &org, nil
}

// ListOrganizations returns all organizations ordered by name.
func (db *DB) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, domain, contact_name, contact_email, created_at, updated_at
		FROM organizations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		var org models.Organization
		err := rows.Scan(&org.ID, &org.Name, &org.Domain, &org.ContactName, &org.ContactEmail, &org.CreatedAt, &org.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}

// API key methods

// CreateAPIKey creates a new API key.
func (db *DB) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	scopes := make([]string, len(key.Scopes))
	for i, s := range key.Scopes {
		scopes[i] = string(s)
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO api_keys (id, org_id, name, key_hash, scopes, is_active, expires_at, last_used, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, key.ID, key.OrgID, key.Name, key.KeyHash, scopes, key.IsActive, key.ExpiresAt, key.LastUsed, key.UsageCount, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash returns an API key by its stored hash.
func (db *DB) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	var scopes []string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, name, key_hash, scopes, is_active, expires_at, last_used, usage_count, created_at, updated_at
		FROM api_keys
		WHERE key_hash = $1
	`, hash).Scan(
		&key.ID, &key.OrgID, &key.Name, &key.KeyHash, &scopes,
		&key.IsActive, &key.ExpiresAt, &key.LastUsed, &key.UsageCount, &key.CreatedAt, &key.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	key.Scopes = make([]models.APIKeyScope, len(scopes))
	for i, s := range scopes {
		key.Scopes[i] = models.APIKeyScope(s)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys for an organization.
func (db *DB) ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, org_id, name, key_hash, scopes, is_active, expires_at, last_used, usage_count, created_at, updated_at
		FROM api_keys
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var key models.APIKey
		var scopes []string
		err := rows.Scan(
			&key.ID, &key.OrgID, &key.Name, &key.KeyHash, &scopes,
			&key.IsActive, &key.ExpiresAt, &key.LastUsed, &key.UsageCount, &key.CreatedAt, &key.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		key.Scopes = make([]models.APIKeyScope, len(scopes))
		for i, s := range scopes {
			key.Scopes[i] = models.APIKeyScope(s)
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

// TouchAPIKey bumps the usage counter and last-used timestamp.
func (db *DB) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE api_keys
		SET usage_count = usage_count + 1, last_used = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// RevokeAPIKey deactivates an API key owned by the organization.
func (db *DB) RevokeAPIKey(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE api_keys
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
