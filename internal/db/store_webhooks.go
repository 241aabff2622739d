package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iteksmart/warden/internal/models"
)

// CreateWebhook creates a webhook subscription.
func (db *DB) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	events := make([]string, len(w.Events))
	for i, e := range w.Events {
		events[i] = string(e)
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO webhooks (
			id, org_id, url, events, secret, is_active,
			last_triggered, success_count, failure_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, w.ID, w.OrgID, w.URL, events, w.Secret, w.IsActive,
		w.LastTriggered, w.SuccessCount, w.FailureCount, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a webhook scoped to the organization, or nil.
func (db *DB) GetWebhook(ctx context.Context, orgID, id uuid.UUID) (*models.Webhook, error) {
	var w models.Webhook
	var events []string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, url, events, secret, is_active,
		       last_triggered, success_count, failure_count, created_at, updated_at
		FROM webhooks
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(
		&w.ID, &w.OrgID, &w.URL, &events, &w.Secret, &w.IsActive,
		&w.LastTriggered, &w.SuccessCount, &w.FailureCount, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	w.Events = make([]models.WebhookEvent, len(events))
	for i, e := range events {
		w.Events[i] = models.WebhookEvent(e)
	}
	return &w, nil
}

// ListWebhooks returns all webhooks for an organization.
func (db *DB) ListWebhooks(ctx context.Context, orgID uuid.UUID) ([]*models.Webhook, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, org_id, url, events, secret, is_active,
		       last_triggered, success_count, failure_count, created_at, updated_at
		FROM webhooks
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var w models.Webhook
		var events []string
		err := rows.Scan(
			&w.ID, &w.OrgID, &w.URL, &events, &w.Secret, &w.IsActive,
			&w.LastTriggered, &w.SuccessCount, &w.FailureCount, &w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		w.Events = make([]models.WebhookEvent, len(events))
		for i, e := range events {
			w.Events[i] = models.WebhookEvent(e)
		}
		webhooks = append(webhooks, &w)
	}
	return webhooks, rows.Err()
}

// DeleteWebhook removes a webhook scoped to the organization. It reports
// whether a row was deleted.
func (db *DB) DeleteWebhook(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM webhooks WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return false, fmt.Errorf("delete webhook: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
