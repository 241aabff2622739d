package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iteksmart/warden/internal/models"
)

// CreateUsageRecord appends one metered usage event.
func (db *DB) CreateUsageRecord(ctx context.Context, r *models.UsageRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO usage_records (id, license_id, org_id, product_id, action, quantity, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.LicenseID, r.OrgID, r.ProductID, r.Action, r.Quantity, r.RecordedAt)
	if err != nil {
		return fmt.Errorf("create usage record: %w", err)
	}
	return nil
}

// SummarizeUsage aggregates usage per product and action since the cutoff.
func (db *DB) SummarizeUsage(ctx context.Context, licenseID uuid.UUID, since time.Time) ([]models.UsageSummaryItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT product_id, action, SUM(quantity)
		FROM usage_records
		WHERE license_id = $1 AND recorded_at >= $2
		GROUP BY product_id, action
		ORDER BY product_id, action
	`, licenseID, since)
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	defer rows.Close()

	var items []models.UsageSummaryItem
	for rows.Next() {
		var item models.UsageSummaryItem
		if err := rows.Scan(&item.ProductID, &item.Action, &item.Total); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
