package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iteksmart/warden/internal/models"
)

// CreateAgentMetric appends one telemetry report.
func (db *DB) CreateAgentMetric(ctx context.Context, m *models.AgentMetric) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO agent_metrics (id, agent_id, metric_type, data, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.AgentID, string(m.MetricType), []byte(m.Data), m.RecordedAt)
	if err != nil {
		return fmt.Errorf("create agent metric: %w", err)
	}
	return nil
}

// ListAgentMetrics returns the newest metric rows for an agent, optionally
// filtered by type.
func (db *DB) ListAgentMetrics(ctx context.Context, agentID uuid.UUID, metricType models.MetricType, limit int) ([]*models.AgentMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, agent_id, metric_type, data, recorded_at
		FROM agent_metrics
		WHERE agent_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	args := []any{agentID, limit}
	if metricType != "" {
		query = `
			SELECT id, agent_id, metric_type, data, recorded_at
			FROM agent_metrics
			WHERE agent_id = $1 AND metric_type = $3
			ORDER BY recorded_at DESC
			LIMIT $2
		`
		args = append(args, string(metricType))
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agent metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.AgentMetric
	for rows.Next() {
		var m models.AgentMetric
		var metricType string
		var data []byte
		if err := rows.Scan(&m.ID, &m.AgentID, &metricType, &data, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan agent metric: %w", err)
		}
		m.MetricType = models.MetricType(metricType)
		m.Data = data
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// CreateAgentAlert appends one alert row.
func (db *DB) CreateAgentAlert(ctx context.Context, a *models.AgentAlert) error {
	details, err := a.DetailsJSON()
	if err != nil {
		return fmt.Errorf("encode alert details: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO agent_alerts (
			id, agent_id, org_id, alert_type, severity, message, details,
			is_resolved, resolved_at, resolved_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.AgentID, a.OrgID, string(a.AlertType), string(a.Severity), a.Message, details,
		a.IsResolved, a.ResolvedAt, a.ResolvedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create agent alert: %w", err)
	}
	return nil
}

// ListAgentAlerts returns alerts for an agent, newest first. When
// unresolvedOnly is set, resolved alerts are omitted.
func (db *DB) ListAgentAlerts(ctx context.Context, agentID uuid.UUID, unresolvedOnly bool, limit int) ([]*models.AgentAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, agent_id, org_id, alert_type, severity, message, details,
		       is_resolved, resolved_at, resolved_by, created_at
		FROM agent_alerts
		WHERE agent_id = $1
	`
	if unresolvedOnly {
		query += ` AND NOT is_resolved`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.AgentAlert
	for rows.Next() {
		var a models.AgentAlert
		var alertType, severity string
		var details []byte
		err := rows.Scan(
			&a.ID, &a.AgentID, &a.OrgID, &alertType, &severity, &a.Message, &details,
			&a.IsResolved, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan agent alert: %w", err)
		}
		a.AlertType = models.AlertType(alertType)
		a.Severity = models.AlertSeverity(severity)
		if err := a.SetDetails(details); err != nil {
			return nil, fmt.Errorf("decode alert details: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// ResolveAgentAlert resolves an unresolved alert scoped to the agent and
// organization. Resolving twice is a no-op; the original resolution stands.
// It reports whether the alert exists within the scope.
func (db *DB) ResolveAgentAlert(ctx context.Context, orgID, agentID, alertID uuid.UUID, resolvedBy string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE agent_alerts
		SET is_resolved = TRUE, resolved_at = NOW(), resolved_by = $4
		WHERE id = $1 AND agent_id = $2 AND org_id = $3 AND NOT is_resolved
	`, alertID, agentID, orgID, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("resolve agent alert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	err = db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM agent_alerts WHERE id = $1 AND agent_id = $2 AND org_id = $3)
	`, alertID, agentID, orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check agent alert: %w", err)
	}
	return exists, nil
}

// DeleteOldAgentMetrics removes telemetry rows older than the cutoff and
// returns the number deleted. License and alert state is untouched.
func (db *DB) DeleteOldAgentMetrics(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM agent_metrics WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old agent metrics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldResolvedAlerts removes resolved alerts older than the cutoff and
// returns the number deleted. Unresolved alerts are kept regardless of age.
func (db *DB) DeleteOldResolvedAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM agent_alerts WHERE is_resolved AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old resolved alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}
