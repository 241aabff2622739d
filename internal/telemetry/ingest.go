// Package telemetry ingests agent metric reports and raises threshold alerts
// inline with the ingesting call.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/models"
)

// ErrAgentNotFound is returned when the agent does not exist or belongs to a
// different organization. Callers surface both cases identically.
var ErrAgentNotFound = errors.New("agent not found")

// Store is the datastore surface the ingestor needs.
type Store interface {
	GetAgentForOrg(ctx context.Context, orgID, agentID uuid.UUID) (*models.Agent, error)
	CreateAgentMetric(ctx context.Context, m *models.AgentMetric) error
	TouchAgent(ctx context.Context, agentID uuid.UUID, at time.Time) error
	CreateAgentAlert(ctx context.Context, a *models.AgentAlert) error
}

// Ingestor persists telemetry reports and evaluates alert thresholds
// synchronously. Alerts have no suppression window: every breaching
// submission creates a new alert row, duplicates included.
type Ingestor struct {
	store  Store
	logger zerolog.Logger
}

// NewIngestor creates an Ingestor backed by the given store.
func NewIngestor(store Store, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		logger: logger.With().Str("component", "telemetry").Logger(),
	}
}

// Ingest stores one metric report for the agent and returns the alerts it
// raised. A failed alert write fails the whole ingest, the response promises
// the returned alerts were persisted.
func (in *Ingestor) Ingest(ctx context.Context, orgID, agentID uuid.UUID, req models.ReportMetricsRequest) ([]*models.AgentAlert, error) {
	agent, err := in.store.GetAgentForOrg(ctx, orgID, agentID)
	if err != nil {
		return nil, fmt.Errorf("look up agent: %w", err)
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}

	metric := models.NewAgentMetric(agent.ID, req.MetricType, req.MetricData)
	if req.Timestamp != nil {
		metric.RecordedAt = *req.Timestamp
	}
	if err := in.store.CreateAgentMetric(ctx, metric); err != nil {
		return nil, fmt.Errorf("store metric: %w", err)
	}

	agent.Touch()
	if err := in.store.TouchAgent(ctx, agent.ID, *agent.LastSeen); err != nil {
		return nil, fmt.Errorf("touch agent: %w", err)
	}

	alerts, err := in.evaluate(agent, metric)
	if err != nil {
		return nil, err
	}
	for _, alert := range alerts {
		if err := in.store.CreateAgentAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("store alert: %w", err)
		}
		in.logger.Info().
			Str("agent_id", agent.ID.String()).
			Str("alert_type", string(alert.AlertType)).
			Str("severity", string(alert.Severity)).
			Msg("alert raised")
	}

	return alerts, nil
}

// evaluate applies the static threshold table to the metric payload. Only
// system and security reports can raise alerts.
func (in *Ingestor) evaluate(agent *models.Agent, metric *models.AgentMetric) ([]*models.AgentAlert, error) {
	switch metric.MetricType {
	case models.MetricTypeSystem:
		data, err := metric.SystemData()
		if err != nil {
			return nil, fmt.Errorf("decode system metrics: %w", err)
		}
		return evaluateSystem(agent, data), nil
	case models.MetricTypeSecurity:
		data, err := metric.SecurityData()
		if err != nil {
			return nil, fmt.Errorf("decode security metrics: %w", err)
		}
		return evaluateSecurity(agent, data), nil
	case models.MetricTypeHeartbeat:
		return nil, nil
	}
	return nil, nil
}

func evaluateSystem(agent *models.Agent, data *models.SystemMetrics) []*models.AgentAlert {
	var alerts []*models.AgentAlert

	if a := gaugeAlert(agent, models.AlertTypeHighCPU, "CPU usage", data.CPUPercent, 80, 90); a != nil {
		alerts = append(alerts, a)
	}
	if a := gaugeAlert(agent, models.AlertTypeHighMemory, "Memory usage", data.MemoryPercent, 80, 90); a != nil {
		alerts = append(alerts, a)
	}
	if a := gaugeAlert(agent, models.AlertTypeHighDisk, "Disk usage", data.DiskPercent, 75, 90); a != nil {
		alerts = append(alerts, a)
	}
	return alerts
}

// gaugeAlert raises one alert for a percentage gauge: CRITICAL at or above
// the critical threshold, otherwise WARNING at or above the warning
// threshold. Absent fields never alert.
func gaugeAlert(agent *models.Agent, alertType models.AlertType, label string, value *float64, warn, crit float64) *models.AgentAlert {
	if value == nil {
		return nil
	}
	var severity models.AlertSeverity
	var threshold float64
	switch {
	case *value >= crit:
		severity = models.AlertSeverityCritical
		threshold = crit
	case *value >= warn:
		severity = models.AlertSeverityWarning
		threshold = warn
	default:
		return nil
	}

	msg := fmt.Sprintf("%s at %.1f%% on %s", label, *value, agent.Hostname)
	alert := models.NewAgentAlert(agent.ID, agent.OrgID, alertType, severity, msg)
	alert.Details = models.AlertDetails{
		Metric:    string(alertType),
		Value:     value,
		Threshold: &threshold,
	}
	return alert
}

const updatesAvailableThreshold = 10

func evaluateSecurity(agent *models.Agent, data *models.SecurityMetrics) []*models.AgentAlert {
	var alerts []*models.AgentAlert

	if data.FirewallEnabled != nil && !*data.FirewallEnabled {
		alerts = append(alerts, models.NewAgentAlert(agent.ID, agent.OrgID,
			models.AlertTypeFirewallDisabled, models.AlertSeverityError, "Firewall is disabled"))
	}
	if data.AntivirusEnabled != nil && !*data.AntivirusEnabled {
		alerts = append(alerts, models.NewAgentAlert(agent.ID, agent.OrgID,
			models.AlertTypeAntivirusDisabled, models.AlertSeverityError, "Antivirus is disabled"))
	}
	if data.UpdatesAvailable != nil && *data.UpdatesAvailable > updatesAvailableThreshold {
		count := *data.UpdatesAvailable
		alert := models.NewAgentAlert(agent.ID, agent.OrgID,
			models.AlertTypeUpdatesAvailable, models.AlertSeverityWarning,
			fmt.Sprintf("%d system updates available on %s", count, agent.Hostname))
		alert.Details = models.AlertDetails{Metric: "updates_available", Count: &count}
		alerts = append(alerts, alert)
	}
	return alerts
}
