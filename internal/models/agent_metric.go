package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MetricType discriminates telemetry payloads.
type MetricType string

const (
	MetricTypeSystem    MetricType = "system"
	MetricTypeSecurity  MetricType = "security"
	MetricTypeHeartbeat MetricType = "heartbeat"
)

// IsValid checks if the metric type is one of the known types.
func (t MetricType) IsValid() bool {
	switch t {
	case MetricTypeSystem, MetricTypeSecurity, MetricTypeHeartbeat:
		return true
	}
	return false
}

// SystemMetrics is the payload of a system metric report. All fields are
// optional; absent fields never trigger alerts.
type SystemMetrics struct {
	CPUPercent    *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
	DiskPercent   *float64 `json:"disk_percent,omitempty"`
	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
	ProcessCount  *int     `json:"process_count,omitempty"`
}

// SecurityMetrics is the payload of a security metric report. Boolean fields
// are pointers so that an absent field is distinguishable from an explicit
// false; only explicit false triggers alerts.
type SecurityMetrics struct {
	FirewallEnabled  *bool `json:"firewall_enabled,omitempty"`
	AntivirusEnabled *bool `json:"antivirus_enabled,omitempty"`
	DiskEncrypted    *bool `json:"disk_encrypted,omitempty"`
	UpdatesAvailable *int  `json:"updates_available,omitempty"`
	FailedLogins     *int  `json:"failed_logins,omitempty"`
}

// AgentMetric is one stored telemetry report from an agent.
type AgentMetric struct {
	ID         uuid.UUID       `json:"id"`
	AgentID    uuid.UUID       `json:"agent_id"`
	MetricType MetricType      `json:"metric_type"`
	Data       json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewAgentMetric creates a metric row with the raw payload preserved as
// submitted.
func NewAgentMetric(agentID uuid.UUID, metricType MetricType, data json.RawMessage) *AgentMetric {
	return &AgentMetric{
		ID:         uuid.New(),
		AgentID:    agentID,
		MetricType: metricType,
		Data:       data,
		RecordedAt: time.Now(),
	}
}

// SystemData decodes the payload as system metrics.
func (m *AgentMetric) SystemData() (*SystemMetrics, error) {
	var sm SystemMetrics
	if err := json.Unmarshal(m.Data, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// SecurityData decodes the payload as security metrics.
func (m *AgentMetric) SecurityData() (*SecurityMetrics, error) {
	var sm SecurityMetrics
	if err := json.Unmarshal(m.Data, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// ReportMetricsRequest is the request body for a telemetry report.
type ReportMetricsRequest struct {
	MetricType MetricType      `json:"metricType" binding:"required,oneof=system security heartbeat"`
	MetricData json.RawMessage `json:"metricData" binding:"required"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
}
