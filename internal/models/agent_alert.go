package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityError    AlertSeverity = "ERROR"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// IsValid checks if the severity is one of the known levels.
func (s AlertSeverity) IsValid() bool {
	switch s {
	case AlertSeverityWarning, AlertSeverityError, AlertSeverityCritical:
		return true
	}
	return false
}

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertTypeHighCPU           AlertType = "high_cpu"
	AlertTypeHighMemory        AlertType = "high_memory"
	AlertTypeHighDisk          AlertType = "high_disk"
	AlertTypeFirewallDisabled  AlertType = "firewall_disabled"
	AlertTypeAntivirusDisabled AlertType = "antivirus_disabled"
	AlertTypeUpdatesAvailable  AlertType = "updates_available"
)

// AlertDetails carries the measured value behind an alert. Extra preserves
// fields this build does not know about.
type AlertDetails struct {
	Metric    string                 `json:"metric,omitempty"`
	Value     *float64               `json:"value,omitempty"`
	Threshold *float64               `json:"threshold,omitempty"`
	Count     *int                   `json:"count,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// AgentAlert is a threshold breach raised from a telemetry report. Alerts are
// append-only; repeated breaches raise repeated alerts.
type AgentAlert struct {
	ID         uuid.UUID     `json:"id"`
	AgentID    uuid.UUID     `json:"agent_id"`
	OrgID      uuid.UUID     `json:"org_id"`
	AlertType  AlertType     `json:"alert_type"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Details    AlertDetails  `json:"details"`
	IsResolved bool          `json:"is_resolved"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewAgentAlert creates an unresolved alert for the given agent.
func NewAgentAlert(agentID, orgID uuid.UUID, alertType AlertType, severity AlertSeverity, message string) *AgentAlert {
	return &AgentAlert{
		ID:        uuid.New(),
		AgentID:   agentID,
		OrgID:     orgID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// Resolve marks the alert resolved. Resolving an already resolved alert is a
// no-op and keeps the original resolution.
func (a *AgentAlert) Resolve(by string) {
	if a.IsResolved {
		return
	}
	now := time.Now()
	a.IsResolved = true
	a.ResolvedAt = &now
	a.ResolvedBy = by
}

// AlertSummary is the compact alert shape returned inline with a telemetry
// ingest response.
type AlertSummary struct {
	Type     AlertType     `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Summary returns the compact representation of the alert.
func (a *AgentAlert) Summary() AlertSummary {
	return AlertSummary{Type: a.AlertType, Severity: a.Severity, Message: a.Message}
}

// DetailsJSON returns the details as JSON bytes for database storage.
func (a *AgentAlert) DetailsJSON() ([]byte, error) {
	return json.Marshal(a.Details)
}

// SetDetails sets the details from JSON bytes.
func (a *AgentAlert) SetDetails(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &a.Details)
}
