package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AgentStatus is the registration state of an agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusRevoked  AgentStatus = "revoked"
)

// IsValid checks if the status is one of the known statuses.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentStatusActive, AgentStatusInactive, AgentStatusRevoked:
		return true
	}
	return false
}

// AgentConfig is the per-agent reporting configuration. Known knobs are
// named; Extra carries forward-compatible settings untouched.
type AgentConfig struct {
	ReportIntervalSeconds int                    `json:"report_interval_seconds,omitempty"`
	CollectSecurity       bool                   `json:"collect_security,omitempty"`
	CollectSystem         bool                   `json:"collect_system,omitempty"`
	Extra                 map[string]interface{} `json:"extra,omitempty"`
}

// Agent is a monitoring agent installed on a customer machine. Identity is
// the (org_id, hostname) pair; re-registration updates the existing row.
type Agent struct {
	ID           uuid.UUID   `json:"id"`
	OrgID        uuid.UUID   `json:"org_id"`
	Hostname     string      `json:"hostname"`
	OSType       string      `json:"os_type"`
	OSVersion    string      `json:"os_version,omitempty"`
	AgentVersion string      `json:"agent_version,omitempty"`
	IPAddress    string      `json:"ip_address,omitempty"`
	MACAddress   string      `json:"mac_address,omitempty"`
	Status       AgentStatus `json:"status"`
	// CredentialHash is the SHA-256 of the agent credential. The credential
	// itself is only shown once, at registration.
	CredentialHash string      `json:"-"`
	Config         AgentConfig `json:"config"`
	LastSeen       *time.Time  `json:"last_seen,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewAgent creates a new active Agent for the given organization.
func NewAgent(orgID uuid.UUID, hostname, osType string) *Agent {
	now := time.Now()
	return &Agent{
		ID:        uuid.New(),
		OrgID:     orgID,
		Hostname:  hostname,
		OSType:    osType,
		Status:    AgentStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a fresh heartbeat.
func (a *Agent) Touch() {
	now := time.Now()
	a.LastSeen = &now
	a.UpdatedAt = now
}

// ConfigJSON returns the config as JSON bytes for database storage.
func (a *Agent) ConfigJSON() ([]byte, error) {
	return json.Marshal(a.Config)
}

// SetConfig sets the config from JSON bytes.
func (a *Agent) SetConfig(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &a.Config)
}

// RegisterAgentRequest is the request body for agent registration.
type RegisterAgentRequest struct {
	Hostname     string      `json:"hostname" binding:"required"`
	OSType       string      `json:"osType" binding:"required"`
	OSVersion    string      `json:"osVersion,omitempty"`
	AgentVersion string      `json:"agentVersion" binding:"required"`
	IPAddress    string      `json:"ipAddress,omitempty"`
	MACAddress   string      `json:"macAddress,omitempty"`
	Config       AgentConfig `json:"config,omitempty"`
}
