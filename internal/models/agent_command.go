package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommandStatus is the delivery state of an agent command. Transitions only
// move forward: pending -> acked -> running -> completed/failed.
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusAcked     CommandStatus = "acked"
	CommandStatusRunning   CommandStatus = "running"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

// IsValid checks if the status is one of the known statuses.
func (s CommandStatus) IsValid() bool {
	switch s {
	case CommandStatusPending, CommandStatusAcked, CommandStatusRunning, CommandStatusCompleted, CommandStatusFailed:
		return true
	}
	return false
}

func (s CommandStatus) rank() int {
	switch s {
	case CommandStatusPending:
		return 0
	case CommandStatusAcked:
		return 1
	case CommandStatusRunning:
		return 2
	case CommandStatusCompleted, CommandStatusFailed:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving to next is a forward transition.
func (s CommandStatus) CanTransitionTo(next CommandStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.rank() > s.rank()
}

// AgentCommand is a server-issued instruction pending delivery to an agent.
type AgentCommand struct {
	ID          uuid.UUID       `json:"id"`
	AgentID     uuid.UUID       `json:"agent_id"`
	CommandType string          `json:"command_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	Status      CommandStatus   `json:"status"`
	Result      string          `json:"result,omitempty"`
	AckedAt     *time.Time      `json:"acked_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewAgentCommand creates a pending command for the given agent.
func NewAgentCommand(agentID uuid.UUID, commandType string, payload json.RawMessage, createdBy string) *AgentCommand {
	now := time.Now()
	return &AgentCommand{
		ID:          uuid.New(),
		AgentID:     agentID,
		CommandType: commandType,
		Payload:     payload,
		CreatedBy:   createdBy,
		Status:      CommandStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// EnqueueCommandRequest is the request body for queueing a command.
type EnqueueCommandRequest struct {
	CommandType string          `json:"commandType" binding:"required"`
	CommandData json.RawMessage `json:"commandData,omitempty"`
}

// AckCommandRequest is the request body for acknowledging a command.
type AckCommandRequest struct {
	Status CommandStatus `json:"status" binding:"required,oneof=acked running completed failed"`
	Result string        `json:"result,omitempty"`
}
