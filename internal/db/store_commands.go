package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iteksmart/warden/internal/models"
)

const commandColumns = `
	id, agent_id, command_type, payload, created_by, status, result,
	acked_at, completed_at, created_at, updated_at
`

func scanCommand(row pgx.Row) (*models.AgentCommand, error) {
	var cmd models.AgentCommand
	var status string
	var payload []byte
	err := row.Scan(
		&cmd.ID, &cmd.AgentID, &cmd.CommandType, &payload, &cmd.CreatedBy, &status, &cmd.Result,
		&cmd.AckedAt, &cmd.CompletedAt, &cmd.CreatedAt, &cmd.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cmd.Status = models.CommandStatus(status)
	cmd.Payload = payload
	return &cmd, nil
}

// CreateAgentCommand enqueues a command for an agent.
func (db *DB) CreateAgentCommand(ctx context.Context, cmd *models.AgentCommand) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO agent_commands (
			id, agent_id, command_type, payload, created_by, status, result,
			acked_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, cmd.ID, cmd.AgentID, cmd.CommandType, []byte(cmd.Payload), cmd.CreatedBy, string(cmd.Status),
		cmd.Result, cmd.AckedAt, cmd.CompletedAt, cmd.CreatedAt, cmd.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create agent command: %w", err)
	}
	return nil
}

// GetAgentCommand returns one command scoped to the agent, or nil.
func (db *DB) GetAgentCommand(ctx context.Context, agentID, commandID uuid.UUID) (*models.AgentCommand, error) {
	cmd, err := scanCommand(db.Pool.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM agent_commands WHERE id = $1 AND agent_id = $2`,
		commandID, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent command: %w", err)
	}
	return cmd, nil
}

// ListAgentCommands returns commands for an agent, oldest first so agents
// process them in issue order. An empty status lists every command.
func (db *DB) ListAgentCommands(ctx context.Context, agentID uuid.UUID, status models.CommandStatus) ([]*models.AgentCommand, error) {
	query := `SELECT ` + commandColumns + ` FROM agent_commands WHERE agent_id = $1 ORDER BY created_at`
	args := []any{agentID}
	if status != "" {
		query = `SELECT ` + commandColumns + ` FROM agent_commands WHERE agent_id = $1 AND status = $2 ORDER BY created_at`
		args = append(args, string(status))
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agent commands: %w", err)
	}
	defer rows.Close()

	var commands []*models.AgentCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent command: %w", err)
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// AdvanceAgentCommand moves a command forward through its lifecycle. The
// transition is applied only when it is forward-only; the returned command is
// nil when the command does not exist and the bool reports whether the
// transition was applied.
func (db *DB) AdvanceAgentCommand(ctx context.Context, agentID, commandID uuid.UUID, next models.CommandStatus, result string) (*models.AgentCommand, bool, error) {
	cmd, err := db.GetAgentCommand(ctx, agentID, commandID)
	if err != nil {
		return nil, false, err
	}
	if cmd == nil {
		return nil, false, nil
	}
	if !cmd.Status.CanTransitionTo(next) {
		return cmd, false, nil
	}

	query := `
		UPDATE agent_commands
		SET status = $3, result = $4, updated_at = NOW()
	`
	switch next {
	case models.CommandStatusAcked:
		query += `, acked_at = NOW()`
	case models.CommandStatusCompleted, models.CommandStatusFailed:
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $1 AND agent_id = $2 AND status = $5 RETURNING ` + commandColumns

	updated, err := scanCommand(db.Pool.QueryRow(ctx, query,
		commandID, agentID, string(next), result, string(cmd.Status)))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with a concurrent transition.
		return cmd, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("advance agent command: %w", err)
	}
	return updated, true, nil
}
