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

const agentColumns = `
	id, org_id, hostname, os_type, os_version, agent_version,
	ip_address, mac_address, status, credential_hash, config,
	last_seen, created_at, updated_at
`

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var agent models.Agent
	var status string
	var config []byte
	err := row.Scan(
		&agent.ID, &agent.OrgID, &agent.Hostname, &agent.OSType, &agent.OSVersion, &agent.AgentVersion,
		&agent.IPAddress, &agent.MACAddress, &status, &agent.CredentialHash, &config,
		&agent.LastSeen, &agent.CreatedAt, &agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	agent.Status = models.AgentStatus(status)
	if err := agent.SetConfig(config); err != nil {
		return nil, fmt.Errorf("decode agent config: %w", err)
	}
	return &agent, nil
}

// UpsertAgent creates the agent or, when the (org, hostname) pair already
// exists, refreshes the existing row in place and reports the surviving row.
// The stored credential hash is replaced on re-registration.
func (db *DB) UpsertAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	config, err := agent.ConfigJSON()
	if err != nil {
		return nil, fmt.Errorf("encode agent config: %w", err)
	}
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO agents (
			id, org_id, hostname, os_type, os_version, agent_version,
			ip_address, mac_address, status, credential_hash, config,
			last_seen, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (org_id, hostname) DO UPDATE SET
			os_type = EXCLUDED.os_type,
			os_version = EXCLUDED.os_version,
			agent_version = EXCLUDED.agent_version,
			ip_address = EXCLUDED.ip_address,
			mac_address = EXCLUDED.mac_address,
			status = 'active',
			credential_hash = EXCLUDED.credential_hash,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING `+agentColumns,
		agent.ID, agent.OrgID, agent.Hostname, agent.OSType, agent.OSVersion, agent.AgentVersion,
		agent.IPAddress, agent.MACAddress, string(agent.Status), agent.CredentialHash, config,
		agent.LastSeen, agent.CreatedAt, agent.UpdatedAt,
	)
	stored, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("upsert agent: %w", err)
	}
	return stored, nil
}

// GetAgentForOrg returns the agent only when it belongs to the organization,
// nil otherwise. Foreign agents are indistinguishable from missing ones.
func (db *DB) GetAgentForOrg(ctx context.Context, orgID, agentID uuid.UUID) (*models.Agent, error) {
	agent, err := scanAgent(db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1 AND org_id = $2`, agentID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// GetAgentByCredentialHash returns the agent holding the credential, or nil.
func (db *DB) GetAgentByCredentialHash(ctx context.Context, hash string) (*models.Agent, error) {
	agent, err := scanAgent(db.Pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE credential_hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by credential: %w", err)
	}
	return agent, nil
}

// ListAgents returns all agents for an organization ordered by hostname.
func (db *DB) ListAgents(ctx context.Context, orgID uuid.UUID) ([]*models.Agent, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE org_id = $1 ORDER BY hostname`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgent updates the mutable fields of an agent owned by the
// organization. It reports whether a row was updated.
func (db *DB) UpdateAgent(ctx context.Context, agent *models.Agent) (bool, error) {
	config, err := agent.ConfigJSON()
	if err != nil {
		return false, fmt.Errorf("encode agent config: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE agents
		SET os_version = $3, agent_version = $4, ip_address = $5, mac_address = $6,
		    status = $7, config = $8, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
	`, agent.ID, agent.OrgID, agent.OSVersion, agent.AgentVersion, agent.IPAddress, agent.MACAddress,
		string(agent.Status), config)
	if err != nil {
		return false, fmt.Errorf("update agent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAgent removes an agent owned by the organization. Metrics, alerts and
// commands cascade. It reports whether a row was deleted.
func (db *DB) DeleteAgent(ctx context.Context, orgID, agentID uuid.UUID) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM agents WHERE id = $1 AND org_id = $2`, agentID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete agent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchAgent records a fresh heartbeat and reactivates the agent.
func (db *DB) TouchAgent(ctx context.Context, agentID uuid.UUID, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE agents SET last_seen = $2, status = 'active', updated_at = NOW() WHERE id = $1
	`, agentID, at)
	if err != nil {
		return fmt.Errorf("touch agent: %w", err)
	}
	return nil
}
