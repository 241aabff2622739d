// Package auth validates the credentials accepted at the API boundary:
// organization API keys, agent credentials and admin bearer tokens.
package auth

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/models"
)

// credentialHexLength is the length of the hex portion of every service
// credential (32 random bytes).
const credentialHexLength = 64

// KeyStore defines the lookup operations credential validation needs.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error
	GetAgentByCredentialHash(ctx context.Context, hash string) (*models.Agent, error)
}

// CredentialValidator resolves presented credentials to their owners.
type CredentialValidator struct {
	store  KeyStore
	logger zerolog.Logger
}

// NewCredentialValidator creates a credential validator.
func NewCredentialValidator(store KeyStore, logger zerolog.Logger) *CredentialValidator {
	return &CredentialValidator{
		store:  store,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// ValidateOrgKey resolves an organization API key to its record, bumping the
// usage counter on success. Returns nil for unknown, malformed, inactive or
// expired keys.
func (v *CredentialValidator) ValidateOrgKey(ctx context.Context, presented string) (*models.APIKey, error) {
	if !hasCredentialShape(presented, license.OrgKeyPrefix) {
		v.logger.Debug().Msg("malformed org api key")
		return nil, nil
	}

	key, err := v.store.GetAPIKeyByHash(ctx, license.HashCredential(presented))
	if err != nil {
		return nil, err
	}
	if key == nil {
		v.logger.Debug().Msg("unknown org api key")
		return nil, nil
	}
	if !key.IsUsable() {
		v.logger.Debug().Str("key_id", key.ID.String()).Msg("org api key inactive or expired")
		return nil, nil
	}

	if err := v.store.TouchAPIKey(ctx, key.ID, time.Now()); err != nil {
		// Usage accounting must not block an otherwise valid request.
		v.logger.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to bump api key usage")
	}
	return key, nil
}

// ValidateAgentCredential resolves an agent credential to its agent. Returns
// nil for unknown, malformed or revoked credentials.
func (v *CredentialValidator) ValidateAgentCredential(ctx context.Context, presented string) (*models.Agent, error) {
	if !hasCredentialShape(presented, license.AgentCredPrefix) {
		v.logger.Debug().Msg("malformed agent credential")
		return nil, nil
	}

	agent, err := v.store.GetAgentByCredentialHash(ctx, license.HashCredential(presented))
	if err != nil {
		return nil, err
	}
	if agent == nil {
		v.logger.Debug().Msg("unknown agent credential")
		return nil, nil
	}
	if agent.Status == models.AgentStatusRevoked {
		v.logger.Debug().Str("agent_id", agent.ID.String()).Msg("agent credential revoked")
		return nil, nil
	}
	return agent, nil
}

// hasCredentialShape checks the prefix and hex body of a credential without
// touching the datastore.
func hasCredentialShape(credential, prefix string) bool {
	if !strings.HasPrefix(credential, prefix) {
		return false
	}
	hexPart := strings.TrimPrefix(credential, prefix)
	if len(hexPart) != credentialHexLength {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// ExtractBearerToken extracts the token from an Authorization header value.
// Returns empty string if the header is not a valid Bearer token.
func ExtractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
