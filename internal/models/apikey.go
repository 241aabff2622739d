package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKeyScope restricts what an organization API key may do.
type APIKeyScope string

const (
	// ScopeValidate allows license validation calls.
	ScopeValidate APIKeyScope = "validate"
	// ScopeAgents allows agent registration, telemetry, and command management.
	ScopeAgents APIKeyScope = "agents"
	// ScopeUsage allows usage recording and summary queries.
	ScopeUsage APIKeyScope = "usage"
	// ScopeWebhooks allows webhook subscription management.
	ScopeWebhooks APIKeyScope = "webhooks"
)

// AllAPIKeyScopes returns every valid scope.
func AllAPIKeyScopes() []APIKeyScope {
	return []APIKeyScope{ScopeValidate, ScopeAgents, ScopeUsage, ScopeWebhooks}
}

// APIKey is a service credential scoped to an organization. The raw key is
// returned once at creation; only its SHA-256 hash is stored.
type APIKey struct {
	ID         uuid.UUID     `json:"id"`
	OrgID      uuid.UUID     `json:"org_id"`
	Name       string        `json:"name"`
	KeyHash    string        `json:"-"`
	Scopes     []APIKeyScope `json:"scopes"`
	IsActive   bool          `json:"is_active"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	LastUsed   *time.Time    `json:"last_used,omitempty"`
	UsageCount int64         `json:"usage_count"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewAPIKey creates a new APIKey record for an organization.
func NewAPIKey(orgID uuid.UUID, name, keyHash string, scopes []APIKeyScope) *APIKey {
	now := time.Now()
	if len(scopes) == 0 {
		scopes = AllAPIKeyScopes()
	}
	return &APIKey{
		ID:        uuid.New(),
		OrgID:     orgID,
		Name:      name,
		KeyHash:   keyHash,
		Scopes:    scopes,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope APIKeyScope) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsExpired reports whether the key has passed its expiry time.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}

// IsUsable reports whether the key is active and unexpired.
func (k *APIKey) IsUsable() bool {
	return k.IsActive && !k.IsExpired()
}
