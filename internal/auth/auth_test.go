package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/license"
	"github.com/iteksmart/warden/internal/models"
)

type mockKeyStore struct {
	keys    map[string]*models.APIKey
	agents  map[string]*models.Agent
	touched int
}

func newMockKeyStore() *mockKeyStore {
	return &mockKeyStore{
		keys:   make(map[string]*models.APIKey),
		agents: make(map[string]*models.Agent),
	}
}

func (m *mockKeyStore) GetAPIKeyByHash(_ context.Context, hash string) (*models.APIKey, error) {
	return m.keys[hash], nil
}

func (m *mockKeyStore) TouchAPIKey(_ context.Context, _ uuid.UUID, _ time.Time) error {
	m.touched++
	return nil
}

func (m *mockKeyStore) GetAgentByCredentialHash(_ context.Context, hash string) (*models.Agent, error) {
	return m.agents[hash], nil
}

func testValidator(store KeyStore) *CredentialValidator {
	return NewCredentialValidator(store, zerolog.New(io.Discard))
}

func TestValidateOrgKey(t *testing.T) {
	store := newMockKeyStore()
	v := testValidator(store)

	cred, err := license.GenerateOrgKey()
	if err != nil {
		t.Fatalf("GenerateOrgKey() error = %v", err)
	}
	key := models.NewAPIKey(uuid.New(), "ci", license.HashCredential(cred), nil)
	store.keys[key.KeyHash] = key

	t.Run("valid key resolves and bumps usage", func(t *testing.T) {
		got, err := v.ValidateOrgKey(context.Background(), cred)
		if err != nil {
			t.Fatalf("ValidateOrgKey() error = %v", err)
		}
		if got == nil || got.ID != key.ID {
			t.Fatalf("got %+v, want key %s", got, key.ID)
		}
		if store.touched != 1 {
			t.Errorf("touched = %d, want 1", store.touched)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		other, _ := license.GenerateOrgKey()
		got, err := v.ValidateOrgKey(context.Background(), other)
		if err != nil {
			t.Fatalf("ValidateOrgKey() error = %v", err)
		}
		if got != nil {
			t.Error("unknown key resolved")
		}
	})

	t.Run("malformed key", func(t *testing.T) {
		for _, bad := range []string{"", "org_short", "agent_" + cred[4:], cred + "ff"} {
			got, err := v.ValidateOrgKey(context.Background(), bad)
			if err != nil {
				t.Fatalf("ValidateOrgKey(%q) error = %v", bad, err)
			}
			if got != nil {
				t.Errorf("malformed key %q resolved", bad)
			}
		}
	})

	t.Run("inactive key", func(t *testing.T) {
		key.IsActive = false
		defer func() { key.IsActive = true }()

		got, err := v.ValidateOrgKey(context.Background(), cred)
		if err != nil {
			t.Fatalf("ValidateOrgKey() error = %v", err)
		}
		if got != nil {
			t.Error("inactive key resolved")
		}
	})

	t.Run("expired key", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		key.ExpiresAt = &past
		defer func() { key.ExpiresAt = nil }()

		got, err := v.ValidateOrgKey(context.Background(), cred)
		if err != nil {
			t.Fatalf("ValidateOrgKey() error = %v", err)
		}
		if got != nil {
			t.Error("expired key resolved")
		}
	})
}

func TestValidateAgentCredential(t *testing.T) {
	store := newMockKeyStore()
	v := testValidator(store)

	cred, err := license.GenerateAgentCredential()
	if err != nil {
		t.Fatalf("GenerateAgentCredential() error = %v", err)
	}
	agent := models.NewAgent(uuid.New(), "web-01", "linux")
	agent.CredentialHash = license.HashCredential(cred)
	store.agents[agent.CredentialHash] = agent

	t.Run("valid credential", func(t *testing.T) {
		got, err := v.ValidateAgentCredential(context.Background(), cred)
		if err != nil {
			t.Fatalf("ValidateAgentCredential() error = %v", err)
		}
		if got == nil || got.ID != agent.ID {
			t.Fatalf("got %+v, want agent %s", got, agent.ID)
		}
	})

	t.Run("revoked agent", func(t *testing.T) {
		agent.Status = models.AgentStatusRevoked
		defer func() { agent.Status = models.AgentStatusActive }()

		got, err := v.ValidateAgentCredential(context.Background(), cred)
		if err != nil {
			t.Fatalf("ValidateAgentCredential() error = %v", err)
		}
		if got != nil {
			t.Error("revoked credential resolved")
		}
	})

	t.Run("org key prefix rejected", func(t *testing.T) {
		got, err := v.ValidateAgentCredential(context.Background(), "org_"+cred[len("agent_"):])
		if err != nil {
			t.Fatalf("ValidateAgentCredential() error = %v", err)
		}
		if got != nil {
			t.Error("org-prefixed credential resolved as agent")
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid bearer", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "Bearer   abc123  ", "abc123"},
		{"empty header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBearerToken(tt.header); got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := tm.Issue("admin@example.com", "admin")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims, err := tm.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if claims.Subject != "admin@example.com" || claims.Role != "admin" {
			t.Errorf("claims = %+v", claims)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := tm.Issue("admin@example.com", "admin")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		other := NewTokenManager("different-secret", time.Hour)
		if _, err := other.Verify(token); err == nil {
			t.Error("Verify() accepted token signed with different secret")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		stale := NewTokenManager("test-secret", -time.Hour)
		token, err := stale.Issue("admin@example.com", "admin")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if _, err := stale.Verify(token); err == nil {
			t.Error("Verify() accepted expired token")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := tm.Verify("not.a.token"); err == nil {
			t.Error("Verify() accepted garbage")
		}
	})
}
