// Package middleware provides the HTTP middlewares shared by all routes.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iteksmart/warden/internal/auth"
	"github.com/iteksmart/warden/internal/models"
)

// Context keys for authenticated identities.
const (
	ContextKeyOrgID  = "org_id"
	ContextKeyAPIKey = "api_key"
	ContextKeyAgent  = "agent"
	ContextKeyAdmin  = "admin_subject"
)

// OrgKeyValidator resolves organization API keys.
type OrgKeyValidator interface {
	ValidateOrgKey(ctx context.Context, presented string) (*models.APIKey, error)
}

// AgentValidator resolves agent credentials.
type AgentValidator interface {
	ValidateAgentCredential(ctx context.Context, presented string) (*models.Agent, error)
}

// AdminVerifier verifies admin bearer tokens.
type AdminVerifier interface {
	Verify(token string) (*auth.AdminClaims, error)
}

// RequireOrgKey authenticates requests with an organization API key carrying
// the given scope. The resolved organization id and key are stored on the
// context.
func RequireOrgKey(validator OrgKeyValidator, scope models.APIKeyScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		key, err := validator.ValidateOrgKey(c.Request.Context(), presented)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if key == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if !key.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}

		c.Set(ContextKeyOrgID, key.OrgID)
		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// RequireAgent authenticates requests with an agent credential. The resolved
// agent is stored on the context.
func RequireAgent(validator AgentValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		agent, err := validator.ValidateAgentCredential(c.Request.Context(), presented)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if agent == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.Set(ContextKeyAgent, agent)
		c.Next()
	}
}

// RequireAdmin authenticates requests with an admin bearer token. Tokens
// minted with a lesser role verify but are rejected here.
func RequireAdmin(verifier AdminVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if claims.Role != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Set(ContextKeyAdmin, claims.Subject)
		c.Next()
	}
}

// OrgID returns the authenticated organization id from the context.
func OrgID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(ContextKeyOrgID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}

// Agent returns the authenticated agent from the context.
func Agent(c *gin.Context) (*models.Agent, bool) {
	val, ok := c.Get(ContextKeyAgent)
	if !ok {
		return nil, false
	}
	agent, ok := val.(*models.Agent)
	return agent, ok
}

// AdminSubject returns the authenticated admin subject from the context.
func AdminSubject(c *gin.Context) (string, bool) {
	val, ok := c.Get(ContextKeyAdmin)
	if !ok {
		return "", false
	}
	subject, ok := val.(string)
	return subject, ok
}
