// Package license implements license key generation, entitlement resolution,
// machine binding and the validation decision chain.
package license

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// keyAlphabet excludes visually ambiguous characters (0, O, 1, I, L).
const keyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	keyGroups    = 5
	keyGroupSize = 4
)

// Credential prefixes identify the kind of secret at a glance.
const (
	OrgKeyPrefix        = "org_"
	AgentCredPrefix     = "agent_"
	WebhookSecretPrefix = "whsec_"
)

// KeyPattern matches the wire format of a license key. Keys that do not
// match are treated the same as unknown keys.
var KeyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// GenerateKey returns a new license key of five dash-separated groups of
// four characters. Entropy failure is fatal for the process.
func GenerateKey() (string, error) {
	raw := make([]byte, keyGroups*keyGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate license key: %w", err)
	}

	groups := make([]string, keyGroups)
	for g := 0; g < keyGroups; g++ {
		chars := make([]byte, keyGroupSize)
		for i := 0; i < keyGroupSize; i++ {
			chars[i] = keyAlphabet[int(raw[g*keyGroupSize+i])%len(keyAlphabet)]
		}
		groups[g] = string(chars)
	}
	return strings.Join(groups, "-"), nil
}

// IsWellFormedKey reports whether the key matches the wire format.
func IsWellFormedKey(key string) bool {
	return KeyPattern.MatchString(key)
}

// GenerateCredential returns a new service credential with the given prefix
// followed by 64 hex characters of random material.
func GenerateCredential(prefix string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	return prefix + hex.EncodeToString(raw), nil
}

// GenerateOrgKey returns a new organization API key.
func GenerateOrgKey() (string, error) {
	return GenerateCredential(OrgKeyPrefix)
}

// GenerateAgentCredential returns a new agent credential.
func GenerateAgentCredential() (string, error) {
	return GenerateCredential(AgentCredPrefix)
}

// GenerateWebhookSecret returns a new webhook shared secret.
func GenerateWebhookSecret() (string, error) {
	return GenerateCredential(WebhookSecretPrefix)
}

// HashCredential returns the hex-encoded SHA-256 digest of a credential.
// Only the hash is stored server-side.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// CredentialMatches compares a presented credential against a stored hash in
// constant time.
func CredentialMatches(credential, storedHash string) bool {
	presented := HashCredential(credential)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
