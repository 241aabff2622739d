package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

const tokenIssuer = "warden"

// RoleAdmin is the role claim required on administrative routes.
const RoleAdmin = "admin"

// AdminClaims carries the identity of an administrative caller.
type AdminClaims struct {
	Subject string
	Role    string
}

// TokenManager issues and verifies HS256-signed admin bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a TokenManager with the given signing secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for an administrative subject.
func (tm *TokenManager) Issue(subject, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  tokenIssuer,
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(tm.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the admin claims.
func (tm *TokenManager) Verify(tokenString string) (*AdminClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if subject == "" {
		return nil, ErrInvalidToken
	}
	return &AdminClaims{Subject: subject, Role: role}, nil
}
