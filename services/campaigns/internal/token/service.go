// Package token issues and validates the signed session tokens carried by
// admin requests.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin grants access to the review panel.
const RoleAdmin = "admin"

// IDTokenVerifier checks Firebase ID tokens. *auth.Client implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Service handles JWT generation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	verifier   IDTokenVerifier
}

// Claims are the session token claims.
type Claims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SessionInfo describes the caller's session.
type SessionInfo struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// New creates a token service. verifier may be nil when Firebase sign-in
// is not configured.
func New(signingKey string, issuer string, verifier IDTokenVerifier) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		verifier:   verifier,
	}
}

// GenerateSigningKey generates a random 256-bit key.
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken signs a token for an authenticated principal.
func (s *Service) GenerateToken(userID, email string, roles []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, expiry and issuer and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}

// Info summarises claims for the session endpoint.
func (c *Claims) Info() SessionInfo {
	info := SessionInfo{Valid: true, UserID: c.UserID, Email: c.Email, Roles: c.Roles}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info
}

// FirebaseEnabled reports whether ID tokens can be verified.
func (s *Service) FirebaseEnabled() bool {
	return s.verifier != nil
}

// ValidateFirebaseToken verifies a Firebase ID token.
func (s *Service) ValidateFirebaseToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("firebase sign-in is not configured")
	}
	token, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("invalid Firebase token: %w", err)
	}
	return token, nil
}
