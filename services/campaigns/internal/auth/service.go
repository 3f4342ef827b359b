// Package auth signs administrators in with a password or a Firebase
// account and checks their session tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/communitycare/carefund/services/campaigns/internal/token"
	"github.com/communitycare/carefund/services/campaigns/pkg/identity"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Options configures the admin accounts.
type Options struct {
	Username     string
	PasswordHash string // bcrypt
	Password     string // plaintext, hashed at startup when PasswordHash is empty
	Emails       []string
	TokenTTL     time.Duration
}

// Service handles admin authentication.
type Service struct {
	tokens       *token.Service
	username     string
	passwordHash string
	emails       map[string]bool
	ttl          time.Duration
}

// New creates an auth service.
func New(tokens *token.Service, opts Options) (*Service, error) {
	s := &Service{
		tokens:       tokens,
		username:     opts.Username,
		passwordHash: opts.PasswordHash,
		emails:       make(map[string]bool),
		ttl:          opts.TokenTTL,
	}
	if s.ttl <= 0 {
		s.ttl = 12 * time.Hour
	}
	if s.passwordHash == "" && opts.Password != "" {
		hash, err := HashPassword(opts.Password)
		if err != nil {
			return nil, err
		}
		s.passwordHash = hash
		log.Println("auth: using plaintext ADMIN_PASSWORD; set ADMIN_PASSWORD_HASH in production")
	}
	for _, e := range opts.Emails {
		s.emails[identity.NormalizeEmail(e)] = true
	}
	return s, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// TTL is how long issued sessions last.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// PasswordEnabled reports whether password sign-in is configured.
func (s *Service) PasswordEnabled() bool {
	return s.passwordHash != ""
}

// FirebaseEnabled reports whether Firebase sign-in is configured.
func (s *Service) FirebaseEnabled() bool {
	return s.tokens.FirebaseEnabled() && len(s.emails) > 0
}

// Login checks the admin username and password and returns a session token.
func (s *Service) Login(username, password string) (string, error) {
	if !s.PasswordEnabled() {
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	if err := CheckPassword(password, s.passwordHash); err != nil || !userOK {
		return "", ErrInvalidCredentials
	}
	return s.issue(s.username, "")
}

// LoginFirebase verifies a Firebase ID token whose email is on the admin
// allowlist and returns a session token.
func (s *Service) LoginFirebase(ctx context.Context, idToken string) (string, error) {
	if !s.FirebaseEnabled() {
		return "", ErrInvalidCredentials
	}
	fbToken, err := s.tokens.ValidateFirebaseToken(ctx, idToken)
	if err != nil {
		log.Printf("auth: %v", err)
		return "", ErrInvalidCredentials
	}

	email, _ := fbToken.Claims["email"].(string)
	if verified, _ := fbToken.Claims["email_verified"].(bool); !verified || email == "" {
		return "", ErrNotAdmin
	}
	email = identity.NormalizeEmail(email)
	if !s.emails[email] {
		log.Printf("auth: firebase user %s is not on the admin list", fbToken.UID)
		return "", ErrNotAdmin
	}
	return s.issue(fbToken.UID, email)
}

func (s *Service) issue(userID, email string) (string, error) {
	tok, err := s.tokens.GenerateToken(userID, email, []string{token.RoleAdmin}, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tok, nil
}

// Authenticate validates a session token and requires the admin role.
func (s *Service) Authenticate(tokenString string) (*token.Claims, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !claims.HasRole(token.RoleAdmin) {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
