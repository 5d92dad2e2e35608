package sdk

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials represents the short-lived access credential held by a Session.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     string    `json:"subject,omitempty"` // "sub" claim, the user ID
	Role        Role      `json:"role,omitempty"`    // "role" claim, absent on refreshed tokens
}

// NewCredentials wraps an access token returned by the backend. When the token
// is a JWT its claims are read without verification; verification is the
// server's job and the client only uses them for display and expiry hints.
func NewCredentials(accessToken string) *Credentials {
	creds := &Credentials{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return creds
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		creds.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		creds.Subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		creds.Role = Role(role)
	}
	return creds
}

// IsExpired reports whether the credential is past its expiry. A credential
// with unknown expiry is never considered expired.
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

// CredentialStore holds the current access credential in memory.
// It has no persistence: a new process always starts without a credential.
type CredentialStore struct {
	mu    sync.RWMutex
	creds *Credentials
	gen   uint64 // bumped by every write
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Set replaces the stored credential.
func (s *CredentialStore) Set(creds *Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(creds)
}

// Get returns a copy of the stored credential, or nil when none is held.
func (s *CredentialStore) Get() *Credentials {
	creds, _ := s.Snapshot()
	return creds
}

// Snapshot returns a copy of the stored credential together with the store
// generation it was read at. Pass the generation to SetIf or ClearIf to make a
// write conditional on nothing else having written in between.
func (s *CredentialStore) Snapshot() (*Credentials, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, s.gen
	}
	cp := *s.creds
	return &cp, s.gen
}

// Token returns the stored access token, or "" when none is held.
func (s *CredentialStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// SetIf stores creds only when the store is still at generation gen.
func (s *CredentialStore) SetIf(gen uint64, creds *Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.setLocked(creds)
	return true
}

// ClearIf drops the credential only when the store is still at generation gen.
func (s *CredentialStore) ClearIf(gen uint64) bool {
	return s.SetIf(gen, nil)
}

// Clear drops the stored credential.
func (s *CredentialStore) Clear() {
	s.Set(nil)
}

func (s *CredentialStore) setLocked(creds *Credentials) {
	s.gen++
	if creds == nil || creds.AccessToken == "" {
		s.creds = nil
		return
	}
	cp := *creds
	s.creds = &cp
}
