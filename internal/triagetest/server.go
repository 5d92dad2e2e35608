// Package triagetest provides an in-memory fake of the triage backend REST
// API for tests. It issues HS256 access tokens and an HTTP-only refresh
// cookie the way the real backend does.
package triagetest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// RefreshCookieName is the name of the long-lived refresh cookie.
const RefreshCookieName = "refresh_token"

type userRecord struct {
	user         sdk.User
	passwordHash []byte
}

type accessClaims struct {
	Role       string `json:"role,omitempty"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration

	key []byte

	mu          sync.Mutex
	users       map[uuid.UUID]*userRecord
	cases       []sdk.TriageCase
	refresh     map[string]uuid.UUID // refresh token → user ID
	generation  int
	failRefresh bool
	failLogout  bool
	calls       map[string]int
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		TokenTTL: 15 * time.Minute,
		key:      []byte("triagetest-signing-key"),
		users:    map[uuid.UUID]*userRecord{},
		refresh:  map[string]uuid.UUID{},
		calls:    map[string]int{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", s.handleMe)

		r.Get("/triage-cases/", s.handleListCases)
		r.Post("/triage-cases", s.handleCreateCase)
		r.Get("/triage-cases/{id}", s.handleGetCase)
		r.Put("/triage-cases/{id}", s.handleUpdateCase)
		r.Patch("/triage-cases/{id}/resolve", s.handleResolveCase)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/users/", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Get("/users/{id}", s.handleGetUser)
			r.Put("/users/{id}", s.handleUpdateUser)
		})
	})

	return r
}

// AddUser registers a user that can log in with password.
func (s *Server) AddUser(firstName, lastName, email, password string, role sdk.Role) sdk.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	user := sdk.User{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      role,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &userRecord{user: user, passwordHash: hash}
	return user
}

// AddCase stores a case, assigning an ID, patient ID, status and creation time when unset.
func (s *Server) AddCase(tc sdk.TriageCase) sdk.TriageCase {
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	if tc.PatientID == uuid.Nil {
		tc.PatientID = uuid.New()
	}
	if tc.Status == "" {
		tc.Status = sdk.StatusPending
	}
	if tc.DateCreated.IsZero() {
		tc.DateCreated = sdk.Timestamp{Time: time.Now().UTC()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, tc)
	return tc
}

// Case returns the server-side copy of a case.
func (s *Server) Case(id uuid.UUID) (sdk.TriageCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tc := range s.cases {
		if tc.ID == id {
			return tc, true
		}
	}
	return sdk.TriageCase{}, false
}

// IssueToken mints a valid access token for user without a login call.
func (s *Server) IssueToken(user sdk.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(user.ID, string(user.Role))
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// cookies stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// RevokeRefreshTokens invalidates every refresh cookie issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = map[string]uuid.UUID{}
}

// SetFailRefresh makes /auth/refresh answer 401 regardless of the cookie.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetFailLogout makes /auth/logout answer 500.
func (s *Server) SetFailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// Calls returns how many times the named endpoint was hit. Names are
// "login", "refresh", "logout", "me", "cases.list", "cases.get",
// "cases.create", "cases.update", "cases.resolve", "users.list",
// "users.get", "users.create" and "users.update".
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *Server) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *Server) mintLocked(userID uuid.UUID, role string) string {
	now := time.Now()
	claims := accessClaims{
		Role:       role,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) verify(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Generation != s.generation {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
