package triagetest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

type principalKey struct{}

type principal struct {
	userID uuid.UUID
	role   sdk.Role
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := s.verify(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		rec, ok := s.users[userID]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal{userID: userID, role: rec.user.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := r.Context().Value(principalKey{}).(principal)
		if p.role != sdk.RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.count("login")
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	s.mu.Lock()
	var rec *userRecord
	for _, candidate := range s.users {
		if strings.EqualFold(candidate.user.Email, req.Email) {
			rec = candidate
			break
		}
	}
	s.mu.Unlock()

	if rec == nil || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refresh[refreshToken] = rec.user.ID
	access := s.mintLocked(rec.user.ID, string(rec.user.Role))
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		Expires:  time.Now().Add(7 * 24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.count("refresh")
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[cookie.Value]
	if s.failRefresh || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
		return
	}
	// Refreshed tokens carry no role claim, as on the real backend.
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.mintLocked(userID, ""), "token_type": "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.count("logout")
	s.mu.Lock()
	fail := s.failLogout
	if !fail {
		if cookie, err := r.Cookie(RefreshCookieName); err == nil {
			delete(s.refresh, cookie.Value)
		}
	}
	s.mu.Unlock()

	if fail {
		writeDetail(w, http.StatusInternalServerError, "logout failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.count("me")
	p := r.Context().Value(principalKey{}).(principal)
	s.mu.Lock()
	user := s.users[p.userID].user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	s.count("cases.list")
	s.mu.Lock()
	cases := append([]sdk.TriageCase(nil), s.cases...)
	s.mu.Unlock()
	if cases == nil {
		cases = []sdk.TriageCase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases, "count": len(cases)})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	s.count("cases.get")
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	tc, found := s.Case(id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Triage case not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	s.count("cases.create")
	var input sdk.CaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.PatientID == uuid.Nil || input.Transcript == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "patientID and transcript are required")
		return
	}
	p := r.Context().Value(principalKey{}).(principal)
	creator := p.userID
	tc := s.AddCase(sdk.TriageCase{
		PatientID:    input.PatientID,
		Transcript:   input.Transcript,
		AIConfidence: input.AIConfidence,
		AISummary:    input.AISummary,
		AIUrgency:    input.AIUrgency,
		CreatedBy:    &creator,
	})
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	s.count("cases.update")
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if status, ok := changes["status"].(string); ok && strings.EqualFold(status, string(sdk.StatusResolved)) {
		writeDetail(w, http.StatusForbidden, "Triage case cannot be resolved through generic update")
		return
	}
	if _, ok := changes["resolutionReason"]; ok {
		writeDetail(w, http.StatusForbidden, "Triage case cannot be resolved through generic update")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Triage case not found")
		return
	}
	updated, err := overlay(s.cases[idx], changes)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.cases[idx] = updated
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleResolveCase(w http.ResponseWriter, r *http.Request) {
	s.count("cases.resolve")
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		ResolutionReason string `json:"resolutionReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ResolutionReason) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "resolutionReason is required")
		return
	}
	p := r.Context().Value(principalKey{}).(principal)

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Triage case not found")
		return
	}
	resolver := p.userID
	tc := s.cases[idx]
	tc.Status = sdk.StatusResolved
	tc.ResolutionReason = req.ResolutionReason
	tc.ResolvedBy = &resolver
	tc.ResolvedByEmail = s.users[p.userID].user.Email
	tc.ResolutionTimestamp = &sdk.Timestamp{Time: time.Now().UTC()}
	s.cases[idx] = tc
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.count("users.list")
	s.mu.Lock()
	users := make([]sdk.User, 0, len(s.users))
	for _, rec := range s.users {
		users = append(users, rec.user)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": users, "count": len(users)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.count("users.get")
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	rec, found := s.users[id]
	s.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, rec.user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	s.count("users.create")
	var input sdk.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Email == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if strings.EqualFold(rec.user.Email, input.Email) {
			writeDetail(w, http.StatusConflict, "User with this email already exists")
			return
		}
	}
	user := sdk.User{
		ID:        uuid.New(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Role:      sdk.Role(strings.ToLower(string(input.Role))),
	}
	s.users[user.ID] = &userRecord{user: user}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	s.count("users.update")
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.users[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if email, ok := changes["email"].(string); ok {
		for otherID, other := range s.users {
			if otherID != id && strings.EqualFold(other.user.Email, email) {
				writeDetail(w, http.StatusConflict, "User with this email already exists")
				return
			}
		}
	}
	updated, err := overlay(rec.user, changes)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	updated.ID = id
	rec.user = updated
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) indexLocked(id uuid.UUID) int {
	for i, tc := range s.cases {
		if tc.ID == id {
			return i
		}
	}
	return -1
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// overlay applies a JSON partial update onto v by merging field maps.
func overlay[T any](v T, changes map[string]any) (T, error) {
	var zero T
	raw, err := json.Marshal(v)
	if err != nil {
		return zero, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, err
	}
	for k, val := range changes {
		fields[k] = val
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, err
	}
	return out, nil
}
