package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Backend auth endpoints. The refresh cookie is set by /auth/login and read by
// /auth/refresh and /auth/logout; the client never inspects it.
const (
	loginPath   = "auth/login"
	refreshPath = "auth/refresh"
	logoutPath  = "auth/logout"
	mePath      = "auth/me"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// login exchanges email and password for an access credential. The ambient
// client's cookie jar keeps the refresh cookie from the response.
func (s *Session) login(ctx context.Context, email, password string) (*Credentials, error) {
	var out tokenResponse
	err := s.ambient.do(WithoutRenewal(ctx), http.MethodPost, loginPath, loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		switch StatusCode(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("login: response did not contain an access token")
	}
	return NewCredentials(out.AccessToken), nil
}

// refresh asks the backend for a new access credential using the refresh cookie.
func (s *Session) refresh(ctx context.Context) (*Credentials, error) {
	var out tokenResponse
	if err := s.ambient.do(WithoutRenewal(ctx), http.MethodPost, refreshPath, nil, &out); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("refresh: response did not contain an access token")
	}
	return NewCredentials(out.AccessToken), nil
}

// revoke tells the backend to drop the refresh cookie.
func (s *Session) revoke(ctx context.Context) error {
	if err := s.ambient.do(WithoutRenewal(ctx), http.MethodPost, logoutPath, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// fetchIdentity loads the current user through the authenticated client, so a
// stale credential gets one renewal attempt.
func (s *Session) fetchIdentity(ctx context.Context) (*User, error) {
	var user User
	if err := s.api.do(ctx, http.MethodGet, mePath, nil, &user); err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	return &user, nil
}

// fetchIdentityWith loads the current user with an explicit credential that is
// not yet stored. Used by Login so that nothing is committed until both calls succeed.
func (s *Session) fetchIdentityWith(ctx context.Context, creds *Credentials) (*User, error) {
	var user User
	err := s.ambient.doWithToken(WithoutRenewal(ctx), http.MethodGet, mePath, creds.AccessToken, nil, &user)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	return &user, nil
}
