package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const usersPath = "users"

// UserClient wraps the user administration endpoints. There is no cache:
// callers re-list after every mutation.
type UserClient struct {
	api API
}

// NewUserClient creates a UserClient on top of api, normally a *Session.
func NewUserClient(api API) *UserClient {
	return &UserClient{api: api}
}

// userList accepts both a bare array and the {"data": [...], "count": n} envelope.
type userList []User

func (l *userList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var users []User
		if err := json.Unmarshal(trimmed, &users); err != nil {
			return err
		}
		*l = users
		return nil
	}
	var envelope struct {
		Data []User `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	*l = envelope.Data
	return nil
}

// ListUsers returns all users. Admin only on the backend.
func (c *UserClient) ListUsers(ctx context.Context) ([]User, error) {
	var out userList
	if err := c.api.Do(ctx, http.MethodGet, usersPath+"/", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []User{}, nil
	}
	return out, nil
}

// GetUser fetches one user.
func (c *UserClient) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("user ID is required")
	}
	var out User
	if err := c.api.Do(ctx, http.MethodGet, usersPath+"/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser creates a user. A duplicate email yields an error matching
// ErrUserExists (and the underlying *APIError).
func (c *UserClient) CreateUser(ctx context.Context, input UserInput) (*User, error) {
	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" {
		return nil, invalidArgument("email is required")
	}
	if input.FirstName == "" || input.LastName == "" {
		return nil, invalidArgument("first and last name are required")
	}
	if !input.Role.Valid() {
		return nil, invalidArgument("unknown role %q", input.Role)
	}

	var out User
	if err := c.api.Do(ctx, http.MethodPost, usersPath, input, &out); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrUserExists, err)
		}
		return nil, err
	}
	return &out, nil
}

// UpdateUser sends the changed fields and returns the updated user.
func (c *UserClient) UpdateUser(ctx context.Context, id uuid.UUID, changes Changes) (*User, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("user ID is required")
	}
	if len(changes) == 0 {
		return nil, invalidArgument("no changes to apply")
	}
	body := make(Changes, len(changes))
	for k, v := range changes {
		body[k] = v
	}
	if raw, ok := body["role"]; ok {
		role, err := ParseRole(fmt.Sprint(raw))
		if err != nil {
			return nil, err
		}
		body["role"] = role
	}

	var out User
	if err := c.api.Do(ctx, http.MethodPut, usersPath+"/"+id.String(), body, &out); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrUserExists, err)
		}
		return nil, err
	}
	return &out, nil
}
