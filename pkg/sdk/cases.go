package sdk

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const casesPath = "triage-cases"

// CaseClient wraps the triage case endpoints. It is stateless and does not
// catch errors; see CaseCache for the client-side mirror.
type CaseClient struct {
	api API
}

// NewCaseClient creates a CaseClient on top of api, normally a *Session.
func NewCaseClient(api API) *CaseClient {
	return &CaseClient{api: api}
}

type caseList struct {
	Cases []TriageCase `json:"cases"`
	Count int          `json:"count"`
}

type resolveRequest struct {
	ResolutionReason string `json:"resolutionReason"`
}

// ListCases returns every case visible to the caller.
func (c *CaseClient) ListCases(ctx context.Context) ([]TriageCase, error) {
	var out caseList
	if err := c.api.Do(ctx, http.MethodGet, casesPath+"/", nil, &out); err != nil {
		return nil, err
	}
	if out.Cases == nil {
		return []TriageCase{}, nil
	}
	return out.Cases, nil
}

// GetCase fetches a single case.
func (c *CaseClient) GetCase(ctx context.Context, id uuid.UUID) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("case ID is required")
	}
	var out TriageCase
	if err := c.api.Do(ctx, http.MethodGet, casesPath+"/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCase creates a case; the server assigns its ID.
func (c *CaseClient) CreateCase(ctx context.Context, input CaseInput) (*TriageCase, error) {
	var out TriageCase
	if err := c.api.Do(ctx, http.MethodPost, casesPath, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCase sends a partial update and returns the full updated case.
func (c *CaseClient) UpdateCase(ctx context.Context, id uuid.UUID, changes Changes) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("case ID is required")
	}
	var out TriageCase
	if err := c.api.Do(ctx, http.MethodPut, casesPath+"/"+id.String(), changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveCase moves a case to resolved. The server records the resolving user
// from the credential and rejects a missing reason.
func (c *CaseClient) ResolveCase(ctx context.Context, id uuid.UUID, reason string) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, invalidArgument("case ID is required")
	}
	var out TriageCase
	body := resolveRequest{ResolutionReason: strings.TrimSpace(reason)}
	if err := c.api.Do(ctx, http.MethodPatch, casesPath+"/"+id.String()+"/resolve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
