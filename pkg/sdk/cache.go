package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// CaseRepository is the remote side of the CaseCache. *CaseClient implements it.
type CaseRepository interface {
	ListCases(ctx context.Context) ([]TriageCase, error)
	GetCase(ctx context.Context, id uuid.UUID) (*TriageCase, error)
	CreateCase(ctx context.Context, input CaseInput) (*TriageCase, error)
	UpdateCase(ctx context.Context, id uuid.UUID, changes Changes) (*TriageCase, error)
	ResolveCase(ctx context.Context, id uuid.UUID, reason string) (*TriageCase, error)
}

// CaseCache is the client-side mirror of the case collection.
//
// The collection keeps the order of the last full fetch; single-case results
// replace the cached entity in place. A failed call never touches the
// collection. Mutations are not serialized against each other: when two
// updates of the same case are in flight, whichever response arrives last is
// what the cache holds.
type CaseCache struct {
	repo   CaseRepository
	logger *slog.Logger

	mu       sync.RWMutex
	cases    []TriageCase
	inflight int
	lastErr  error
}

// NewCaseCache creates an empty cache over repo.
func NewCaseCache(repo CaseRepository, logger *slog.Logger) *CaseCache {
	if logger == nil {
		logger = discardLogger
	}
	return &CaseCache{repo: repo, logger: logger}
}

// FetchAll replaces the whole collection with the server's list. On failure the
// previous collection is kept and the error is recorded and returned.
func (c *CaseCache) FetchAll(ctx context.Context) ([]TriageCase, error) {
	c.begin()
	cases, err := c.repo.ListCases(ctx)
	if err != nil {
		c.end(err)
		return nil, err
	}

	fresh := append([]TriageCase(nil), cases...)
	c.mu.Lock()
	c.cases = fresh
	c.mu.Unlock()
	c.end(nil)

	c.logger.Debug("case cache refreshed", "count", len(fresh))
	return copyCases(fresh), nil
}

// Refresh re-fetches one case and replaces it in the collection.
func (c *CaseCache) Refresh(ctx context.Context, id uuid.UUID) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, c.reject(invalidArgument("case ID is required"))
	}
	c.begin()
	fetched, err := c.repo.GetCase(ctx, id)
	if err != nil {
		c.end(err)
		return nil, err
	}
	c.replace(*fetched)
	c.end(nil)
	return fetched, nil
}

// Create creates a case and appends it to the collection.
func (c *CaseCache) Create(ctx context.Context, input CaseInput) (*TriageCase, error) {
	if input.IsZero() {
		return nil, c.reject(invalidArgument("case data is required"))
	}
	c.begin()
	created, err := c.repo.CreateCase(ctx, input)
	if err != nil {
		c.end(err)
		return nil, err
	}
	c.mu.Lock()
	c.cases = append(c.cases, *created)
	c.mu.Unlock()
	c.end(nil)
	return created, nil
}

// Update sends changes for one case and replaces the cached entity with the
// server's full response. Resolution fields are rejected here; use Resolve.
func (c *CaseCache) Update(ctx context.Context, id uuid.UUID, changes Changes) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, c.reject(invalidArgument("case ID is required"))
	}
	if len(changes) == 0 {
		return nil, c.reject(invalidArgument("no changes to apply"))
	}
	if _, ok := changes["resolutionReason"]; ok {
		return nil, c.reject(invalidArgument("cases can only be resolved through Resolve"))
	}
	if status, ok := changes["status"]; ok && fmt.Sprint(status) == string(StatusResolved) {
		return nil, c.reject(invalidArgument("cases can only be resolved through Resolve"))
	}

	c.begin()
	updated, err := c.repo.UpdateCase(ctx, id, changes)
	if err != nil {
		c.end(err)
		return nil, err
	}
	c.replace(*updated)
	c.end(nil)
	return updated, nil
}

// Resolve moves a case to resolved with the given reason. The server's
// response is stored as-is.
func (c *CaseCache) Resolve(ctx context.Context, id uuid.UUID, reason string) (*TriageCase, error) {
	if id == uuid.Nil {
		return nil, c.reject(invalidArgument("case ID is required"))
	}
	if strings.TrimSpace(reason) == "" {
		return nil, c.reject(invalidArgument("resolution reason is required"))
	}
	if cached, ok := c.Get(id); ok && cached.IsResolved() {
		return nil, c.reject(fmt.Errorf("case %s: %w", id, ErrAlreadyResolved))
	}

	c.begin()
	resolved, err := c.repo.ResolveCase(ctx, id, reason)
	if err != nil {
		c.end(err)
		return nil, err
	}
	c.replace(*resolved)
	c.end(nil)
	return resolved, nil
}

// Cases returns a copy of the whole collection in cache order.
func (c *CaseCache) Cases() []TriageCase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyCases(c.cases)
}

// Unresolved returns the cached cases whose status is not resolved.
func (c *CaseCache) Unresolved() []TriageCase {
	return c.filter(func(tc TriageCase) bool { return !tc.IsResolved() })
}

// Resolved returns the cached cases whose status is resolved.
func (c *CaseCache) Resolved() []TriageCase {
	return c.filter(TriageCase.IsResolved)
}

// Get returns the cached copy of one case.
func (c *CaseCache) Get(id uuid.UUID) (TriageCase, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, tc := range c.cases {
		if tc.ID == id {
			return tc, true
		}
	}
	return TriageCase{}, false
}

// Len returns the number of cached cases.
func (c *CaseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cases)
}

// Loading reports whether a backend call is in flight.
func (c *CaseCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Err returns the error of the most recent failed operation, cleared by the
// next successful one.
func (c *CaseCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// replace swaps the cached entity with the same ID, or appends it when the
// collection does not hold it yet.
func (c *CaseCache) replace(tc TriageCase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cases {
		if c.cases[i].ID == tc.ID {
			c.cases[i] = tc
			c.logger.Debug("case replaced", "case_id", tc.ID, "status", tc.Status)
			return
		}
	}
	c.cases = append(c.cases, tc)
	c.logger.Debug("case appended", "case_id", tc.ID, "status", tc.Status)
}

func (c *CaseCache) filter(keep func(TriageCase) bool) []TriageCase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TriageCase, 0, len(c.cases))
	for _, tc := range c.cases {
		if keep(tc) {
			out = append(out, tc)
		}
	}
	return out
}

func (c *CaseCache) begin() {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
}

func (c *CaseCache) end(err error) {
	c.mu.Lock()
	c.inflight--
	c.lastErr = err
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("case cache operation failed", "error", err)
	}
}

func (c *CaseCache) reject(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func copyCases(cases []TriageCase) []TriageCase {
	out := make([]TriageCase, len(cases))
	copy(out, cases)
	return out
}
