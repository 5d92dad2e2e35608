package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/auth"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// ErrNotLoggedIn is returned when no session could be restored.
var ErrNotLoggedIn = fmt.Errorf("%w: please run `triagectl auth login`", sdk.ErrNotAuthenticated)

// Provider lazily builds the session and SDK clients shared by one triagectl run.
type Provider struct {
	serverURL  string
	timeout    time.Duration
	logger     *slog.Logger
	cookiePath string // overrides ~/.triage/cookies.json (for testing)

	sessionOnce sync.Once
	session     *sdk.Session
	jar         *auth.FileJar
	sessionErr  error

	guardOnce sync.Once
	guard     *guard.Guard
	guardErr  error

	cacheOnce sync.Once
	cache     *sdk.CaseCache
}

// NewProvider constructs a new Provider bound to the given server URL.
func NewProvider(serverURL string, timeout time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{serverURL: serverURL, timeout: timeout, logger: logger}
}

// SetCookiePath stores the refresh cookie somewhere other than the home directory.
func (p *Provider) SetCookiePath(path string) {
	p.cookiePath = path
}

// Session returns the process-wide session without restoring it.
func (p *Provider) Session() (*sdk.Session, error) {
	p.sessionOnce.Do(func() {
		path := p.cookiePath
		if path == "" {
			var err error
			if path, err = auth.DefaultCookiePath(); err != nil {
				p.sessionErr = err
				return
			}
		}
		jar, err := auth.NewFileJar(path)
		if err != nil {
			p.sessionErr = fmt.Errorf("failed to load saved session: %w", err)
			return
		}
		session, err := sdk.NewSession(p.serverURL,
			sdk.WithCookieJar(jar),
			sdk.WithTimeout(p.timeout),
			sdk.WithLogger(p.logger),
		)
		if err != nil {
			p.sessionErr = err
			return
		}
		p.jar = jar
		p.session = session
	})
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	return p.session, nil
}

// Jar returns the persistent cookie jar behind the session.
func (p *Provider) Jar() (*auth.FileJar, error) {
	if _, err := p.Session(); err != nil {
		return nil, err
	}
	return p.jar, nil
}

// Authenticated restores the saved session and fails when there is none.
func (p *Provider) Authenticated(ctx context.Context) (*sdk.Session, error) {
	session, err := p.Session()
	if err != nil {
		return nil, err
	}
	if session.Restore(ctx) != sdk.StateAuthenticated {
		return nil, ErrNotLoggedIn
	}
	return session, nil
}

// Authorize restores the session and checks that the signed-in role may
// perform act on obj.
func (p *Provider) Authorize(ctx context.Context, obj, act string) (*sdk.Session, error) {
	session, err := p.Authenticated(ctx)
	if err != nil {
		return nil, err
	}
	p.guardOnce.Do(func() {
		p.guard, p.guardErr = guard.New()
	})
	if p.guardErr != nil {
		return nil, p.guardErr
	}
	if err := p.guard.Check(session.Role(), obj, act); err != nil {
		return nil, err
	}
	return session, nil
}

// Cases returns the case cache once the role may perform act on cases.
func (p *Provider) Cases(ctx context.Context, act string) (*sdk.CaseCache, error) {
	session, err := p.Authorize(ctx, guard.ObjectCases, act)
	if err != nil {
		return nil, err
	}
	p.cacheOnce.Do(func() {
		p.cache = sdk.NewCaseCache(sdk.NewCaseClient(session), p.logger)
	})
	return p.cache, nil
}

// Users returns the user administration client once the role may perform act
// on users.
func (p *Provider) Users(ctx context.Context, act string) (*sdk.UserClient, error) {
	session, err := p.Authorize(ctx, guard.ObjectUsers, act)
	if err != nil {
		return nil, err
	}
	return sdk.NewUserClient(session), nil
}

// Persist writes the jar back to disk. The file is removed once the backend
// has expired every cookie in it. A failed restore keeps the file, so a
// transient network error does not sign the user out.
func (p *Provider) Persist() error {
	if p.jar == nil {
		return nil
	}
	return p.jar.Save()
}
