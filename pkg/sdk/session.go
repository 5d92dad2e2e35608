package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// State is the authentication state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateRestoring
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session owns the access credential and the authenticated identity for one
// application lifetime. Construct one per process and pass it to the
// repository clients; nothing else mutates its credential store.
type Session struct {
	store     *CredentialStore
	transport *Transport
	ambient   *restClient // cookie jar, no bearer, never renewed
	api       *restClient // Session Transport
	logger    *slog.Logger

	mu       sync.RWMutex
	state    State
	user     *User
	epoch    uint64 // bumped by Login and Logout so a late restore cannot overwrite them
	restored bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewSession creates an unauthenticated session against the backend at baseURL.
func NewSession(baseURL string, optFns ...ClientOption) (*Session, error) {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", baseURL)
	}

	var base http.RoundTripper
	jar := opts.CookieJar
	timeout := opts.Timeout
	if opts.HTTPClient != nil {
		base = opts.HTTPClient.Transport
		if jar == nil {
			jar = opts.HTTPClient.Jar
		}
		if timeout == 0 {
			timeout = opts.HTTPClient.Timeout
		}
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger
	}

	trimmed := strings.TrimRight(baseURL, "/")
	s := &Session{
		store:  NewCredentialStore(),
		logger: logger,
		ready:  make(chan struct{}),
	}
	s.transport = &Transport{
		Base:          base,
		Store:         s.store,
		Renew:         s.refresh,
		OnRenewFailed: s.expire,
		RenewTimeout:  timeout,
		Logger:        logger,
	}
	s.ambient = &restClient{
		baseURL: trimmed,
		http:    &http.Client{Transport: base, Jar: jar, Timeout: timeout},
		logger:  logger,
	}
	s.api = &restClient{
		baseURL: trimmed,
		http:    &http.Client{Transport: s.transport, Timeout: timeout},
		logger:  logger,
	}
	return s, nil
}

// Do implements API through the Session Transport.
func (s *Session) Do(ctx context.Context, method, path string, in, out any) error {
	return s.api.do(ctx, method, strings.TrimLeft(path, "/"), in, out)
}

// HTTPClient returns a client that attaches and renews the session credential.
func (s *Session) HTTPClient() *http.Client {
	return s.api.http
}

// Restore attempts to resume a prior session once per Session lifetime.
// With a held credential it loads the identity; without one it tries a silent
// refresh first. Any failure leaves the session unauthenticated and is not
// reported: having no prior session is the normal case.
// Calls after the first wait for it to finish and return the resulting state.
func (s *Session) Restore(ctx context.Context) State {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
		}
		return s.State()
	}
	s.restored = true
	if s.state == StateAuthenticated {
		s.mu.Unlock()
		s.markReady()
		return StateAuthenticated
	}
	s.state = StateRestoring
	epoch := s.epoch
	s.mu.Unlock()

	creds, user, err := s.restore(ctx)

	s.mu.Lock()
	if s.epoch == epoch {
		if err != nil {
			s.logger.Debug("no session restored", "error", err)
			s.store.Clear()
			s.user = nil
			s.state = StateUnauthenticated
		} else {
			s.logger.Debug("session restored", "user", user.Email)
			if creds != nil {
				s.store.Set(creds)
			}
			s.user = user
			s.state = StateAuthenticated
		}
	} else {
		s.logger.Debug("discarding restore result; session changed while restoring")
	}
	state := s.state
	s.mu.Unlock()

	s.markReady()
	return state
}

// restore resolves the identity for a prior session without committing
// anything. When no credential is held it refreshes one and returns it; the
// caller stores it only if no Login or Logout happened meanwhile.
func (s *Session) restore(ctx context.Context) (*Credentials, *User, error) {
	if s.store.Get() != nil {
		user, err := s.fetchIdentity(ctx)
		return nil, user, err
	}
	creds, err := s.refresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.fetchIdentityWith(ctx, creds)
	if err != nil {
		return nil, nil, err
	}
	return creds, user, nil
}

// Login authenticates with email and password. On failure nothing changes;
// invalid credentials are reported as ErrInvalidCredentials.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalidArgument("email is required")
	}
	if password == "" {
		return nil, invalidArgument("password is required")
	}

	creds, err := s.login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := s.fetchIdentityWith(ctx, creds)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.epoch++
	s.store.Set(creds)
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()
	s.markReady()

	s.logger.Debug("logged in", "user", user.Email, "role", user.Role)
	cp := *user
	return &cp, nil
}

// Logout revokes the refresh cookie on a best-effort basis and always clears
// the local credential and identity. The returned error only reports the
// backend call; the session is unauthenticated either way.
func (s *Session) Logout(ctx context.Context) error {
	err := s.revoke(ctx)
	if err != nil {
		s.logger.Warn("backend logout failed; clearing local session anyway", "error", err)
	}

	s.mu.Lock()
	s.epoch++
	s.store.Clear()
	s.user = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()
	s.markReady()

	return err
}

// expire is called by the transport after a renewal failed and the failing
// credential was cleared. A credential present by the time the lock is held
// was committed by a later Login and is left alone.
func (s *Session) expire(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.Get() != nil {
		return
	}
	if s.user != nil {
		s.logger.Info("session expired", "user", s.user.Email, "error", err)
	}
	s.user = nil
	if s.state == StateAuthenticated {
		s.state = StateUnauthenticated
	}
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether the first state resolution has not completed yet.
func (s *Session) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

// Ready is closed once the first restore, login or logout completes.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Identity returns a copy of the authenticated user.
func (s *Session) Identity() (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	cp := *s.user
	return &cp, true
}

// Role returns the authenticated user's role, or "" when unauthenticated.
func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

// Credentials returns a copy of the held access credential, or nil.
func (s *Session) Credentials() *Credentials {
	return s.store.Get()
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
