package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RenewFunc obtains a fresh access credential from the backend's refresh
// endpoint using whatever long-lived credential the caller holds (usually a cookie).
type RenewFunc func(ctx context.Context) (*Credentials, error)

type renewedKey struct{}

type noRenewKey struct{}

// withRenewed tags a request context as already renewed once. A 401 on a
// tagged request is returned to the caller instead of triggering another renewal.
func withRenewed(ctx context.Context) context.Context {
	return context.WithValue(ctx, renewedKey{}, true)
}

func isRenewed(ctx context.Context) bool {
	v, _ := ctx.Value(renewedKey{}).(bool)
	return v
}

// WithoutRenewal exempts requests made with ctx from the renew-and-replay
// sequence. The session uses it for its own auth endpoints.
func WithoutRenewal(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRenewKey{}, true)
}

func renewalDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRenewKey{}).(bool)
	return v
}

// Transport attaches the stored access credential to outgoing requests and
// performs at most one renewal and one replay per request on a 401 response.
type Transport struct {
	// Base is the underlying transport. http.DefaultTransport is used when nil.
	Base http.RoundTripper
	// Store supplies the credential to attach and receives the renewed one.
	Store *CredentialStore
	// Renew is called on the first 401 of a request. Nil disables renewal.
	Renew RenewFunc
	// OnRenewFailed is called after a failed renewal has cleared the store.
	// It is not called when a newer credential was stored in the meantime.
	OnRenewFailed func(error)
	// RenewTimeout bounds the shared refresh call. Zero means no bound beyond
	// the Renew function's own client.
	RenewTimeout time.Duration
	Logger       *slog.Logger

	renewals singleflight.Group
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sent, gen := t.Store.Snapshot()
	resp, err := t.send(req, sent)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	if resp.StatusCode != http.StatusUnauthorized || t.Renew == nil || isRenewed(ctx) || renewalDisabled(ctx) {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		t.logger().Debug("401 on request with non-rewindable body; not replaying", "method", req.Method, "url", req.URL.Redacted())
		return resp, nil
	}

	creds, renewErr := t.renew(ctx, gen)
	if renewErr != nil {
		if ctx.Err() != nil {
			drainAndClose(resp.Body)
			return nil, ctx.Err()
		}
		t.logger().Debug("credential renewal failed", "error", renewErr)
		// A credential written since this request was sent belongs to a newer
		// login or renewal and must survive.
		if t.Store.ClearIf(gen) && t.OnRenewFailed != nil {
			t.OnRenewFailed(renewErr)
		}
		return resp, nil
	}

	drainAndClose(resp.Body)

	replay := req.Clone(withRenewed(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		replay.Body = body
	}

	t.logger().Debug("replaying request with renewed credential", "method", req.Method, "url", req.URL.Redacted())
	return t.send(replay, creds)
}

// renew collapses concurrent renewals into a single refresh call. The refresh
// runs detached from the caller's cancellation, bounded by RenewTimeout, so one
// abandoned request cannot fail the renewal for the others waiting on it.
// The result is stored only if the store is still at generation gen; otherwise
// the replay uses whatever credential the store now holds.
func (t *Transport) renew(ctx context.Context, gen uint64) (*Credentials, error) {
	ch := t.renewals.DoChan("renew", func() (any, error) {
		rctx := context.WithoutCancel(ctx)
		if t.RenewTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, t.RenewTimeout)
			defer cancel()
		}
		creds, err := t.Renew(rctx)
		if err != nil {
			return nil, err
		}
		if creds == nil || creds.AccessToken == "" {
			return nil, errors.New("refresh returned an empty access token")
		}
		if !t.Store.SetIf(gen, creds) {
			t.logger().Debug("credential changed during renewal; keeping the newer one")
		}
		return creds, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			t.logger().Debug("joined in-flight credential renewal")
		}
		creds := res.Val.(*Credentials)
		if current, now := t.Store.Snapshot(); now != gen && current != nil && current.AccessToken != creds.AccessToken {
			return current, nil
		}
		return creds, nil
	}
}

func (t *Transport) send(req *http.Request, creds *Credentials) (*http.Response, error) {
	if creds == nil || creds.AccessToken == "" {
		return t.base().RoundTrip(req)
	}
	bearer := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   "Bearer",
		}),
		Base: t.base(),
	}
	return bearer.RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return discardLogger
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
