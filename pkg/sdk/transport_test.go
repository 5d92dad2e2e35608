package sdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubResponse(req *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}
}

// acceptsToken answers 200 for the given bearer token and 401 otherwise.
func acceptsToken(token string, calls *atomic.Int32, seen *[]string, mu *sync.Mutex) roundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		header := req.Header.Get("Authorization")
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, header)
			mu.Unlock()
		}
		if header == "Bearer "+token {
			return stubResponse(req, http.StatusOK), nil
		}
		return stubResponse(req, http.StatusUnauthorized), nil
	}
}

func newRequest(t *testing.T, ctx context.Context, method, body string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://backend.test/triage-cases/", r)
	require.NoError(t, err)
	return req
}

func TestTransport_ReplaysOnceWithRenewedCredential(t *testing.T) {
	var calls atomic.Int32
	var seen []string
	var mu sync.Mutex

	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	var renewals atomic.Int32
	tr := &Transport{
		Base:  acceptsToken("new", &calls, &seen, &mu),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			renewals.Add(1)
			return &Credentials{AccessToken: "new"}, nil
		},
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), renewals.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Bearer old", "Bearer new"}, seen)
	assert.Equal(t, "new", store.Token())
}

func TestTransport_AtMostOneRenewalPerRequest(t *testing.T) {
	var calls atomic.Int32
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	var renewals atomic.Int32
	tr := &Transport{
		Base:  acceptsToken("never-accepted", &calls, nil, nil),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			renewals.Add(1)
			return &Credentials{AccessToken: "new"}, nil
		},
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second 401 is returned to the caller")
	assert.Equal(t, int32(1), renewals.Load())
	assert.Equal(t, int32(2), calls.Load(), "one original send and one replay")
}

func TestTransport_RenewalFailureClearsStore(t *testing.T) {
	var calls atomic.Int32
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	renewErr := errors.New("refresh: 401 Unauthorized")
	var hookErr error
	tr := &Transport{
		Base:  acceptsToken("new", &calls, nil, nil),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			return nil, renewErr
		},
		OnRenewFailed: func(err error) { hookErr = err },
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "original 401 is surfaced")
	assert.Equal(t, int32(1), calls.Load(), "no replay after a failed renewal")
	assert.Nil(t, store.Get())
	assert.ErrorIs(t, hookErr, renewErr)
}

func TestTransport_EmptyRenewedTokenCountsAsFailure(t *testing.T) {
	var calls atomic.Int32
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	failed := false
	tr := &Transport{
		Base:          acceptsToken("new", &calls, nil, nil),
		Store:         store,
		Renew:         func(context.Context) (*Credentials, error) { return &Credentials{}, nil },
		OnRenewFailed: func(error) { failed = true },
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, failed)
	assert.Nil(t, store.Get())
}

func TestTransport_NoCredentialSendsNoHeader(t *testing.T) {
	var header string
	tr := &Transport{
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			header = req.Header.Get("Authorization")
			return stubResponse(req, http.StatusOK), nil
		}),
		Store: NewCredentialStore(),
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, header)
}

func TestTransport_NonUnauthorizedPassesThrough(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			store := NewCredentialStore()
			store.Set(&Credentials{AccessToken: "tok"})
			renewed := false
			tr := &Transport{
				Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
					return stubResponse(req, status), nil
				}),
				Store: store,
				Renew: func(context.Context) (*Credentials, error) {
					renewed = true
					return &Credentials{AccessToken: "new"}, nil
				},
			}

			resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, status, resp.StatusCode)
			assert.False(t, renewed)
			assert.Equal(t, "tok", store.Token())
		})
	}
}

func TestTransport_ReplaysRequestBody(t *testing.T) {
	var bodies []string
	tr := &Transport{
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, string(raw))
			if req.Header.Get("Authorization") == "Bearer new" {
				return stubResponse(req, http.StatusOK), nil
			}
			return stubResponse(req, http.StatusUnauthorized), nil
		}),
		Store: NewCredentialStore(),
		Renew: func(context.Context) (*Credentials, error) {
			return &Credentials{AccessToken: "new"}, nil
		},
	}

	payload := `{"lastName":"C"}`
	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodPut, payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{payload, payload}, bodies)
}

func TestTransport_ExemptRequestsAreNotRenewed(t *testing.T) {
	var calls atomic.Int32
	renewed := false
	tr := &Transport{
		Base:  acceptsToken("new", &calls, nil, nil),
		Store: NewCredentialStore(),
		Renew: func(context.Context) (*Credentials, error) {
			renewed = true
			return &Credentials{AccessToken: "new"}, nil
		},
	}

	for name, ctx := range map[string]context.Context{
		"without renewal": WithoutRenewal(context.Background()),
		"already renewed": withRenewed(context.Background()),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := tr.RoundTrip(newRequest(t, ctx, http.MethodPost, ""))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.False(t, renewed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransport_ConcurrentUnauthorizedShareOneRenewal(t *testing.T) {
	const n = 5
	var rejected sync.WaitGroup
	rejected.Add(n)

	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	var renewals atomic.Int32
	tr := &Transport{
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "Bearer new" {
				return stubResponse(req, http.StatusOK), nil
			}
			rejected.Done()
			return stubResponse(req, http.StatusUnauthorized), nil
		}),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			renewals.Add(1)
			rejected.Wait()
			time.Sleep(100 * time.Millisecond)
			return &Credentials{AccessToken: "new"}, nil
		},
	}

	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, "http://backend.test/auth/me", nil)
			if err != nil {
				return
			}
			resp, err := tr.RoundTrip(req)
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), renewals.Load())
	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestTransport_CancelledCallerDoesNotFailSharedRenewal(t *testing.T) {
	var rejected sync.WaitGroup
	rejected.Add(2)

	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	started := make(chan struct{})
	release := make(chan struct{})
	var renewals, failures atomic.Int32
	tr := &Transport{
		Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "Bearer new" {
				return stubResponse(req, http.StatusOK), nil
			}
			rejected.Done()
			return stubResponse(req, http.StatusUnauthorized), nil
		}),
		Store: store,
		Renew: func(ctx context.Context) (*Credentials, error) {
			renewals.Add(1)
			rejected.Wait()
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &Credentials{AccessToken: "new"}, nil
		},
		OnRenewFailed: func(error) { failures.Add(1) },
	}

	cancelled, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelledErr := make(chan error, 1)
	go func() {
		resp, err := tr.RoundTrip(newRequest(t, cancelled, http.MethodGet, ""))
		if resp != nil {
			resp.Body.Close()
		}
		cancelledErr <- err
	}()
	otherStatus := make(chan int, 1)
	go func() {
		resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
		if err != nil {
			otherStatus <- 0
			return
		}
		resp.Body.Close()
		otherStatus <- resp.StatusCode
	}()

	<-started
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-cancelledErr, context.Canceled)
	close(release)

	assert.Equal(t, http.StatusOK, <-otherStatus)
	assert.Equal(t, int32(1), renewals.Load())
	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, "new", store.Token())
}

func TestTransport_RenewalFailureKeepsNewerCredential(t *testing.T) {
	var calls atomic.Int32
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	failed := false
	tr := &Transport{
		Base:  acceptsToken("fresh", &calls, nil, nil),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			// A login commits while the refresh is in flight.
			store.Set(&Credentials{AccessToken: "fresh"})
			return nil, errors.New("refresh: 401 Unauthorized")
		},
		OnRenewFailed: func(error) { failed = true },
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, failed)
	assert.Equal(t, "fresh", store.Token())
}

func TestTransport_RenewalDoesNotOverwriteNewerCredential(t *testing.T) {
	var calls atomic.Int32
	var seen []string
	var mu sync.Mutex
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	tr := &Transport{
		Base:  acceptsToken("fresh", &calls, &seen, &mu),
		Store: store,
		Renew: func(context.Context) (*Credentials, error) {
			store.Set(&Credentials{AccessToken: "fresh"})
			return &Credentials{AccessToken: "renewed"}, nil
		},
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Bearer old", "Bearer fresh"}, seen, "replay uses the newer credential")
	assert.Equal(t, "fresh", store.Token())
}

func TestTransport_RenewTimeoutBoundsRefresh(t *testing.T) {
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "old"})

	var hookErr error
	tr := &Transport{
		Base:         acceptsToken("new", new(atomic.Int32), nil, nil),
		Store:        store,
		RenewTimeout: 20 * time.Millisecond,
		Renew: func(ctx context.Context) (*Credentials, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		OnRenewFailed: func(err error) { hookErr = err },
	}

	resp, err := tr.RoundTrip(newRequest(t, context.Background(), http.MethodGet, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.ErrorIs(t, hookErr, context.DeadlineExceeded)
	assert.Nil(t, store.Get())
}
