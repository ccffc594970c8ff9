// Package transport wraps outbound console requests with identity and
// trace headers, refreshes an expired access credential at most once per
// request through a single in-flight operation, and escalates repeated
// stale-permission rejections to a forced re-login.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/opsconsole/console"
)

// defaultStaleLimit is the number of consecutive stale-permission 401s
// that trips the forced re-login. Policy constant, overridable via
// [WithStaleLimit].
const defaultStaleLimit = 2

// RefreshFunc exchanges the tenant's refresh credential for a new access
// token. It must not call back into the authenticated transport.
type RefreshFunc func(ctx context.Context, tenantKey string) (string, error)

// Client executes authenticated requests against the console backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      console.CredentialStore
	refresh    RefreshFunc
	onLogin    func()
	staleLimit int
	logger     *slog.Logger
	flight     singleflight.Group
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStaleLimit overrides the stale-permission escalation threshold.
func WithStaleLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.staleLimit = n
		}
	}
}

// WithForcedLoginHook sets the callback invoked after credentials are
// cleared because recovery is impossible (the UI redirects to the login
// entry point here).
func WithForcedLoginHook(fn func()) Option {
	return func(c *Client) { c.onLogin = fn }
}

// WithLogger sets the logger for transport diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL. refresh is invoked, coalesced across
// concurrent callers, whenever a request hits an expired credential.
func New(baseURL string, store console.CredentialStore, refresh RefreshFunc, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		store:      store,
		refresh:    refresh,
		staleLimit: defaultStaleLimit,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req with identity and trace headers attached. On a 401 it
// refreshes the access credential once and replays the request once; the
// replay's outcome is returned as-is. The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

func (c *Client) do(req *http.Request, retried bool) (*http.Response, error) {
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	apiErr := console.DecodeAPIError(resp)
	resp.Body.Close()

	if apiErr.Code == console.CodeStalePermission {
		if n := c.store.IncrementStaleFailure(); n >= c.staleLimit {
			// Refresh cannot repair an outdated permission snapshot;
			// retrying would loop forever.
			c.logger.Warn("stale permission limit reached", "count", n)
			c.forceLogin()
			return nil, fmt.Errorf("transport: %w: %w", console.ErrLoginRequired, apiErr)
		}
	}

	if retried {
		c.forceLogin()
		return nil, fmt.Errorf("transport: %w: %w", console.ErrLoginRequired, apiErr)
	}

	tenant := c.store.Get().TenantKey
	if tenant == "" {
		c.forceLogin()
		return nil, fmt.Errorf("transport: %w: %w", console.ErrNoTenant, apiErr)
	}

	token, err := c.refreshToken(req.Context(), tenant)
	if err != nil {
		c.forceLogin()
		return nil, fmt.Errorf("transport: refresh: %w", err)
	}

	replay, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	replay.Header.Set("Authorization", "Bearer "+token)
	return c.do(replay, true)
}

// DoJSON sends a JSON request to path relative to the base URL and, when
// out is non-nil, decodes the 2xx response body into it. Non-2xx
// responses are returned as *console.APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("transport: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return console.DecodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// decorate attaches the per-request identity and trace headers. A replay
// passes through here again, so it carries a fresh trace identifier and
// the refreshed credential from the store.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("X-Trace-Id", uuid.NewString())

	cred := c.store.Get()
	if cred.TenantKey != "" {
		req.Header.Set("X-Tenant-Key", cred.TenantKey)
	}
	if cred.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	if isMutating(req.Method) && req.Header.Get("Idempotency-Key") == "" {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// refreshToken coalesces concurrent refreshes into a single in-flight
// operation; callers that arrive while one is outstanding await its
// result. singleflight clears the key when the operation settles, so a
// completed refresh is never re-awaited.
func (c *Client) refreshToken(ctx context.Context, tenant string) (string, error) {
	v, err, _ := c.flight.Do("refresh:"+tenant, func() (any, error) {
		token, err := c.refresh(ctx, tenant)
		if err != nil {
			return nil, err
		}
		c.store.ResetStaleFailure()
		c.store.Update(console.CredentialPatch{AccessToken: &token})
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) forceLogin() {
	c.store.Clear()
	if c.onLogin != nil {
		c.onLogin()
	}
}

// cloneRequest rebuilds req with a rewound body for the post-refresh
// replay. Requests built from in-memory readers carry GetBody; anything
// else cannot be replayed safely.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("transport: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("transport: rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}
