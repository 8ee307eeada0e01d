// Package client talks to the backend authentication endpoints.
//
// All calls go through a plain *http.Client that owns the cookie jar, so the
// HTTP-only refresh cookie is sent and updated automatically. The
// authenticated transport is deliberately not used here: the refresh call
// must never be intercepted by the refresh-and-retry logic.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"joblinker/internal/auth/models"
	"joblinker/pkg/platform/cookie"
)

const maxBodyBytes = 1 << 20

// Backend endpoint paths relative to the API base URL.
const (
	PathLogin    = "login"
	PathRegister = "register"
	PathVerify   = "verify"
	PathRefresh  = "refresh"
	PathLogout   = "logout"
	PathMe       = "@me"
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client for the API rooted at baseURL (for example
// http://localhost:5000/api/v1). httpClient should carry the cookie jar.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{baseURL: u, http: httpClient, logger: logger}, nil
}

// WithHTTPClient returns a copy of c that sends requests through httpClient.
// Used with the authenticated client for profile lookups that should refresh
// on 401.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	out := *c
	out.http = httpClient
	return &out
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Endpoint resolves an API-relative path.
func (c *Client) Endpoint(path string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(path, "/")})
}

// IsRefreshEndpoint reports whether u targets the refresh call.
func (c *Client) IsRefreshEndpoint(u *url.URL) bool {
	ref := c.Endpoint(PathRefresh)
	return u != nil && u.Host == ref.Host && strings.TrimRight(u.Path, "/") == strings.TrimRight(ref.Path, "/")
}

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.Credentials, error) {
	req.Normalize()
	if err := validateLogin(req); err != nil {
		return nil, err
	}
	var creds models.Credentials
	if err := c.do(ctx, http.MethodPost, PathLogin, nil, req, nil, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates an account. No session is established: the backend
// requires email verification first.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.Role, error) {
	req.Normalize()
	if err := validateRegister(req); err != nil {
		return "", err
	}
	var out struct {
		Role models.Role `json:"role"`
	}
	if err := c.do(ctx, http.MethodPost, PathRegister, nil, req, nil, &out); err != nil {
		return "", err
	}
	return out.Role, nil
}

// Verify redeems a one-time email verification token for a session.
func (c *Client) Verify(ctx context.Context, token string) (*models.Credentials, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalid("verification token is required")
	}
	var creds models.Credentials
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodGet, PathVerify, q, nil, nil, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Refresh exchanges the refresh cookie for a new access token. csrf is the
// value read from the readable CSRF cookie and is echoed as a header.
func (c *Client) Refresh(ctx context.Context, csrf string) (*models.Credentials, error) {
	headers := http.Header{cookie.CSRFHeader: {csrf}}
	var creds models.Credentials
	if err := c.do(ctx, http.MethodPost, PathRefresh, nil, nil, headers, &creds); err != nil {
		return nil, err
	}
	if creds.AccessToken() == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "refresh returned no token"}
	}
	return &creds, nil
}

// Logout asks the backend to invalidate the refresh cookie.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, PathLogout, nil, nil, bearer(accessToken), nil)
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context, accessToken string) (*models.Profile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, PathMe, nil, nil, bearer(accessToken), &raw); err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	profile.Raw = raw
	return &profile, nil
}

func bearer(token string) http.Header {
	if token == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers http.Header, out any) error {
	endpoint := c.Endpoint(path)
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: ParseErrorMessage(raw)}
		c.logger.DebugContext(ctx, "backend rejected request",
			"path", path,
			"status", resp.StatusCode,
		)
		return apiErr
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: GenericMessage}
	}
	if !env.OK() {
		msg := env.Message
		if msg == "" {
			msg = GenericMessage
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
