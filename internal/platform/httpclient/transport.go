// Package httpclient provides the authenticated HTTP client used for every
// business call to the backend.
//
// The transport attaches the in-memory access token as a bearer credential
// and, when the backend answers 401, refreshes the token once and replays the
// original request once. The retry policy travels with the request, so a replay
// that is rejected again is returned to the caller as is.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"joblinker/internal/auth/models"
	"joblinker/internal/platform/metrics"
)

// Refresher runs the refresh flow and reports the resulting session.
type Refresher interface {
	Refresh(ctx context.Context) (models.Session, error)
}

// TokenSource reads the current session.
type TokenSource interface {
	CurrentUser() models.Session
}

// retryPolicy is the per-request refresh budget. Once attemptedRefresh is
// true no further refresh or replay happens for that originating request.
type retryPolicy struct {
	attemptedRefresh bool
}

type retryPolicyKey struct{}

func policyFrom(ctx context.Context) retryPolicy {
	p, _ := ctx.Value(retryPolicyKey{}).(retryPolicy)
	return p
}

func withPolicy(ctx context.Context, p retryPolicy) context.Context {
	return context.WithValue(ctx, retryPolicyKey{}, p)
}

// AuthTransport decorates Base with bearer authentication and the single
// refresh-and-replay on 401.
type AuthTransport struct {
	Base      http.RoundTripper
	Tokens    TokenSource
	Refresher Refresher
	// Skip reports requests that must never be intercepted, such as the
	// refresh call itself.
	Skip    func(*url.URL) bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Skip != nil && t.Skip(req.URL) {
		return t.base().RoundTrip(req)
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	policy := policyFrom(ctx)
	sentToken := t.Tokens.CurrentUser().AccessToken

	resp, err := t.base().RoundTrip(authorize(req, sentToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || policy.attemptedRefresh {
		return resp, err
	}

	current := t.Tokens.CurrentUser().AccessToken
	if current == "" || current == sentToken {
		if _, err := t.Refresher.Refresh(ctx); err != nil {
			t.logger().InfoContext(ctx, "refresh after 401 failed; returning original response",
				"method", req.Method,
				"path", req.URL.Path,
			)
			return resp, nil
		}
		current = t.Tokens.CurrentUser().AccessToken
		if current == "" {
			return resp, nil
		}
	}
	// else: another request already refreshed while this one was in flight

	replay, err := cloneForReplay(withPolicy(ctx, retryPolicy{attemptedRefresh: true}), req, getBody)
	if err != nil {
		return resp, nil
	}
	drain(resp)

	// The replay goes back through the transport; its policy stops any
	// further refresh.
	out, err := t.RoundTrip(replay)
	t.Metrics.ObserveReplay(statusClass(out, err))
	return out, err
}

// authorize returns a copy of req carrying token as bearer credential.
// RoundTrippers must not mutate the caller's request.
func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token == "" {
		out.Header.Del("Authorization")
		return out
	}
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

// replayableBody returns a function producing fresh copies of the request
// body. Bodies without GetBody are buffered once.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	req.Body, _ = getBody()
	req.GetBody = getBody
	return getBody, nil
}

func cloneForReplay(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func statusClass(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return fmt.Sprintf("%dxx", resp.StatusCode/100)
}
