package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"joblinker/internal/app"
	"joblinker/internal/auth/store/cookiejar"
	"joblinker/internal/platform/config"
	"joblinker/e2e/steps/session"
	"joblinker/pkg/testutil/backend"
)

type Response = session.Response

// TestContext is the per-scenario world: one fake backend, one cookie
// profile, and the current page load over it.
type TestContext struct {
	backend *backend.Backend
	stop    func()
	jar     *cookiejar.Jar
	app     *app.App
	router  http.Handler

	last      *Response
	responses []*Response
}

func NewTestContext() *TestContext {
	return &TestContext{}
}

// Reset starts a clean world for a scenario.
func (tc *TestContext) Reset() error {
	tc.Close()
	tc.backend = backend.New()
	tc.stop = tc.backend.Serve()
	tc.jar = cookiejar.New()
	tc.last, tc.responses = nil, nil
	return tc.PageLoad()
}

func (tc *TestContext) Close() {
	if tc.stop != nil {
		tc.stop()
		tc.stop = nil
	}
}

func (tc *TestContext) Backend() *backend.Backend { return tc.backend }

func (tc *TestContext) App() *app.App { return tc.app }

// PageLoad discards in-memory state and keeps the cookies.
func (tc *TestContext) PageLoad() error {
	a, err := app.New(config.Client{
		APIURL:           tc.backend.URL(),
		RefreshTimeout:   2 * time.Second,
		BootstrapTimeout: 3 * time.Second,
	}, nil, app.WithJar(tc.jar))
	if err != nil {
		return fmt.Errorf("page load: %w", err)
	}
	tc.app, tc.router = a, a.Router()
	return nil
}

// Portal sends a request to the local portal.
func (tc *TestContext) Portal(method, path string, form url.Values) *Response {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	tc.last = &Response{
		Status:   rec.Code,
		Body:     rec.Body.String(),
		Location: rec.Header().Get("Location"),
		Header:   rec.Header(),
	}
	return tc.last
}

// API sends a business request through the authenticated client.
func (tc *TestContext) API(ctx context.Context, method, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, tc.app.Backend.Endpoint(path).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := tc.app.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: string(raw), Header: resp.Header}, nil
}

func (tc *TestContext) Last() *Response { return tc.last }

func (tc *TestContext) SetLast(r *Response) { tc.last = r }

func (tc *TestContext) Responses() []*Response { return tc.responses }

func (tc *TestContext) SetResponses(rs []*Response) { tc.responses = rs }
