package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"joblinker/internal/app"
	"joblinker/internal/guard"
	"joblinker/pkg/testutil/backend"
)

// Response is what a step observed from one request.
type Response struct {
	Status   int
	Body     string
	Location string
	Header   http.Header
}

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Backend() *backend.Backend
	App() *app.App
	PageLoad() error
	Portal(method, path string, form url.Values) *Response
	API(ctx context.Context, method, path string) (*Response, error)
	Last() *Response
	SetLast(r *Response)
	Responses() []*Response
	SetResponses(rs []*Response)
}

// RegisterSteps registers session-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sessionSteps{tc: tc}

	// Accounts and backend knobs
	ctx.Step(`^a verified "([^"]*)" account "([^"]*)" named "([^"]*)" with password "([^"]*)"$`, steps.verifiedAccount)
	ctx.Step(`^an unverified "([^"]*)" account "([^"]*)" named "([^"]*)" with password "([^"]*)"$`, steps.unverifiedAccount)
	ctx.Step(`^the access token expires$`, steps.expireAccessTokens)
	ctx.Step(`^the backend refuses to refresh$`, steps.failRefresh)
	ctx.Step(`^the backend rejects every access token$`, steps.rejectAllTokens)
	ctx.Step(`^refreshing takes (\d+)ms$`, steps.refreshDelay)

	// Portal and page loads
	ctx.Step(`^I sign in as "([^"]*)" with password "([^"]*)"$`, steps.signIn)
	ctx.Step(`^I reload the page$`, steps.reload)
	ctx.Step(`^I open "([^"]*)"$`, steps.open)
	ctx.Step(`^I sign out$`, steps.signOut)
	ctx.Step(`^the session restore settles$`, steps.settle)

	// Authenticated requests
	ctx.Step(`^I request "([^"]*)"$`, steps.request)
	ctx.Step(`^I send (\d+) concurrent requests to "([^"]*)"$`, steps.concurrentRequests)

	// Assertions
	ctx.Step(`^the response status is (\d+)$`, steps.responseStatus)
	ctx.Step(`^the response contains "([^"]*)"$`, steps.responseContains)
	ctx.Step(`^I am redirected to "([^"]*)"$`, steps.redirectedTo)
	ctx.Step(`^I see the loading placeholder$`, steps.loadingPlaceholder)
	ctx.Step(`^the guard decision is "([^"]*)"$`, steps.guardDecision)
	ctx.Step(`^every request succeeds$`, steps.everyRequestSucceeds)
	ctx.Step(`^the backend received (\d+) calls? to "([^"]*)"$`, steps.backendCalls)
	ctx.Step(`^the session holds an access token$`, steps.sessionHasToken)
	ctx.Step(`^the session is empty$`, steps.sessionEmpty)
}

type sessionSteps struct {
	tc TestContext
}

func (s *sessionSteps) verifiedAccount(ctx context.Context, role, email, name, password string) error {
	s.tc.Backend().CreateUser(name, email, password, role, true)
	return nil
}

func (s *sessionSteps) unverifiedAccount(ctx context.Context, role, email, name, password string) error {
	s.tc.Backend().CreateUser(name, email, password, role, false)
	return nil
}

func (s *sessionSteps) expireAccessTokens(ctx context.Context) error {
	s.tc.Backend().ExpireAccessTokens()
	return nil
}

func (s *sessionSteps) failRefresh(ctx context.Context) error {
	s.tc.Backend().FailRefresh(true)
	return nil
}

func (s *sessionSteps) rejectAllTokens(ctx context.Context) error {
	s.tc.Backend().RejectAllAccessTokens(true)
	return nil
}

func (s *sessionSteps) refreshDelay(ctx context.Context, ms int) error {
	s.tc.Backend().SetRefreshDelay(time.Duration(ms) * time.Millisecond)
	return nil
}

func (s *sessionSteps) signIn(ctx context.Context, email, password string) error {
	s.tc.Portal(http.MethodPost, "/login", url.Values{"email": {email}, "password": {password}})
	return nil
}

func (s *sessionSteps) reload(ctx context.Context) error {
	return s.tc.PageLoad()
}

func (s *sessionSteps) open(ctx context.Context, path string) error {
	s.tc.Portal(http.MethodGet, path, nil)
	return nil
}

func (s *sessionSteps) signOut(ctx context.Context) error {
	s.tc.Portal(http.MethodPost, "/logout", nil)
	return nil
}

func (s *sessionSteps) settle(ctx context.Context) error {
	s.tc.App().Guard.Await(ctx)
	return nil
}

func (s *sessionSteps) request(ctx context.Context, path string) error {
	resp, err := s.tc.API(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	s.tc.SetLast(resp)
	return nil
}

func (s *sessionSteps) concurrentRequests(ctx context.Context, n int, path string) error {
	responses := make([]*Response, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i], errs[i] = s.tc.API(ctx, http.MethodGet, path)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
	}
	s.tc.SetResponses(responses)
	return nil
}

func (s *sessionSteps) responseStatus(ctx context.Context, status int) error {
	last := s.tc.Last()
	if last == nil {
		return fmt.Errorf("no response recorded")
	}
	if last.Status != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, last.Status, last.Body)
	}
	return nil
}

func (s *sessionSteps) responseContains(ctx context.Context, text string) error {
	last := s.tc.Last()
	if last == nil || !strings.Contains(last.Body, text) {
		return fmt.Errorf("response does not contain %q", text)
	}
	return nil
}

func (s *sessionSteps) redirectedTo(ctx context.Context, location string) error {
	last := s.tc.Last()
	if last == nil || last.Status != http.StatusSeeOther {
		return fmt.Errorf("expected a 303 redirect, got %+v", last)
	}
	if last.Location != location {
		return fmt.Errorf("expected redirect to %q, got %q", location, last.Location)
	}
	return nil
}

func (s *sessionSteps) loadingPlaceholder(ctx context.Context) error {
	last := s.tc.Last()
	if last == nil || last.Status != http.StatusOK || last.Header.Get("Retry-After") == "" {
		return fmt.Errorf("expected the loading placeholder, got %+v", last)
	}
	return nil
}

func (s *sessionSteps) guardDecision(ctx context.Context, want string) error {
	got := s.tc.App().Guard.Await(ctx)
	if got != guard.Decision(want) {
		return fmt.Errorf("expected guard decision %q, got %q", want, got)
	}
	return nil
}

func (s *sessionSteps) everyRequestSucceeds(ctx context.Context) error {
	for i, r := range s.tc.Responses() {
		if r.Status != http.StatusOK {
			return fmt.Errorf("request %d: status %d: %s", i, r.Status, r.Body)
		}
	}
	return nil
}

func (s *sessionSteps) backendCalls(ctx context.Context, n int, endpoint string) error {
	got := s.tc.Backend().Calls(backend.APIPrefix + "/" + strings.TrimLeft(endpoint, "/"))
	if got != n {
		return fmt.Errorf("expected %d calls to %s, got %d", n, endpoint, got)
	}
	return nil
}

func (s *sessionSteps) sessionHasToken(ctx context.Context) error {
	if s.tc.App().Sessions.CurrentUser().AccessToken == "" {
		return fmt.Errorf("expected an access token in the session")
	}
	return nil
}

func (s *sessionSteps) sessionEmpty(ctx context.Context) error {
	current := s.tc.App().Sessions.CurrentUser()
	if current.AccessToken != "" || current.Role != "" || current.IsRefreshing || current.IsRefreshed {
		return fmt.Errorf("expected an empty session, got %+v", current)
	}
	return nil
}
