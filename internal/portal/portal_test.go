package portal_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"joblinker/internal/app"
	"joblinker/internal/auth/store/cookiejar"
	"joblinker/internal/guard"
	"joblinker/internal/platform/config"
	"joblinker/pkg/testutil/backend"
)

type PortalSuite struct {
	suite.Suite
	backend *backend.Backend
	jar     *cookiejar.Jar
	app     *app.App
	router  http.Handler
}

func TestPortalSuite(t *testing.T) {
	suite.Run(t, new(PortalSuite))
}

func (s *PortalSuite) SetupTest() {
	s.backend = backend.Start(s.T())
	s.backend.CreateUser("Ada Lovelace", "ada@example.com", "secret123", "candidate", true)
	s.jar = cookiejar.New()
	s.app, s.router = s.pageLoad()
}

// pageLoad simulates a browser reload: fresh memory, same cookies.
func (s *PortalSuite) pageLoad() (*app.App, http.Handler) {
	a, err := app.New(config.Client{
		APIURL:           s.backend.URL(),
		RefreshTimeout:   2 * time.Second,
		BootstrapTimeout: 3 * time.Second,
	}, nil, app.WithJar(s.jar))
	s.Require().NoError(err)
	return a, a.Router()
}

func (s *PortalSuite) do(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *PortalSuite) login() {
	rec := s.do(s.router, http.MethodPost, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"secret123"},
		"next":     {"/api/jobs"},
	})
	s.Require().Equal(http.StatusSeeOther, rec.Code)
	s.Require().Equal("/api/jobs", rec.Header().Get("Location"))
}

func (s *PortalSuite) TestHealthAndMetrics() {
	rec := s.do(s.router, http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	s.app.Metrics.ObserveRefresh("success")
	rec = s.do(s.router, http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "joblinker_session_refresh_total")
}

func (s *PortalSuite) TestLoginForm() {
	rec := s.do(s.router, http.MethodGet, "/login?next=%2Fapi%2Fjobs", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `name="next" value="/api/jobs"`)

	s.Run("open redirects are dropped", func() {
		rec := s.do(s.router, http.MethodGet, "/login?next=https%3A%2F%2Fevil.example", nil)
		s.Contains(rec.Body.String(), `name="next" value="/me"`)
	})
}

func (s *PortalSuite) TestLoginThenProfile() {
	s.login()

	rec := s.do(s.router, http.MethodGet, "/me", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Ada Lovelace")
	s.Contains(rec.Body.String(), "candidate")
	s.Zero(s.backend.Calls(backend.APIPrefix+"/refresh"), "a fresh login needs no refresh")
}

func (s *PortalSuite) TestLoginRejected() {
	s.Run("wrong password", func() {
		rec := s.do(s.router, http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"nope"}})
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "Unauthorized")
		s.Contains(rec.Body.String(), `value="ada@example.com"`)
	})

	s.Run("unverified email", func() {
		s.backend.CreateUser("Bob", "bob@example.com", "secret123", "recruiter", false)
		rec := s.do(s.router, http.MethodPost, "/login", url.Values{"email": {"bob@example.com"}, "password": {"secret123"}})
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "Verify your email")
		s.Empty(s.app.Sessions.CurrentUser().AccessToken)
	})

	s.Run("malformed email never reaches the backend", func() {
		before := s.backend.Calls(backend.APIPrefix + "/login")
		rec := s.do(s.router, http.MethodPost, "/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(before, s.backend.Calls(backend.APIPrefix+"/login"))
	})
}

func (s *PortalSuite) TestAnonymousIsRedirectedToLogin() {
	s.Equal(guard.Redirect, s.app.Guard.Await(context.Background()))

	rec := s.do(s.router, http.MethodGet, "/me", nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/login?next=%2Fme", rec.Header().Get("Location"))
}

func (s *PortalSuite) TestReloadRestoresSessionFromCookie() {
	s.login()

	reloaded, router := s.pageLoad()
	s.Empty(reloaded.Sessions.CurrentUser().AccessToken)
	s.Equal(guard.Render, reloaded.Guard.Await(context.Background()))

	rec := s.do(router, http.MethodGet, "/me", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Ada Lovelace")
	s.Equal(1, s.backend.Calls(backend.APIPrefix+"/refresh"))
}

func (s *PortalSuite) TestPlaceholderWhileRefreshing() {
	s.login()
	s.backend.SetRefreshDelay(300 * time.Millisecond)

	reloaded, router := s.pageLoad()
	rec := s.do(router, http.MethodGet, "/me", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("1", rec.Header().Get("Retry-After"))
	s.NotContains(rec.Body.String(), "Ada Lovelace")

	s.Equal(guard.Render, reloaded.Guard.Await(context.Background()))
	rec = s.do(router, http.MethodGet, "/me", nil)
	s.Contains(rec.Body.String(), "Ada Lovelace")
}

func (s *PortalSuite) TestAPIProxyRefreshesExpiredToken() {
	s.login()
	s.backend.ExpireAccessTokens()

	rec := s.do(s.router, http.MethodGet, "/api/jobs", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Backend Engineer")
	s.Equal(1, s.backend.Calls(backend.APIPrefix+"/refresh"))
	s.Equal(2, s.backend.Calls(backend.APIPrefix+"/jobs"), "original and one replay")
	s.Empty(rec.Header().Values("Set-Cookie"))
}

func (s *PortalSuite) TestAPIProxyForwardsBody() {
	s.login()
	s.backend.ExpireAccessTokens()

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"title":"Go developer"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(rec.Body.String(), "Go developer")
}

func (s *PortalSuite) TestAPIProxyReturns401WhenRefreshFails() {
	s.login()
	s.backend.ExpireAccessTokens()
	s.backend.FailRefresh(true)

	rec := s.do(s.router, http.MethodGet, "/api/jobs", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "expired")
	s.Empty(s.app.Sessions.CurrentUser().AccessToken)

	s.Equal(guard.Redirect, s.app.Guard.Await(context.Background()))
	rec = s.do(s.router, http.MethodGet, "/api/jobs", nil)
	s.Equal(http.StatusSeeOther, rec.Code)
}

func (s *PortalSuite) TestVerifyStartsSession() {
	s.backend.CreateUser("Cleo", "cleo@example.com", "secret123", "recruiter", false)
	rec := s.do(s.router, http.MethodPost, "/login", url.Values{"email": {"cleo@example.com"}, "password": {"secret123"}})
	s.Require().Equal(http.StatusUnauthorized, rec.Code)
	token, ok := s.backend.VerificationToken("cleo@example.com")
	s.Require().True(ok)

	rec = s.do(s.router, http.MethodGet, "/verify?token="+url.QueryEscape(token), nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/me", rec.Header().Get("Location"))
	s.NotEmpty(s.app.Sessions.CurrentUser().AccessToken)

	s.Run("a used token fails back to login", func() {
		rec := s.do(s.router, http.MethodGet, "/verify?token="+url.QueryEscape(token), nil)
		s.Equal("/login", rec.Header().Get("Location"))
		s.Empty(s.app.Sessions.CurrentUser().AccessToken)
	})
}

func (s *PortalSuite) TestLogout() {
	s.login()

	rec := s.do(s.router, http.MethodPost, "/logout", nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/login", rec.Header().Get("Location"))
	s.Empty(s.app.Sessions.CurrentUser().AccessToken)

	reloaded, _ := s.pageLoad()
	s.Equal(guard.Redirect, reloaded.Guard.Await(context.Background()), "logout leaves no cookie to refresh with")
}
