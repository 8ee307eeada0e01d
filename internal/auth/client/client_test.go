package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"joblinker/internal/auth/models"
	"joblinker/internal/auth/store/cookiejar"
	"joblinker/pkg/platform/cookie"
	"joblinker/pkg/platform/sentinel"
	"joblinker/pkg/testutil/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	backend *backend.Backend
	jar     *cookiejar.Jar
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.backend = backend.Start(s.T())
	s.jar = cookiejar.New()
	c, err := New(s.backend.URL(), &http.Client{Jar: s.jar}, nil)
	s.Require().NoError(err)
	s.client = c
}

func (s *ClientSuite) csrf() string {
	v, _ := cookie.CSRFToken(s.jar.Reader(s.client.BaseURL()))
	return v
}

func (s *ClientSuite) TestLogin() {
	s.backend.CreateUser("Ada", "ada@example.com", "secret123", "candidate", true)

	s.Run("success returns token and role and sets cookies", func() {
		creds, err := s.client.Login(context.Background(), models.LoginRequest{Email: " ADA@example.com ", Password: "secret123"})
		s.Require().NoError(err)
		s.NotEmpty(creds.AccessToken())
		s.Equal(models.RoleCandidate, creds.Role)
		s.NotEmpty(s.csrf())
	})

	s.Run("wrong password is unauthorized", func() {
		_, err := s.client.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "nope"})
		var apiErr *APIError
		s.Require().ErrorAs(err, &apiErr)
		s.Equal(http.StatusUnauthorized, apiErr.Status)
		s.Equal("Unauthorized", apiErr.Message)
		s.ErrorIs(err, sentinel.ErrUnauthorized)
	})

	s.Run("invalid email never reaches the backend", func() {
		before := s.backend.Calls(backend.APIPrefix + "/login")
		_, err := s.client.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
		s.ErrorIs(err, sentinel.ErrInvalidInput)
		s.Equal(before, s.backend.Calls(backend.APIPrefix+"/login"))
	})
}

func (s *ClientSuite) TestLoginUnverifiedIsFailureDespite200() {
	s.backend.CreateUser("Bob", "bob@example.com", "secret123", "recruiter", false)

	_, err := s.client.Login(context.Background(), models.LoginRequest{Email: "bob@example.com", Password: "secret123"})
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusOK, apiErr.Status)
	s.Equal("Verify your email", apiErr.Message)
}

func (s *ClientSuite) TestRegisterAndVerify() {
	role, err := s.client.Register(context.Background(), models.RegisterRequest{
		Name: "Cleo", Email: "cleo@example.com", Password: "secret123", Role: models.RoleRecruiter,
	})
	s.Require().NoError(err)
	s.Equal(models.RoleRecruiter, role)
	s.Empty(s.csrf(), "registration does not establish a session")

	token, ok := s.backend.VerificationToken("cleo@example.com")
	s.Require().True(ok)

	creds, err := s.client.Verify(context.Background(), token)
	s.Require().NoError(err)
	s.NotEmpty(creds.AccessToken())
	s.Equal("Cleo", creds.Name)
	s.NotEmpty(s.csrf())

	_, err = s.client.Verify(context.Background(), token)
	s.Error(err, "verification tokens are one-time")
}

func (s *ClientSuite) TestRegisterValidation() {
	_, err := s.client.Register(context.Background(), models.RegisterRequest{
		Name: "Dan", Email: "dan@example.com", Password: "secret123", Role: "admin",
	})
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}

func (s *ClientSuite) TestRefresh() {
	s.backend.CreateUser("Ada", "ada@example.com", "secret123", "candidate", true)
	_, err := s.client.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	s.Require().NoError(err)

	s.Run("matching csrf yields a token", func() {
		creds, err := s.client.Refresh(context.Background(), s.csrf())
		s.Require().NoError(err)
		s.NotEmpty(creds.AccessToken())
	})

	s.Run("mismatched csrf is rejected", func() {
		_, err := s.client.Refresh(context.Background(), "forged")
		s.ErrorIs(err, sentinel.ErrUnauthorized)
	})
}

func (s *ClientSuite) TestLogoutRevokesRefresh() {
	s.backend.CreateUser("Ada", "ada@example.com", "secret123", "candidate", true)
	creds, err := s.client.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	s.Require().NoError(err)
	csrf := s.csrf()

	s.Require().NoError(s.client.Logout(context.Background(), creds.AccessToken()))
	s.Empty(s.csrf(), "logout clears the cookie pair")

	_, err = s.client.Refresh(context.Background(), csrf)
	s.ErrorIs(err, sentinel.ErrUnauthorized)
}

func (s *ClientSuite) TestMe() {
	s.backend.CreateUser("Ada", "ada@example.com", "secret123", "candidate", true)
	creds, err := s.client.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	s.Require().NoError(err)

	profile, err := s.client.Me(context.Background(), creds.AccessToken())
	s.Require().NoError(err)
	s.Equal("Ada", profile.Name)
	s.Equal(models.RoleCandidate, profile.Role)
	s.Contains(string(profile.Raw), "ada@example.com")
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api/v1", nil, nil)
	assert.Error(t, err)
}

func TestIsRefreshEndpoint(t *testing.T) {
	c, err := New("http://localhost:5000/api/v1/", nil, nil)
	require.NoError(t, err)

	u, _ := url.Parse("http://localhost:5000/api/v1/refresh")
	assert.True(t, c.IsRefreshEndpoint(u))
	u, _ = url.Parse("http://localhost:5000/api/v1/jobs")
	assert.False(t, c.IsRefreshEndpoint(u))
}

func TestNonJSONErrorFallsBackToGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	_, err = c.Me(context.Background(), "tok")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, GenericMessage, apiErr.Message)
}

func TestParseErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"status":"error","message":"User already exists","data":{}}`, "User already exists"},
		{"field errors", `{"status":"error","message":{"email":["Not a valid email."]}}`, `{"email":["Not a valid email."]}`},
		{"flask jwt default", `{"msg":"Token has expired"}`, "Token has expired"},
		{"error key", `{"error":"unauthorized"}`, "unauthorized"},
		{"empty object", `{}`, GenericMessage},
		{"garbage", `not json`, GenericMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseErrorMessage([]byte(tc.body)))
		})
	}
}
