// Package backend is an in-process stand-in for the Job Linker REST backend.
// It implements the authentication contract the client depends on: bearer
// access tokens, an HTTP-only refresh cookie paired with a readable CSRF
// cookie (double submit), email verification tokens and the unified
// {status, message, data} envelope. Knobs let tests expire tokens, fail
// refreshes and count calls.
package backend

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// APIPrefix is where the backend mounts its routes.
const APIPrefix = "/api/v1"

type user struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	Role         string
	Verified     bool
}

type Backend struct {
	mu           sync.Mutex
	users        map[string]*user // by email
	byID         map[string]*user
	verifyTokens map[string]string // token -> email
	revoked      map[string]bool   // refresh token JTIs
	calls        map[string]int
	seenTokens   []string

	signingKey   []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	now          func() time.Time
	generation   int
	failRefresh  bool
	rejectAll    bool
	refreshDelay time.Duration
	refreshRole  bool

	server *httptest.Server
}

type Option func(*Backend)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) { b.accessTTL = d }
}

// WithClock overrides the time source for token issuance and validation.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithRefreshRole makes /refresh return the role next to the token. The
// original backend returns only the token.
func WithRefreshRole() Option {
	return func(b *Backend) { b.refreshRole = true }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		users:        make(map[string]*user),
		byID:         make(map[string]*user),
		verifyTokens: make(map[string]string),
		revoked:      make(map[string]bool),
		calls:        make(map[string]int),
		signingKey:   []byte(uuid.NewString()),
		accessTTL:    30 * time.Minute,
		refreshTTL:   24 * time.Hour,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start serves the backend on a local listener until the test ends.
func Start(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(opts...)
	t.Cleanup(b.Serve())
	return b
}

// Serve starts a local listener and returns the function that stops it. Used
// where no *testing.T is at hand, such as godog scenarios.
func (b *Backend) Serve() func() {
	b.server = httptest.NewServer(b.Handler())
	return b.server.Close
}

// Handler exposes the routes without a listener.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.countCalls)
	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/register", b.handleRegister)
		r.Get("/verify", b.handleVerify)
		r.Post("/login", b.handleLogin)
		r.Post("/refresh", b.handleRefresh)
		r.Group(func(r chi.Router) {
			r.Use(b.requireAccessToken)
			r.Post("/logout", b.handleLogout)
			r.Get("/@me", b.handleMe)
			r.Get("/jobs", b.handleJobs)
			r.Post("/jobs", b.handleCreateJob)
		})
	})
	return r
}

// URL is the API base URL of a started backend.
func (b *Backend) URL() string {
	return b.server.URL + APIPrefix
}

// CreateUser seeds an account directly.
func (b *Backend) CreateUser(name, email, password, role string, verified bool) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &user{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash, Role: role, Verified: verified}
	b.users[email] = u
	b.byID[u.ID] = u
	return u.ID
}

// VerificationToken returns the pending verification token for email.
func (b *Backend) VerificationToken(email string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, e := range b.verifyTokens {
		if e == email {
			return token, true
		}
	}
	return "", false
}

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
}

// FailRefresh makes /refresh answer 401 regardless of cookies.
func (b *Backend) FailRefresh(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = fail
}

// RejectAllAccessTokens makes every bearer-protected route answer 401,
// including with freshly refreshed tokens.
func (b *Backend) RejectAllAccessTokens(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectAll = reject
}

// SetRefreshDelay delays /refresh responses.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

// Calls returns how many requests reached path (for example "/api/v1/refresh").
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// SeenTokens returns the bearer tokens protected routes received, in order.
func (b *Backend) SeenTokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenTokens...)
}

func (b *Backend) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
