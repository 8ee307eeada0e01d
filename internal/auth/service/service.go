package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"joblinker/internal/auth/models"
	"joblinker/internal/platform/metrics"
	"joblinker/pkg/platform/cookie"
)

// Backend is the subset of the backend auth API the service drives.
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.Credentials, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.Role, error)
	Verify(ctx context.Context, token string) (*models.Credentials, error)
	Refresh(ctx context.Context, csrf string) (*models.Credentials, error)
	Logout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (*models.Profile, error)
}

// SessionStore is the in-memory session record.
type SessionStore interface {
	SetCredentials(update models.SessionUpdate) models.Session
	// SetCredentialsIf and ClearCredentialsIf write only while the record
	// still holds token; otherwise they just end IsRefreshing.
	SetCredentialsIf(token string, update models.SessionUpdate) (models.Session, bool)
	ClearCredentialsIf(token string) (models.Session, bool)
	ClearCredentials()
	CurrentUser() models.Session
}

// CookieProfile is the persisted cookie store; logout clears it locally even
// when the server notification fails.
type CookieProfile interface {
	Clear() error
}

// DefaultRefreshTimeout bounds one refresh call including the profile lookup.
const DefaultRefreshTimeout = 10 * time.Second

const (
	refreshKey = "refresh"
	tracerName = "joblinker/internal/auth/service"
)

// Service owns every mutation of the session record that involves the
// backend: login, verification, refresh and logout.
type Service struct {
	backend  Backend
	sessions SessionStore
	cookies  cookie.Reader
	profile  CookieProfile
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	RefreshTimeout time.Duration

	refreshes singleflight.Group
}

type Option func(*Service)

func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.RefreshTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracerProvider sets where refresh spans go; the global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func WithCookieProfile(p CookieProfile) Option {
	return func(s *Service) { s.profile = p }
}

func New(backend Backend, sessions SessionStore, cookies cookie.Reader, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		backend:        backend,
		sessions:       sessions,
		cookies:        cookies,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		RefreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser exposes the session snapshot.
func (s *Service) CurrentUser() models.Session {
	return s.sessions.CurrentUser()
}

// Login authenticates with email and password. IsRefreshed is left as is: a
// login is not a refresh.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.Session, error) {
	creds, err := s.backend.Login(ctx, req)
	if err != nil {
		s.logger.InfoContext(ctx, "login failed", "error", err)
		return s.sessions.CurrentUser(), err
	}
	update := models.FromCredentials(*creds, false)
	update.IsRefreshed = nil
	return s.sessions.SetCredentials(update), nil
}

// Register creates an account; it never touches the session record.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.Role, error) {
	return s.backend.Register(ctx, req)
}

// Verify redeems an email verification token, which also starts a session.
func (s *Service) Verify(ctx context.Context, token string) (models.Session, error) {
	s.sessions.SetCredentials(models.Refreshing())
	creds, err := s.backend.Verify(ctx, token)
	if err != nil {
		s.sessions.ClearCredentials()
		s.logger.InfoContext(ctx, "email verification failed", "error", err)
		return s.sessions.CurrentUser(), err
	}
	return s.sessions.SetCredentials(models.FromCredentials(*creds, true)), nil
}

// Logout clears local state first, then notifies the backend best-effort.
// The server call needs the refresh cookie, so the cookie profile is dropped
// only after it.
func (s *Service) Logout(ctx context.Context) {
	token := s.sessions.CurrentUser().AccessToken
	s.sessions.ClearCredentials()

	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "logout notification failed", "error", err)
		}
	}
	if s.profile != nil {
		if err := s.profile.Clear(); err != nil {
			s.logger.WarnContext(ctx, "failed to clear cookie profile", "error", err)
		}
	}
}
