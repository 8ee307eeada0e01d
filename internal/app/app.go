// Package app wires the session subsystem: cookie profile, backend client,
// session store, refresh service, authenticated HTTP client, guard and portal.
// Each App is one page load: a fresh in-memory session over a persisted cookie
// profile.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"joblinker/internal/auth/client"
	"joblinker/internal/auth/service"
	"joblinker/internal/auth/store/cookiejar"
	"joblinker/internal/auth/store/session"
	"joblinker/internal/guard"
	"joblinker/internal/platform/config"
	"joblinker/internal/platform/httpclient"
	"joblinker/internal/platform/metrics"
	"joblinker/internal/portal"
)

type App struct {
	Config   config.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Jar      *cookiejar.Jar
	Sessions *session.InMemorySessionStore
	Backend  *client.Client
	Service  *service.Service
	// HTTP is the authenticated client for business requests.
	HTTP  *http.Client
	Guard *guard.Guard
}

type Option func(*options)

type options struct {
	jar       *cookiejar.Jar
	transport http.RoundTripper
}

// WithJar uses an existing jar instead of opening cfg.ProfilePath.
func WithJar(jar *cookiejar.Jar) Option {
	return func(o *options) { o.jar = jar }
}

// WithTransport sets the base transport under both HTTP clients.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func New(cfg config.Client, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := o.transport
	if base == nil {
		base = http.DefaultTransport
	}

	jar := o.jar
	if jar == nil {
		if cfg.ProfilePath == "" {
			jar = cookiejar.New()
		} else {
			var err error
			if jar, err = cookiejar.Open(cfg.ProfilePath); err != nil {
				return nil, fmt.Errorf("open cookie profile: %w", err)
			}
		}
	}

	backend, err := client.New(cfg.APIURL, &http.Client{Jar: jar, Transport: base}, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	sessions := session.New()

	svc := service.New(backend, sessions, jar.Reader(backend.BaseURL()), logger,
		service.WithRefreshTimeout(cfg.RefreshTimeout),
		service.WithMetrics(m),
		service.WithCookieProfile(jar),
	)

	authed := httpclient.NewClient(sessions, svc, jar,
		httpclient.WithBase(base),
		httpclient.WithSkip(backend.IsRefreshEndpoint),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(m),
	)

	g := guard.New(svc, sessions, logger,
		guard.WithBootstrapTimeout(cfg.BootstrapTimeout),
		guard.WithMetrics(m),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  m,
		Jar:      jar,
		Sessions: sessions,
		Backend:  backend,
		Service:  svc,
		HTTP:     authed,
		Guard:    g,
	}, nil
}

// Profiles looks up the profile through the authenticated client.
func (a *App) Profiles() *client.Client {
	return a.Backend.WithHTTPClient(a.HTTP)
}

// Router builds the portal.
func (a *App) Router() http.Handler {
	transport := a.HTTP.Transport
	return portal.NewRouter(portal.RouterConfig{
		Handler:  portal.New(a.Service, a.Profiles(), a.Logger),
		Protect:  a.Guard.Middleware,
		API:      portal.NewAPIProxy(a.Backend.BaseURL(), transport, a.Logger),
		Gatherer: a.Registry,
		Logger:   a.Logger,
	})
}

// Close persists the cookie profile.
func (a *App) Close() error {
	return a.Jar.Save()
}
