package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"joblinker/internal/platform/metrics"
)

// Option configures the authenticated client.
type Option func(*AuthTransport, *http.Client)

// WithBase sets the transport requests are sent through.
func WithBase(rt http.RoundTripper) Option {
	return func(t *AuthTransport, _ *http.Client) { t.Base = rt }
}

// WithSkip excludes matching URLs from bearer authentication and refresh.
func WithSkip(skip func(*url.URL) bool) Option {
	return func(t *AuthTransport, _ *http.Client) { t.Skip = skip }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *AuthTransport, _ *http.Client) { t.Logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *AuthTransport, _ *http.Client) { t.Metrics = m }
}

// WithTimeout bounds every request, replay included.
func WithTimeout(d time.Duration) Option {
	return func(_ *AuthTransport, c *http.Client) { c.Timeout = d }
}

// NewClient builds the client every business request goes through. jar may be
// nil when cookies are managed elsewhere.
func NewClient(tokens TokenSource, refresher Refresher, jar http.CookieJar, opts ...Option) *http.Client {
	transport := &AuthTransport{
		Tokens:    tokens,
		Refresher: refresher,
	}
	c := &http.Client{Jar: jar}
	for _, opt := range opts {
		opt(transport, c)
	}
	c.Transport = transport
	return c
}
