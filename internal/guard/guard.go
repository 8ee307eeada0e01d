// Package guard restores the session on first entry to a protected view and
// decides whether that view renders, shows a placeholder or redirects to the
// login page.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"joblinker/internal/auth/models"
	"joblinker/internal/platform/metrics"
)

const DefaultBootstrapTimeout = 15 * time.Second

// Refresher runs the refresh flow.
type Refresher interface {
	Refresh(ctx context.Context) (models.Session, error)
}

// Sessions is the read side of the session store.
type Sessions interface {
	CurrentUser() models.Session
	WaitSettled(ctx context.Context) (models.Session, error)
}

// Guard owns the bootstrap of one process. It is safe for concurrent use.
type Guard struct {
	refresher Refresher
	sessions  Sessions
	logger    *slog.Logger
	metrics   *metrics.Metrics

	BootstrapTimeout time.Duration
	LoginPath        string

	once    sync.Once
	started atomic.Bool
	done    chan struct{}
}

type Option func(*Guard)

func WithBootstrapTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.BootstrapTimeout = d
		}
	}
}

func WithLoginPath(path string) Option {
	return func(g *Guard) { g.LoginPath = path }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func New(refresher Refresher, sessions Sessions, logger *slog.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Guard{
		refresher:        refresher,
		sessions:         sessions,
		logger:           logger,
		BootstrapTimeout: DefaultBootstrapTimeout,
		LoginPath:        "/login",
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bootstrap runs the refresh flow at most once per Guard and returns when it
// has finished. It does nothing when a token is already present. A failed
// refresh is the normal outcome for anonymous users and is not reported.
func (g *Guard) Bootstrap(ctx context.Context) {
	g.started.Store(true)
	g.once.Do(func() {
		defer close(g.done)
		if g.sessions.CurrentUser().AccessToken != "" {
			return
		}
		if _, err := g.refresher.Refresh(ctx); err != nil {
			g.logger.DebugContext(ctx, "bootstrap refresh did not restore a session", "error", err)
			return
		}
		g.logger.InfoContext(ctx, "session restored on bootstrap")
	})
}

// Start runs Bootstrap in the background.
func (g *Guard) Start(ctx context.Context) {
	if g.started.Swap(true) {
		return
	}
	go g.Bootstrap(context.WithoutCancel(ctx))
}

func (g *Guard) bootstrapped() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// State reports where the process is in the bootstrap lifecycle.
func (g *Guard) State() State {
	current := g.sessions.CurrentUser()
	switch {
	case current.AccessToken != "":
		return StateAuthenticated
	case current.IsRefreshing:
		return StateRefreshing
	case g.started.Load() && !g.bootstrapped():
		return StateRefreshing
	case !g.started.Load():
		return StateUnknown
	default:
		return StateUnauthenticated
	}
}

// Current returns the decision for the session as it is now. While a started
// bootstrap is pending the view is Loading, never Redirect.
func (g *Guard) Current() Decision {
	current := g.sessions.CurrentUser()
	decision := Decide(current)
	if decision == Redirect && g.started.Load() && !g.bootstrapped() {
		decision = Loading
	}
	return decision
}

// Await bootstraps if needed, waits for the record to settle and returns the
// final decision. When BootstrapTimeout elapses first it returns Redirect.
func (g *Guard) Await(ctx context.Context) Decision {
	ctx, cancel := context.WithTimeout(ctx, g.BootstrapTimeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		// the refresh carries its own timeout
		g.Bootstrap(context.WithoutCancel(ctx))
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return g.timedOut(ctx)
	}

	current, err := g.sessions.WaitSettled(ctx)
	if err != nil {
		return g.timedOut(ctx)
	}
	decision := Decide(current)
	g.metrics.ObserveGuardDecision(string(decision))
	return decision
}

func (g *Guard) timedOut(ctx context.Context) Decision {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		g.logger.WarnContext(ctx, "session did not settle before bootstrap timeout",
			"timeout", g.BootstrapTimeout,
		)
	}
	g.metrics.ObserveGuardDecision(string(Redirect))
	return Redirect
}
