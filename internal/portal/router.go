package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"joblinker/pkg/platform/middleware/metadata"
	"joblinker/pkg/platform/middleware/request"
	"joblinker/pkg/platform/middleware/requesttime"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Handler *Handler
	// Protect wraps the profile page and the API proxy, normally
	// guard.Guard.Middleware.
	Protect  func(http.Handler) http.Handler
	API      http.Handler
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))

	r.Get("/healthz", cfg.Handler.handleHealth)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, defaultLanding, http.StatusSeeOther)
	})

	cfg.Handler.Register(r)

	r.Group(func(r chi.Router) {
		if cfg.Protect != nil {
			r.Use(cfg.Protect)
		}
		r.Get("/me", cfg.Handler.handleMe)
		if cfg.API != nil {
			r.Handle(APIPrefix+"/*", cfg.API)
		}
	})
	return r
}
