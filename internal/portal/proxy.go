package portal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"joblinker/internal/auth/client"
	"joblinker/pkg/requestcontext"
)

// APIPrefix is where the backend API is exposed on the portal.
const APIPrefix = "/api"

// NewAPIProxy forwards /api/* to the backend through transport, which must be
// the authenticated transport. Browser cookies and credentials are not
// forwarded; the backend sees only the portal's bearer token.
func NewAPIProxy(target *url.URL, transport http.RoundTripper, logger *slog.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, APIPrefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
			if id := requestcontext.RequestID(pr.In.Context()); id != "" {
				pr.Out.Header.Set("X-Request-ID", id)
			}
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			// backend cookies belong to the portal's own jar
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			ctx := r.Context()
			logger.WarnContext(ctx, "backend unreachable",
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":  "error",
				"message": client.GenericMessage,
			})
		},
	}
}
