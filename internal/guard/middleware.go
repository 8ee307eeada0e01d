package guard

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

const placeholderPage = `<!doctype html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Restoring your session&hellip;</p></body></html>
`

// Middleware protects next. The first protected request starts the bootstrap
// in the background; while it runs a placeholder is served. Unauthenticated
// requests are redirected to the login page with the original target in next.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Start(context.WithoutCancel(r.Context()))

		decision := g.Current()
		g.metrics.ObserveGuardDecision(string(decision))

		switch decision {
		case Loading:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, placeholderPage)
		case Redirect:
			target := g.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
