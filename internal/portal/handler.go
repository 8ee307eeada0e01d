// Package portal is the local web front end: login, email verification,
// logout, the profile page and an authenticated pass-through to the backend
// API. Protected routes sit behind the guard middleware.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"joblinker/internal/auth/client"
	"joblinker/internal/auth/models"
	"joblinker/pkg/platform/sentinel"
	"joblinker/pkg/requestcontext"
)

const defaultLanding = "/me"

// Sessions is the session service as seen by the portal.
type Sessions interface {
	Login(ctx context.Context, req models.LoginRequest) (models.Session, error)
	Verify(ctx context.Context, token string) (models.Session, error)
	Logout(ctx context.Context)
	CurrentUser() models.Session
}

// Profiles loads the signed-in user's profile. The implementation sends
// requests through the authenticated client, so the token argument is empty.
type Profiles interface {
	Me(ctx context.Context, accessToken string) (*models.Profile, error)
}

type Handler struct {
	sessions Sessions
	profiles Profiles
	logger   *slog.Logger
}

func New(sessions Sessions, profiles Profiles, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{sessions: sessions, profiles: profiles, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/login", h.handleLoginForm)
	r.Post("/login", h.handleLogin)
	r.Get("/verify", h.handleVerify)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, loginPage{Next: safeNext(r.URL.Query().Get("next"))})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, loginPage{Error: "invalid form"})
		return
	}
	req := models.LoginRequest{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	next := safeNext(r.PostForm.Get("next"))

	if _, err := h.sessions.Login(ctx, req); err != nil {
		h.logger.InfoContext(ctx, "portal login rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.renderLogin(w, r, statusFor(err), loginPage{Next: next, Email: req.Email, Error: userMessage(err)})
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if _, err := h.sessions.Verify(ctx, token); err != nil {
		h.logger.InfoContext(ctx, "portal verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, defaultLanding, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.profiles.Me(ctx, "")
	if err != nil {
		if errors.Is(err, sentinel.ErrUnauthorized) {
			// refresh already failed and cleared the session
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		h.logger.WarnContext(ctx, "profile lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	if profile.Role == "" {
		profile.Role = h.sessions.CurrentUser().Role
	}
	h.render(w, r, http.StatusOK, "me", profile)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, page loginPage) {
	if page.Next == "" {
		page.Next = defaultLanding
	}
	h.render(w, r, status, "login", page)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			"page", name,
			"error", err,
		)
	}
}

// safeNext keeps redirects on this origin.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return defaultLanding
	}
	return next
}

func statusFor(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest:
		return apiErr.Status
	case errors.As(err, &apiErr):
		// an error envelope on a 200, e.g. unverified email
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// userMessage surfaces the backend's message; transport failures get the
// generic text.
func userMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, sentinel.ErrInvalidInput) {
		return err.Error()
	}
	return client.GenericMessage
}
