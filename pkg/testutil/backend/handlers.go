package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshCookieName = "refresh_token_cookie"
	csrfCookieName    = "csrf_refresh_token"
	csrfHeaderName    = "X-CSRF-TOKEN"
)

type contextKeyUser struct{}

func writeEnvelope(w http.ResponseWriter, status int, state, message string, data any) {
	if data == nil {
		data = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  state,
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, "error", message, nil)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if !govalidator.IsEmail(req.Email) || req.Name == "" || len(req.Password) < 6 ||
		(req.Role != "candidate" && req.Role != "recruiter") {
		writeError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}
	b.mu.Lock()
	_, exists := b.users[req.Email]
	b.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	b.CreateUser(req.Name, req.Email, req.Password, req.Role, false)
	b.issueVerificationToken(req.Email)
	writeEnvelope(w, http.StatusCreated, "success", "User registered successfully", map[string]string{"role": req.Role})
}

func (b *Backend) issueVerificationToken(email string) string {
	token := uuid.NewString()
	b.mu.Lock()
	b.verifyTokens[token] = email
	b.mu.Unlock()
	return token
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	b.mu.Lock()
	email, ok := b.verifyTokens[token]
	delete(b.verifyTokens, token)
	u := b.users[email]
	if ok && u != nil {
		u.Verified = true
	}
	b.mu.Unlock()
	if !ok || u == nil {
		writeError(w, http.StatusBadRequest, "The verification link is invalid or has expired.")
		return
	}
	access, err := b.issueSession(w, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeEnvelope(w, http.StatusOK, "success", "User logged in successfully",
		map[string]string{"role": u.Role, "name": u.Name, "jwt": access})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	b.mu.Lock()
	u := b.users[req.Email]
	b.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !u.Verified {
		b.issueVerificationToken(u.Email)
		// the original backend answers 200 with an error envelope here
		writeError(w, http.StatusOK, "Verify your email")
		return
	}
	access, err := b.issueSession(w, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeEnvelope(w, http.StatusOK, "success", "User logged in successfully",
		map[string]string{"role": u.Role, "jwt": access})
}

// issueSession mints an access token and sets the refresh/CSRF cookie pair.
func (b *Backend) issueSession(w http.ResponseWriter, u *user) (string, error) {
	b.mu.Lock()
	gen := b.generation
	b.mu.Unlock()
	access, err := b.sign(u.ID, tokenTypeAccess, "", b.accessTTL, gen)
	if err != nil {
		return "", err
	}
	csrf := uuid.NewString()
	refresh, err := b.sign(u.ID, tokenTypeRefresh, csrf, b.refreshTTL, 0)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: refresh, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: csrf, Path: "/", SameSite: http.SameSiteLaxMode})
	return access, nil
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delay, fail, gen, withRole := b.refreshDelay, b.failRefresh, b.generation, b.refreshRole
	b.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing token: missing cookie")
		return
	}
	rc, err := b.parse(c.Value, tokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Your token has expired. Please log in again.")
		return
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" || header != rc.CSRF {
		writeError(w, http.StatusUnauthorized, "CSRF double submit tokens do not match")
		return
	}
	b.mu.Lock()
	revoked := b.revoked[rc.ID]
	u := b.byID[rc.Subject]
	b.mu.Unlock()
	if revoked || u == nil {
		writeError(w, http.StatusUnauthorized, "The token has been revoked.")
		return
	}
	access, err := b.sign(rc.Subject, tokenTypeAccess, "", b.accessTTL, gen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	data := map[string]string{"jwt": access}
	if withRole {
		data["role"] = u.Role
	}
	writeEnvelope(w, http.StatusOK, "success", "Token refreshed successfully", data)
}

func (b *Backend) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing token: Missing Authorization Header")
			return
		}
		b.mu.Lock()
		b.seenTokens = append(b.seenTokens, raw)
		reject, gen := b.rejectAll, b.generation
		b.mu.Unlock()

		c, err := b.parse(raw, tokenTypeAccess)
		switch {
		case reject:
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		case errors.Is(err, jwt.ErrTokenExpired), err == nil && c.Gen < gen:
			writeError(w, http.StatusUnauthorized, "Your token has expired. Please log in again.")
			return
		case err != nil:
			writeError(w, http.StatusUnprocessableEntity, "The token is invalid: "+err.Error())
			return
		}
		b.mu.Lock()
		u := b.byID[c.Subject]
		b.mu.Unlock()
		if u == nil {
			writeError(w, http.StatusUnauthorized, "User not found.")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUser{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(contextKeyUser{}).(*user)
	return u
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookieName); err == nil {
		if rc, err := b.parse(c.Value, tokenTypeRefresh); err == nil {
			b.mu.Lock()
			b.revoked[rc.ID] = true
			b.mu.Unlock()
		}
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Path: "/", MaxAge: -1})
	writeEnvelope(w, http.StatusOK, "success", "Logged out successfully", nil)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeEnvelope(w, http.StatusOK, "success", "User details fetched successfully", map[string]string{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	})
}

func (b *Backend) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, "success", "Jobs fetched successfully", []map[string]string{
		{"id": "job-1", "title": "Backend Engineer"},
		{"id": "job-2", "title": "Recruiting Coordinator"},
	})
}

func (b *Backend) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var job map[string]any
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	job["id"] = uuid.NewString()
	writeEnvelope(w, http.StatusCreated, "success", "Job created successfully", job)
}
