package models

import (
	"encoding/json"
	"strings"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Normalize trims whitespace and lowercases the email before validation.
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Credentials is the session payload returned by login, verify and refresh.
// The backend names the access token "jwt"; "token" is accepted as an alias.
type Credentials struct {
	JWT   string `json:"jwt,omitempty"`
	Token string `json:"token,omitempty"`
	Role  Role   `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AccessToken returns the issued bearer token, whichever field carried it.
func (c Credentials) AccessToken() string {
	if c.JWT != "" {
		return c.JWT
	}
	return c.Token
}

// Profile is the /@me payload. Fields beyond the session-relevant ones are
// kept raw for pass-through display.
type Profile struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  Role            `json:"role"`
	Raw   json.RawMessage `json:"-"`
}

// Envelope is the backend's unified response shape.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OK reports whether the envelope signals success. Some endpoints answer
// HTTP 200 with status "error" (for example an unverified login).
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}
