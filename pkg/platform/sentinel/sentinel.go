package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and transports return
// these (optionally wrapped) so callers can decide how to degrade.
//
// These represent factual states, not validation details:
// - ErrUnauthorized: the backend rejected the credential (HTTP 401)
// - ErrRefreshFailed: the refresh credential could not be exchanged for a token
// - ErrNoCSRFToken: the readable CSRF cookie is missing, so no refresh is attempted
// - ErrInvalidInput: a request payload failed client-side checks before sending
// - ErrNotFound: entity does not exist
// - ErrUnavailable: backend temporarily unavailable
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRefreshFailed = errors.New("refresh failed")
	ErrNoCSRFToken   = errors.New("csrf token cookie missing")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrUnavailable   = errors.New("unavailable")
)
