// Package cookie defines how the client reads the CSRF half of the
// double-submit refresh contract.
//
// The backend sets two cookies when it issues a session:
//
//	refresh_token_cookie  HttpOnly; sent automatically with the refresh call, never read
//	csrf_refresh_token    readable; its value is echoed in the X-CSRF-TOKEN header
//
// Only the readable cookie may be inspected. The CSRF value is copied from the
// cookie to the header per request and is never stored anywhere else.
package cookie

const (
	// RefreshCookie holds the HTTP-only refresh credential.
	RefreshCookie = "refresh_token_cookie"
	// CSRFRefreshCookie holds the readable CSRF token paired with RefreshCookie.
	CSRFRefreshCookie = "csrf_refresh_token"
	// CSRFHeader carries the echoed CSRF token on the refresh request.
	CSRFHeader = "X-CSRF-TOKEN"
)

// Reader returns the value of a named, non-HTTP-only cookie for the backend
// origin. It reports false when the cookie is missing or HTTP-only.
type Reader interface {
	Value(name string) (string, bool)
}

// CSRFToken reads the refresh CSRF token through r.
func CSRFToken(r Reader) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.Value(CSRFRefreshCookie)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Static is a fixed cookie set, useful when cookies come from outside the
// process (for example a header copied from a browser).
type Static map[string]string

func (s Static) Value(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}
