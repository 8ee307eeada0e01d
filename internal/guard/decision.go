package guard

import "joblinker/internal/auth/models"

// Decision is what a protected view does with the current session.
type Decision string

const (
	Render   Decision = "render"
	Loading  Decision = "loading"
	Redirect Decision = "redirect"
)

// Decide maps a session record to a view decision. A present token wins over
// an in-flight refresh.
func Decide(s models.Session) Decision {
	switch {
	case s.AccessToken != "" || s.IsRefreshed:
		return Render
	case s.IsRefreshing:
		return Loading
	default:
		return Redirect
	}
}

// State is the per-process position in the bootstrap lifecycle.
type State string

const (
	StateUnknown         State = "unknown"
	StateRefreshing      State = "refreshing"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)
