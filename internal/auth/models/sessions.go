package models

// Role is the authenticated account type.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
)

// Valid reports whether r is one of the known account types.
func (r Role) Valid() bool {
	return r == RoleCandidate || r == RoleRecruiter
}

// Session is the client-side session record. It lives in memory only and is
// discarded on logout or on an unrecoverable refresh failure.
//
// An empty AccessToken or Role means the field is absent.
type Session struct {
	Role         Role   `json:"role,omitempty"`
	Name         string `json:"name,omitempty"`
	AccessToken  string `json:"-"`
	IsRefreshing bool   `json:"is_refreshing"`
	IsRefreshed  bool   `json:"is_refreshed"`
}

// IsAuthenticated is true whenever a token is present, regardless of IsRefreshed.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// SessionUpdate is a partial session record. Nil fields are left untouched
// when merged.
type SessionUpdate struct {
	Role         *Role
	Name         *string
	AccessToken  *string
	IsRefreshing *bool
	IsRefreshed  *bool
}

// Apply returns s with every non-nil field of u copied over it.
func (u SessionUpdate) Apply(s Session) Session {
	if u.Role != nil {
		s.Role = *u.Role
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.AccessToken != nil {
		s.AccessToken = *u.AccessToken
	}
	if u.IsRefreshing != nil {
		s.IsRefreshing = *u.IsRefreshing
	}
	if u.IsRefreshed != nil {
		s.IsRefreshed = *u.IsRefreshed
	}
	return s
}

// Refreshing builds the update that marks a refresh as in flight.
func Refreshing() SessionUpdate {
	return SessionUpdate{IsRefreshing: ptr(true)}
}

// Settled builds the update that ends the transitional state without touching
// credentials.
func Settled() SessionUpdate {
	return SessionUpdate{IsRefreshing: ptr(false)}
}

// FromCredentials builds the update applied after the backend issued a token.
// Role and name are only merged when the backend returned them.
func FromCredentials(c Credentials, refreshed bool) SessionUpdate {
	u := SessionUpdate{
		AccessToken:  ptr(c.AccessToken()),
		IsRefreshing: ptr(false),
		IsRefreshed:  ptr(refreshed),
	}
	if c.Role != "" {
		u.Role = ptr(c.Role)
	}
	if c.Name != "" {
		u.Name = ptr(c.Name)
	}
	return u
}

func ptr[T any](v T) *T {
	return &v
}
