package cookiejar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	stdjar "net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"joblinker/pkg/platform/cookie"
)

// Jar is an http.CookieJar that remembers full cookie attributes, so it can
// tell readable cookies from HTTP-only ones and persist a profile between
// process runs. Session cookies are persisted too, the way a browser restores
// its session; the access token is never part of a cookie and never lands here.
type Jar struct {
	mu      sync.Mutex
	inner   *stdjar.Jar
	entries map[string]entry
	path    string
	now     func() time.Time
}

type entry struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	HttpOnly bool      `json:"http_only,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	host     string
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

// Option configures a Jar.
type Option func(*Jar)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) { j.now = now }
}

// New returns an empty in-memory jar. Save is a no-op unless a path was
// provided through Open.
func New(opts ...Option) *Jar {
	inner, _ := stdjar.New(nil) // error is always nil without options
	j := &Jar{inner: inner, entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Open loads the profile at path. A missing file yields an empty jar bound to
// that path.
func Open(path string, opts ...Option) (*Jar, error) {
	j := New(opts...)
	j.path = path
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie profile: %w", err)
	}
	var stored []entry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode cookie profile: %w", err)
	}
	now := j.now()
	for _, e := range stored {
		if e.expired(now) {
			continue
		}
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}
		j.SetCookies(u, []*http.Cookie{e.cookie()})
	}
	return j, nil
}

func (e entry) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     e.Name,
		Value:    e.Value,
		Path:     e.Path,
		Domain:   e.Domain,
		Expires:  e.Expires,
		HttpOnly: e.HttpOnly,
		Secure:   e.Secure,
	}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)

	now := j.now()
	origin := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	for _, c := range cookies {
		path := effectivePath(u, c.Path)
		e := entry{
			URL:      origin.String(),
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			HttpOnly: c.HttpOnly,
			Secure:   c.Secure,
			host:     u.Hostname(),
		}
		if c.MaxAge > 0 {
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		key := domainKey(u, c.Domain) + "|" + path + "|" + c.Name
		if c.MaxAge < 0 || e.expired(now) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = e
	}
}

// effectivePath mirrors the inner jar: a missing or relative Path attribute
// becomes the default-path of the request URL (RFC 6265 section 5.1.4).
func effectivePath(u *url.URL, attr string) string {
	if attr != "" && attr[0] == '/' {
		return attr
	}
	p := u.Path
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func domainKey(u *url.URL, attr string) string {
	if d := strings.TrimPrefix(strings.ToLower(attr), "."); d != "" {
		return d
	}
	return strings.ToLower(u.Hostname())
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Reader binds the jar to a backend origin as a cookie.Reader.
func (j *Jar) Reader(origin *url.URL) cookie.Reader {
	return originReader{jar: j, host: origin.Hostname()}
}

type originReader struct {
	jar  *Jar
	host string
}

// Value returns the readable cookie named name. HTTP-only cookies are
// invisible. When several match, the longest path wins, then a host-only
// cookie over a domain cookie.
func (r originReader) Value(name string) (string, bool) {
	r.jar.mu.Lock()
	defer r.jar.mu.Unlock()
	now := r.jar.now()
	var best *entry
	for _, e := range r.jar.entries {
		if e.Name != name || e.HttpOnly || e.expired(now) || !hostMatches(r.host, e) {
			continue
		}
		if best == nil || moreSpecific(e, *best) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return "", false
	}
	return best.Value, true
}

func moreSpecific(a, b entry) bool {
	if len(a.Path) != len(b.Path) {
		return len(a.Path) > len(b.Path)
	}
	if (a.Domain == "") != (b.Domain == "") {
		return a.Domain == ""
	}
	if len(a.Domain) != len(b.Domain) {
		return len(a.Domain) > len(b.Domain)
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Domain < b.Domain
}

func hostMatches(host string, e entry) bool {
	if e.host == host {
		return true
	}
	if e.Domain == "" {
		return false
	}
	d := e.Domain
	if d[0] == '.' {
		d = d[1:]
	}
	return host == d || (len(host) > len(d) && host[len(host)-len(d)-1:] == "."+d)
}

// Clear drops every cookie, in memory and in the profile.
func (j *Jar) Clear() error {
	j.mu.Lock()
	j.entries = make(map[string]entry)
	j.inner, _ = stdjar.New(nil)
	j.mu.Unlock()
	return j.Save()
}

// Save writes unexpired cookies to the profile file with owner-only
// permissions.
func (j *Jar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.path == "" {
		return nil
	}
	now := j.now()
	stored := make([]entry, 0, len(j.entries))
	for _, e := range j.entries {
		if !e.expired(now) {
			stored = append(stored, e)
		}
	}
	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookie profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cookie profile: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace cookie profile: %w", err)
	}
	return nil
}
