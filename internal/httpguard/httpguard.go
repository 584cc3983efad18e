// Package httpguard installs a process-wide outbound HTTP allowlist for
// offline mode: once armed, any request whose URL isn't one of the
// configured upstream RPC URLs (or, optionally, localhost) is blocked
// before a single byte leaves the process.
package httpguard

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrBlocked is the error of every rejection, so callers can match on it
// with errors.As regardless of which URL triggered it.
type ErrBlocked struct {
	URL string
}

func (e *ErrBlocked) Error() string {
	return fmt.Sprintf("blocked HTTP request: %s is not on the allowlist", e.URL)
}

// Guard wraps an http.RoundTripper and rejects any request whose URL isn't
// allowlisted. A nil Guard (or one with Enabled=false) round-trips freely.
type Guard struct {
	Enabled        bool
	AllowLocalhost bool
	allowed        map[string]struct{}
	next           http.RoundTripper
}

// New builds a Guard over allowlist, wrapping next (http.DefaultTransport if
// nil). allowLocalhost additionally permits any 127.0.0.1/localhost/::1 URL,
// regardless of port, which local simulation/dev RPC backends need.
func New(allowlist []string, allowLocalhost bool, next http.RoundTripper) *Guard {
	if next == nil {
		next = http.DefaultTransport
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, u := range allowlist {
		allowed[normalize(u)] = struct{}{}
	}
	return &Guard{
		Enabled:        true,
		AllowLocalhost: allowLocalhost,
		allowed:        allowed,
		next:           next,
	}
}

// RoundTrip implements http.RoundTripper.
func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	if g == nil || !g.Enabled {
		return g.fallback(req)
	}
	if !g.permits(req.URL) {
		return nil, &ErrBlocked{URL: req.URL.String()}
	}
	return g.next.RoundTrip(req)
}

func (g *Guard) fallback(req *http.Request) (*http.Response, error) {
	next := http.DefaultTransport
	if g != nil && g.next != nil {
		next = g.next
	}
	return next.RoundTrip(req)
}

func (g *Guard) permits(u *url.URL) bool {
	if u == nil {
		return false
	}
	if g.AllowLocalhost && isLocalhost(u) {
		return true
	}
	_, ok := g.allowed[normalize(u.String())]
	return ok
}

func isLocalhost(u *url.URL) bool {
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func normalize(raw string) string {
	return strings.TrimRight(raw, "/")
}

// Install wraps client's Transport (http.DefaultClient if client is nil) in
// a Guard, returning the client for convenience. This is the offline-mode
// startup hook: called once when --offline is set, after which every
// outbound call through client is allowlist-checked.
func Install(client *http.Client, allowlist []string, allowLocalhost bool) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	client.Transport = New(allowlist, allowLocalhost, client.Transport)
	return client
}
