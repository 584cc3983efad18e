package httpguard

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct{ called bool }

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.called = true
	return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
}

func mustRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	return req
}

func TestGuard_AllowsExactAllowlistMatch(t *testing.T) {
	next := &stubTransport{}
	g := New([]string{"https://rpc.example.com"}, false, next)

	resp, err := g.RoundTrip(mustRequest(t, "https://rpc.example.com"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, next.called)
}

func TestGuard_BlocksNonAllowlistedURL(t *testing.T) {
	next := &stubTransport{}
	g := New([]string{"https://rpc.example.com"}, false, next)

	_, err := g.RoundTrip(mustRequest(t, "https://evil.example.com"))
	require.Error(t, err)
	var blocked *ErrBlocked
	assert.ErrorAs(t, err, &blocked)
	assert.False(t, next.called)
}

func TestGuard_AllowLocalhostPermitsLoopback(t *testing.T) {
	next := &stubTransport{}
	g := New(nil, true, next)

	_, err := g.RoundTrip(mustRequest(t, "http://127.0.0.1:8545"))
	require.NoError(t, err)
	assert.True(t, next.called)
}

func TestGuard_LocalhostBlockedWhenNotAllowed(t *testing.T) {
	next := &stubTransport{}
	g := New(nil, false, next)

	_, err := g.RoundTrip(mustRequest(t, "http://127.0.0.1:8545"))
	require.Error(t, err)
}

func TestGuard_TrailingSlashIgnoredInComparison(t *testing.T) {
	next := &stubTransport{}
	g := New([]string{"https://rpc.example.com/"}, false, next)

	_, err := g.RoundTrip(mustRequest(t, "https://rpc.example.com"))
	require.NoError(t, err)
	assert.True(t, next.called)
}

func TestInstall_WrapsExistingTransport(t *testing.T) {
	next := &stubTransport{}
	client := &http.Client{Transport: next}

	Install(client, []string{"https://rpc.example.com"}, false)

	_, err := client.Transport.RoundTrip(mustRequest(t, "https://blocked.example.com"))
	require.Error(t, err)
}
