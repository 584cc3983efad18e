package toolserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *Manager {
	return NewManager([]byte("test-secret"), time.Hour, NewInMemoryBudgetStore())
}

func TestIssueAndValidate_RoundTrips(t *testing.T) {
	m := newManager()
	token, err := m.IssueSession("client-1", 5)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
	assert.Equal(t, int64(5), claims.ScanBudget)
	assert.NotEmpty(t, claims.SessionID)
}

func TestValidate_RejectsTamperedToken(t *testing.T) {
	m := newManager()
	token, err := m.IssueSession("client-1", 5)
	require.NoError(t, err)

	_, err = m.Validate(token + "tamper")
	assert.Error(t, err)
}

func TestValidate_RejectsWrongSecret(t *testing.T) {
	m := newManager()
	token, err := m.IssueSession("client-1", 5)
	require.NoError(t, err)

	other := NewManager([]byte("other-secret"), time.Hour, NewInMemoryBudgetStore())
	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	m := NewManager([]byte("test-secret"), -time.Hour, NewInMemoryBudgetStore())
	token, err := m.IssueSession("client-1", 5)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestUseScan_DecrementsUntilExhausted(t *testing.T) {
	m := newManager()
	token, err := m.IssueSession("client-1", 2)
	require.NoError(t, err)
	claims, err := m.Validate(token)
	require.NoError(t, err)

	remaining, err := m.UseScan(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	remaining, err = m.UseScan(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	_, err = m.UseScan(claims)
	assert.ErrorIs(t, err, ErrSessionExhausted)
}

func TestUseScan_UnknownSessionErrors(t *testing.T) {
	m := newManager()
	_, err := m.UseScan(&Claims{SessionID: "ghost", ScanBudget: 1})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
