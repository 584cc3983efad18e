// Package toolserver issues and validates the session tokens an IDE-facing
// tool server uses to authorize scan requests against the core. The
// tool-server framing itself (HTTP routes, transport) is an external
// collaborator; this package is only the handshake token it relies on.
package toolserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSessionExhausted is returned once a session has spent its scan budget.
var ErrSessionExhausted = errors.New("session scan budget exhausted")

// ErrSessionNotFound is returned for a session ID never registered in the store.
var ErrSessionNotFound = errors.New("session not found in store")

// Claims is the JWT payload for a tool-server session token.
type Claims struct {
	jwt.RegisteredClaims
	// SessionID is a server-generated UUID used as the key in the budget store.
	SessionID string `json:"sid"`
	// ScanBudget is the number of scans this session authorizes. The
	// server-side counter is authoritative; this field is signed and
	// informational only — the client cannot raise it.
	ScanBudget int64 `json:"scan_budget"`
}

// BudgetStore tracks server-side authoritative per-session scan counters.
// Implementations must be safe for concurrent use.
type BudgetStore interface {
	// RegisterSession initializes a counter for a newly issued session with
	// the given total scan budget. Calling it again for the same sessionID
	// is a no-op — issuance happens exactly once.
	RegisterSession(sessionID string, budget int64) error

	// UseScan atomically consumes one scan from the session's budget and
	// returns the number of scans remaining. Returns ErrSessionExhausted
	// when the budget is spent and ErrSessionNotFound if the session was
	// never registered.
	UseScan(sessionID string, budget int64) (remaining int64, err error)
}

type entry struct {
	used   int64
	budget int64
}

// InMemoryBudgetStore is an in-memory BudgetStore.
// NOTE: state is lost on process restart, so a session's budget resets if
// the tool server is restarted mid-session.
type InMemoryBudgetStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewInMemoryBudgetStore creates an empty in-memory session budget store.
func NewInMemoryBudgetStore() *InMemoryBudgetStore {
	return &InMemoryBudgetStore{sessions: make(map[string]*entry)}
}

// RegisterSession stores the scan budget for a newly issued session.
func (s *InMemoryBudgetStore) RegisterSession(sessionID string, budget int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; !exists {
		s.sessions[sessionID] = &entry{budget: budget}
	}
	return nil
}

// UseScan consumes one scan from sessionID's budget and returns the count
// remaining.
func (s *InMemoryBudgetStore) UseScan(sessionID string, budget int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	if e.used >= e.budget {
		return 0, ErrSessionExhausted
	}
	e.used++
	return e.budget - e.used, nil
}

// Manager issues and validates tool-server session JWTs.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  BudgetStore
}

// NewManager creates a Manager with the given HMAC secret, session
// lifetime, and budget store.
func NewManager(secret []byte, ttl time.Duration, store BudgetStore) *Manager {
	return &Manager{secret: secret, ttl: ttl, store: store}
}

// IssueSession signs a new session JWT for the given IDE client identity
// with scanBudget authorized scans and registers it in the budget store.
func (m *Manager) IssueSession(clientID string, scanBudget int64) (string, error) {
	sessionID := uuid.New().String()
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionID:  sessionID,
		ScanBudget: scanBudget,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}

	if err := m.store.RegisterSession(sessionID, scanBudget); err != nil {
		return "", fmt.Errorf("registering session: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies the JWT signature and expiry, returning the
// embedded claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}

// UseScan atomically consumes one scan from claims' session and returns the
// number remaining.
func (m *Manager) UseScan(claims *Claims) (int64, error) {
	return m.store.UseScan(claims.SessionID, claims.ScanBudget)
}
