package auth

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Manager keeps accounts and sessions in memory. Used when persistence is in
// memory or off.
type Manager struct {
	mu sync.Mutex

	now           func() time.Time
	nextAccountID uint64
	sessionTTL    time.Duration
	sessions      map[string]sessionRecord // token -> account
	accountsByID  map[uint64]accountRecord
	accountsByKey map[string]uint64 // normalized username -> account
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type accountRecord struct {
	AccountID     uint64
	Username      string
	PasswordHash  []byte
	LastLoginTime time.Time
}

var _ Service = (*Manager)(nil)

func NewManager(sessionTTL time.Duration) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Manager{
		now:           time.Now,
		nextAccountID: 100000,
		sessionTTL:    sessionTTL,
		sessions:      make(map[string]sessionRecord),
		accountsByID:  make(map[uint64]accountRecord),
		accountsByKey: make(map[string]uint64),
	}
}

func (m *Manager) Close() error { return nil }

func (m *Manager) issueSessionLocked(accountID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{AccountID: accountID, ExpiresAt: now.Add(m.sessionTTL)}
	return token
}

// Register creates an account and returns an authenticated session.
func (m *Manager) Register(username, password string) (uint64, string, error) {
	if err := validateUsername(username); err != nil {
		return 0, "", err
	}
	if err := validatePassword(password); err != nil {
		return 0, "", err
	}
	normalized := normalizeUsername(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accountsByKey[normalized]; exists {
		return 0, "", ErrUsernameTaken
	}
	m.nextAccountID++
	id := m.nextAccountID
	now := m.now()
	m.accountsByID[id] = accountRecord{
		AccountID:     id,
		Username:      normalized,
		PasswordHash:  hash,
		LastLoginTime: now,
	}
	m.accountsByKey[normalized] = id
	return id, m.issueSessionLocked(id, now), nil
}

func (m *Manager) Login(username, password string) (uint64, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, exists := m.accountsByKey[normalized]
	if !exists {
		return 0, "", ErrInvalidCredentials
	}
	profile := m.accountsByID[id]
	if bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}
	now := m.now()
	profile.LastLoginTime = now
	m.accountsByID[id] = profile
	return id, m.issueSessionLocked(id, now), nil
}

// ResolveSession validates token and slides its expiry forward.
func (m *Manager) ResolveSession(token string) (uint64, string, bool) {
	if token == "" {
		return 0, "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, exists := m.sessions[token]
	if !exists {
		return 0, "", false
	}
	now := m.now()
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return 0, "", false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	return rec.AccountID, m.accountsByID[rec.AccountID].Username, true
}

func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
