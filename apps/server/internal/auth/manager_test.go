package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type managerCase struct {
	svc   Service
	clock *clock
}

// managers returns every Service implementation, each on its own fake clock.
func managers(t *testing.T) map[string]managerCase {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	memClock := &clock{now: start}
	mem := NewManager(time.Hour)
	mem.now = memClock.Now

	sqlClock := &clock{now: start}
	lite, err := NewSQLiteManager(":memory:", time.Hour)
	require.NoError(t, err)
	lite.now = sqlClock.Now
	t.Cleanup(func() { _ = lite.Close() })

	return map[string]managerCase{
		"memory": {mem, memClock},
		"sqlite": {lite, sqlClock},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			accountID, token, err := m.svc.Register("alice_01", "secret12")
			require.NoError(t, err)
			assert.NotZero(t, accountID)
			assert.NotEmpty(t, token)

			resolvedID, username, ok := m.svc.ResolveSession(token)
			require.True(t, ok)
			assert.Equal(t, accountID, resolvedID)
			assert.Equal(t, "alice_01", username)

			loginID, loginToken, err := m.svc.Login("ALICE_01", "secret12")
			require.NoError(t, err)
			assert.Equal(t, accountID, loginID)
			assert.NotEqual(t, token, loginToken)
		})
	}
}

func TestRegisterRejects(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := m.svc.Register("alice_01", "secret12")
			require.NoError(t, err)
			_, _, err = m.svc.Register("Alice_01", "secret12")
			assert.ErrorIs(t, err, ErrUsernameTaken)

			_, _, err = m.svc.Register("x", "secret12")
			assert.ErrorIs(t, err, ErrInvalidUsername)
			_, _, err = m.svc.Register("bob_01", "short")
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := m.svc.Register("alice_01", "secret12")
			require.NoError(t, err)
			_, _, err = m.svc.Login("alice_01", "wrong-password")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			_, _, err = m.svc.Login("nobody", "secret12")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestSessionsExpireAndLogout(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			_, token, err := m.svc.Register("alice_01", "secret12")
			require.NoError(t, err)

			// resolving slides the expiry forward
			m.clock.now = m.clock.now.Add(50 * time.Minute)
			_, _, ok := m.svc.ResolveSession(token)
			require.True(t, ok)
			m.clock.now = m.clock.now.Add(50 * time.Minute)
			_, _, ok = m.svc.ResolveSession(token)
			require.True(t, ok)

			m.clock.now = m.clock.now.Add(2 * time.Hour)
			_, _, ok = m.svc.ResolveSession(token)
			assert.False(t, ok)

			_, token, err = m.svc.Login("alice_01", "secret12")
			require.NoError(t, err)
			m.svc.Logout(token)
			_, _, ok = m.svc.ResolveSession(token)
			assert.False(t, ok)
		})
	}
}

func TestPlaceholderRebinding(t *testing.T) {
	m := &SQLManager{dollarArgs: true}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", m.q("UPDATE t SET a = ? WHERE b = ?"))
	m.dollarArgs = false
	assert.Equal(t, "WHERE b = ?", m.q("WHERE b = ?"))
}
