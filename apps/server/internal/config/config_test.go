package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2*time.Second, cfg.PersistTimeout)
	assert.Equal(t, PersistModeMemory, cfg.PersistMode)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"ADDR":             ":9000",
		"PERSIST_MODE":     "local",
		"DATABASE_URL":     "postgres://x",
		"PERSIST_TIMEOUT":  "500ms",
		"TOKEN_TTL":        "1m",
		"TOKEN_SECRET":     "shh",
		"AUTH_SESSION_TTL": "24h",
		"SMALL_BLIND":      "5",
		"BIG_BLIND":        "10",
		"MAX_PLAYERS":      "6",
		"RECORD_RETENTION": "10m",
		"LOG_FORMAT":       "Console",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, PersistModeSQLite, cfg.PersistMode)
	assert.Equal(t, "postgres://x", cfg.PersistDSN)
	assert.Equal(t, 500*time.Millisecond, cfg.PersistTimeout)
	assert.Equal(t, time.Minute, cfg.TokenTTL)
	assert.Equal(t, "shh", cfg.TokenSecret)
	assert.True(t, cfg.Durable())
	assert.Equal(t, 24*time.Hour, cfg.AuthSessionTTL)
	assert.Equal(t, int64(5), cfg.SmallBlind)
	assert.Equal(t, 6, cfg.MaxPlayers)
	assert.Equal(t, 10*time.Minute, cfg.RecordRetention)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestFromEnv_Rejects(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"mode":     {"PERSIST_MODE": "redis"},
		"duration": {"TOKEN_TTL": "soon"},
		"blinds":   {"SMALL_BLIND": "50", "BIG_BLIND": "20"},
		"players":  {"MAX_PLAYERS": "1"},
		"number":   {"STARTING_CHIPS": "lots"},
		"secret":   {"PERSIST_MODE": "postgres"},
	} {
		_, err := FromEnv(envMap(env))
		assert.Error(t, err, name)
	}
}

func TestFromEnv_SecretOptionalWithoutDurableStore(t *testing.T) {
	for _, mode := range []string{"memory", "off"} {
		cfg, err := FromEnv(envMap(map[string]string{"PERSIST_MODE": mode}))
		require.NoError(t, err, mode)
		assert.False(t, cfg.Durable(), mode)
		assert.Empty(t, cfg.TokenSecret, mode)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HOLDEM_CONFIG_TEST_KEY=1\nSTARTING_CHIPS=2500\n"), 0o600))
	t.Setenv("STARTING_CHIPS", "")
	require.NoError(t, os.Unsetenv("STARTING_CHIPS"))
	t.Cleanup(func() { _ = os.Unsetenv("HOLDEM_CONFIG_TEST_KEY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), cfg.StartingChips)
	assert.Equal(t, "1", os.Getenv("HOLDEM_CONFIG_TEST_KEY"))
}
