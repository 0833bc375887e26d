// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PersistModeMemory   = "memory"
	PersistModeSQLite   = "sqlite"
	PersistModePostgres = "postgres"
	PersistModeOff      = "off"
)

type Config struct {
	Addr string

	PersistMode       string
	PersistSQLitePath string
	PersistDSN        string
	PersistTimeout    time.Duration

	TokenTTL    time.Duration
	TokenSecret string

	AuthSessionTTL time.Duration

	SmallBlind    int64
	BigBlind      int64
	StartingChips int64
	MaxPlayers    int

	SweepSchedule   string
	RecordRetention time.Duration

	LogFormat string
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		PersistMode:     PersistModeMemory,
		PersistTimeout:  2 * time.Second,
		TokenTTL:        15 * time.Minute,
		AuthSessionTTL:  30 * 24 * time.Hour,
		SmallBlind:      10,
		BigBlind:        20,
		StartingChips:   1000,
		MaxPlayers:      10,
		SweepSchedule:   "@every 1m",
		RecordRetention: time.Hour,
		LogFormat:       "json",
	}
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, falling back to Default for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var err error

	if v := strings.TrimSpace(getenv("ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.ToLower(strings.TrimSpace(getenv("PERSIST_MODE"))); v != "" {
		cfg.PersistMode = normalizePersistMode(v)
	}
	cfg.PersistSQLitePath = strings.TrimSpace(getenv("PERSIST_SQLITE_PATH"))
	cfg.PersistDSN = firstNonEmpty(getenv("PERSIST_DATABASE_DSN"), getenv("DATABASE_URL"))

	if cfg.PersistTimeout, err = durationOr(getenv, "PERSIST_TIMEOUT", cfg.PersistTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationOr(getenv, "TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	cfg.TokenSecret = getenv("TOKEN_SECRET")
	if cfg.AuthSessionTTL, err = durationOr(getenv, "AUTH_SESSION_TTL", cfg.AuthSessionTTL); err != nil {
		return Config{}, err
	}

	if cfg.SmallBlind, err = int64Or(getenv, "SMALL_BLIND", cfg.SmallBlind); err != nil {
		return Config{}, err
	}
	if cfg.BigBlind, err = int64Or(getenv, "BIG_BLIND", cfg.BigBlind); err != nil {
		return Config{}, err
	}
	if cfg.StartingChips, err = int64Or(getenv, "STARTING_CHIPS", cfg.StartingChips); err != nil {
		return Config{}, err
	}
	maxPlayers, err := int64Or(getenv, "MAX_PLAYERS", int64(cfg.MaxPlayers))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxPlayers = int(maxPlayers)

	if v := strings.TrimSpace(getenv("SWEEP_SCHEDULE")); v != "" {
		cfg.SweepSchedule = v
	}
	if cfg.RecordRetention, err = durationOr(getenv, "RECORD_RETENTION", cfg.RecordRetention); err != nil {
		return Config{}, err
	}
	if v := strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT"))); v != "" {
		cfg.LogFormat = v
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.PersistMode {
	case PersistModeMemory, PersistModeSQLite, PersistModePostgres, PersistModeOff:
	default:
		return fmt.Errorf("invalid PERSIST_MODE %q (supported: memory, sqlite, postgres, off)", c.PersistMode)
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT must be > 0")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be > 0")
	}
	// Tokens must verify against restored games after a restart.
	if c.Durable() && c.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required with PERSIST_MODE=%s", c.PersistMode)
	}
	if c.AuthSessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be > 0")
	}
	if c.SmallBlind < 0 || c.BigBlind <= 0 || c.SmallBlind > c.BigBlind {
		return fmt.Errorf("invalid blinds: sb=%d bb=%d", c.SmallBlind, c.BigBlind)
	}
	if c.StartingChips <= 0 {
		return fmt.Errorf("STARTING_CHIPS must be > 0")
	}
	if c.MaxPlayers < 2 {
		return fmt.Errorf("MAX_PLAYERS must be >= 2")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// Durable reports whether game records outlive the process.
func (c Config) Durable() bool {
	return c.PersistMode == PersistModeSQLite || c.PersistMode == PersistModePostgres
}

func normalizePersistMode(raw string) string {
	switch raw {
	case "mem":
		return PersistModeMemory
	case "local":
		return PersistModeSQLite
	case "db", "postgresql":
		return PersistModePostgres
	case "none", "disabled":
		return PersistModeOff
	default:
		return raw
	}
}

func durationOr(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func int64Or(getenv func(string) string, key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
