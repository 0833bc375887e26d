package auth

import (
	"fmt"

	"holdem-live/apps/server/internal/config"
)

// NewServiceFromConfig keeps accounts next to persisted games: in the same
// SQLite file or Postgres database, and in memory otherwise.
func NewServiceFromConfig(cfg config.Config, sqlitePath string) (Service, string, error) {
	switch cfg.PersistMode {
	case config.PersistModeSQLite:
		m, err := NewSQLiteManager(sqlitePath, cfg.AuthSessionTTL)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite accounts %s: %w", sqlitePath, err)
		}
		return m, "sqlite", nil
	case config.PersistModePostgres:
		m, err := NewPostgresManager(cfg.PersistDSN, cfg.AuthSessionTTL)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres accounts: %w", err)
		}
		return m, "postgres", nil
	default:
		return NewManager(cfg.AuthSessionTTL), "memory", nil
	}
}
