package persist

import (
	"fmt"

	"holdem-live/apps/server/internal/config"
)

// NewStoreFromConfig opens the store selected by PERSIST_MODE and returns it
// with a short label for logs.
func NewStoreFromConfig(cfg config.Config) (Store, string, error) {
	switch cfg.PersistMode {
	case config.PersistModeMemory:
		return NewMemoryStore(), "memory", nil
	case config.PersistModeSQLite:
		path, err := SQLitePath(cfg.PersistSQLitePath)
		if err != nil {
			return nil, "", err
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite %s: %w", path, err)
		}
		return store, "sqlite", nil
	case config.PersistModePostgres:
		store, err := NewPostgresStore(cfg.PersistDSN)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		return store, "postgres", nil
	case config.PersistModeOff:
		return UnavailableStore{}, "off", nil
	default:
		return nil, "", fmt.Errorf("invalid persist mode %q", cfg.PersistMode)
	}
}
