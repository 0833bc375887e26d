package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"holdem-live/holdem"
)

const defaultLocalDBName = "holdem_live.db"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection: writes serialize and ":memory:" stays a single database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.PersistedAt.IsZero() {
		rec.PersistedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO persisted_games (game_id, payload, version, phase, persisted_at_ms)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (game_id) DO UPDATE
SET
    payload = excluded.payload,
    version = persisted_games.version + 1,
    phase = excluded.phase,
    persisted_at_ms = excluded.persisted_at_ms
RETURNING version
`, rec.GameID, rec.Payload, string(rec.Phase), rec.PersistedAt.UTC().UnixMilli()).Scan(&rec.Version)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) Load(ctx context.Context, gameID string) (Record, error) {
	rec := Record{GameID: gameID}
	var phase string
	var persistedAtMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT payload, version, phase, persisted_at_ms
FROM persisted_games
WHERE game_id = ?
`, gameID).Scan(&rec.Payload, &rec.Version, &phase, &persistedAtMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Phase = holdem.Phase(phase)
	rec.PersistedAt = time.UnixMilli(persistedAtMs).UTC()
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM persisted_games WHERE game_id = ?`, gameID)
	return err
}

func (s *SQLiteStore) SweepCompleted(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
DELETE FROM persisted_games
WHERE phase = ?
  AND persisted_at_ms < ?
RETURNING game_id
`, string(holdem.PhaseComplete), cutoff.UTC().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS persisted_games (
    game_id TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    version INTEGER NOT NULL,
    phase TEXT NOT NULL,
    persisted_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_persisted_games_sweep ON persisted_games(phase, persisted_at_ms)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SQLitePath resolves the database file: the configured path, or a file in
// the user config dir.
func SQLitePath(configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		if v == ":memory:" {
			return v, nil
		}
		return filepath.Clean(v), nil
	}
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "HoldemLive", defaultLocalDBName), nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
