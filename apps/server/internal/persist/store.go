// Package persist snapshots live games to durable storage and brings them
// back. Storage is best effort: every failure is reported as an
// UnavailableError and never blocks gameplay.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"holdem-live/holdem"
)

var (
	ErrRecordNotFound = holdem.NotFoundError("persisted record not found")
	ErrUnavailable    = errors.New("persistence unavailable")
)

// UnavailableError reports that the durable store could not serve Op.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil || errors.Is(e.Err, ErrUnavailable) {
		return fmt.Sprintf("persistence unavailable: %s", e.Op)
	}
	return fmt.Sprintf("persistence unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Record is one persisted game. Version starts at 1 and grows by one on every
// save of the same game id.
type Record struct {
	GameID      string
	Payload     []byte
	Version     int64
	PersistedAt time.Time
	Phase       holdem.Phase
}

// Store is a durable home for records. Save must assign the version
// atomically so concurrent saves never hand out the same number.
type Store interface {
	Save(ctx context.Context, rec Record) (Record, error)
	Load(ctx context.Context, gameID string) (Record, error)
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, gameID string) error
	// SweepCompleted deletes records of completed games persisted before
	// cutoff and returns their ids.
	SweepCompleted(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}

// MemoryStore keeps records in process. Used in tests and single-binary dev.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Payload = append([]byte(nil), rec.Payload...)
	rec.Version = m.records[rec.GameID].Version + 1
	m.records[rec.GameID] = rec
	return rec, nil
}

func (m *MemoryStore) Load(ctx context.Context, gameID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[gameID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, nil
}

func (m *MemoryStore) Delete(ctx context.Context, gameID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, gameID)
	return nil
}

func (m *MemoryStore) SweepCompleted(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, rec := range m.records {
		if rec.Phase == holdem.PhaseComplete && rec.PersistedAt.Before(cutoff) {
			delete(m.records, id)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }

// UnavailableStore stands in when persistence is switched off or could not
// be reached at startup.
type UnavailableStore struct{}

func (UnavailableStore) Save(context.Context, Record) (Record, error) {
	return Record{}, ErrUnavailable
}

func (UnavailableStore) Load(context.Context, string) (Record, error) {
	return Record{}, ErrUnavailable
}

func (UnavailableStore) Delete(context.Context, string) error { return ErrUnavailable }

func (UnavailableStore) SweepCompleted(context.Context, time.Time) ([]string, error) {
	return nil, ErrUnavailable
}

func (UnavailableStore) Close() error { return nil }
