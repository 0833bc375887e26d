// Package lobby is the registry of live games.
package lobby

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdem-live/apps/server/internal/broadcast"
	"holdem-live/apps/server/internal/table"
	"holdem-live/holdem"
)

// ErrGameNotFound is returned for a game id that is not live.
var ErrGameNotFound = holdem.NotFoundError("game not found")

// Repository is the live-game registry used by the HTTP surface, the
// persistence gateway and the reconnection coordinator.
type Repository interface {
	Get(gameID string) (*table.Table, error)
	// Put registers game, replacing any live table with the same id.
	Put(game *holdem.Game) *table.Table
	// PutIfAbsent registers game unless a table with its id is already live,
	// in which case the live table is returned and loaded is true.
	PutIfAbsent(game *holdem.Game) (t *table.Table, loaded bool)
	Delete(gameID string) bool
	List() []string
}

type Options struct {
	Hub      *broadcast.Hub
	OnCommit table.CommitHook
	Logger   *zap.Logger
}

// Lobby manages all tables. Every table it creates shares the same hub and
// commit hook.
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table

	cfg  holdem.Config
	opts Options
	log  *zap.Logger
}

var _ Repository = (*Lobby)(nil)

func New(cfg holdem.Config, opts Options) *Lobby {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Lobby{
		tables: make(map[string]*table.Table),
		cfg:    cfg,
		opts:   opts,
		log:    opts.Logger,
	}
}

// Config is the game configuration new and restored tables are built with.
func (l *Lobby) Config() holdem.Config { return l.cfg }

// SetCommitHook replaces the hook every table reports commits to. It exists
// so the persistence gateway, which needs the lobby, can be wired afterwards.
func (l *Lobby) SetCommitHook(hook table.CommitHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.OnCommit = hook
}

func (l *Lobby) committed(gameID string, state holdem.GameState) {
	l.mu.RLock()
	hook := l.opts.OnCommit
	l.mu.RUnlock()
	if hook != nil {
		hook(gameID, state)
	}
}

// Create starts a new waiting game with a fresh id.
func (l *Lobby) Create(seats []holdem.Seat) (*table.Table, error) {
	gameID := uuid.NewString()
	game, err := holdem.NewGame(l.cfg, gameID, seats)
	if err != nil {
		return nil, err
	}
	t, loaded := l.PutIfAbsent(game)
	if loaded {
		return nil, fmt.Errorf("game id collision: %s", gameID)
	}
	l.log.Info("[Lobby] game created", zap.String("game", gameID), zap.Int("players", len(seats)))
	return t, nil
}

func (l *Lobby) Get(gameID string) (*table.Table, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tables[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return t, nil
}

func (l *Lobby) Put(game *holdem.Game) *table.Table {
	l.mu.Lock()
	old := l.tables[game.ID()]
	t := table.New(game, l.tableOptions())
	l.tables[game.ID()] = t
	l.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return t
}

func (l *Lobby) PutIfAbsent(game *holdem.Game) (*table.Table, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tables[game.ID()]; ok {
		return t, true
	}
	t := table.New(game, l.tableOptions())
	l.tables[game.ID()] = t
	return t, false
}

// Delete evicts and closes a live table. It reports whether one existed.
func (l *Lobby) Delete(gameID string) bool {
	l.mu.Lock()
	t, ok := l.tables[gameID]
	delete(l.tables, gameID)
	l.mu.Unlock()
	if ok {
		t.Close()
		l.log.Info("[Lobby] game evicted", zap.String("game", gameID))
	}
	return ok
}

// List returns all live game ids, sorted.
func (l *Lobby) List() []string {
	l.mu.RLock()
	ids := make([]string, 0, len(l.tables))
	for id := range l.tables {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (l *Lobby) tableOptions() table.Options {
	return table.Options{
		Hub:      l.opts.Hub,
		OnCommit: l.committed,
		Logger:   l.log,
	}
}
