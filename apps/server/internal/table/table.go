// Package table serializes every mutation of one game behind a lock and
// announces each committed state.
package table

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"holdem-live/apps/server/internal/broadcast"
	"holdem-live/holdem"
)

var ErrTableClosed = errors.New("table closed")

// CommitHook runs after a transition has been committed and the table lock
// released. It must not block; persistence hooks hand off to a goroutine.
type CommitHook func(gameID string, state holdem.GameState)

type Options struct {
	Hub      *broadcast.Hub
	OnCommit CommitHook
	Logger   *zap.Logger
	Now      func() time.Time
}

// Table wraps one holdem.Game. Deal, Act and StartNextHand run under mu, and
// the resulting update is published before mu is released, so subscribers
// observe states in commit order.
type Table struct {
	ID string

	mu         sync.Mutex
	game       *holdem.Game
	closed     bool
	lastActive time.Time

	hub      *broadcast.Hub
	onCommit CommitHook
	log      *zap.Logger
	now      func() time.Time
}

func New(game *holdem.Game, opts Options) *Table {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Table{
		ID:         game.ID(),
		game:       game,
		lastActive: opts.Now(),
		hub:        opts.Hub,
		onCommit:   opts.OnCommit,
		log:        opts.Logger.With(zap.String("game", game.ID())),
		now:        opts.Now,
	}
}

func (t *Table) Deal() (holdem.GameState, error) {
	return t.commit("deal", t.game.Deal)
}

func (t *Table) Act(playerID string, a holdem.Action) (holdem.GameState, error) {
	if a == nil {
		return holdem.GameState{}, holdem.ErrUnknownAction
	}
	return t.commit(a.Kind(), func() (holdem.GameState, error) {
		return t.game.Act(playerID, a)
	})
}

func (t *Table) StartNextHand() (holdem.GameState, error) {
	return t.commit("next_hand", t.game.StartNextHand)
}

func (t *Table) commit(op string, fn func() (holdem.GameState, error)) (holdem.GameState, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return holdem.GameState{}, ErrTableClosed
	}
	state, err := fn()
	if err != nil {
		t.mu.Unlock()
		t.log.Debug("[Table] transition rejected", zap.String("op", op), zap.Error(err))
		return holdem.GameState{}, err
	}
	t.lastActive = t.now()
	if t.hub != nil {
		t.hub.Publish(t.ID, StateEvent(state))
	}
	t.mu.Unlock()

	t.log.Debug("[Table] committed",
		zap.String("op", op),
		zap.String("phase", string(state.Phase)),
		zap.Int("hand", state.HandNumber),
		zap.Int64("pot", state.Pot))
	if t.onCommit != nil {
		t.onCommit(t.ID, state)
	}
	return state, nil
}

// Subscribe registers sub on the hub with the current state as its first
// update. Holding the table lock guarantees no commit falls between the
// snapshot and the registration.
func (t *Table) Subscribe() (*broadcast.Subscriber, error) {
	if t.hub == nil {
		return nil, errors.New("table has no broadcast hub")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTableClosed
	}
	return t.hub.Subscribe(t.ID, StateEvent(t.game.Snapshot())), nil
}

// Snapshot returns the full state, including the private deck and seed.
func (t *Table) Snapshot() holdem.GameState {
	return t.game.Snapshot()
}

// IsIdleFor reports whether nothing was committed for at least ttl.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.lastActive) >= ttl
}

// Close rejects further transitions and disconnects subscribers.
func (t *Table) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	if t.hub != nil {
		t.hub.CloseGame(t.ID)
	}
	t.log.Info("[Table] closed")
}

func (t *Table) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// StateEvent wraps the public projection of s for push subscribers.
func StateEvent(s holdem.GameState) broadcast.Event {
	return broadcast.Event{Type: broadcast.EventGameStateUpdate, Data: s.Public()}
}
