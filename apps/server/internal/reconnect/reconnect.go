// Package reconnect resumes a player's seat after a dropped connection,
// restoring the game from durable storage when it is no longer live.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"holdem-live/apps/server/internal/lobby"
	"holdem-live/holdem"
)

// Store is the part of the persistence gateway the coordinator needs.
type Store interface {
	Load(ctx context.Context, gameID string) (holdem.GameState, error)
	Restore(ctx context.Context, gameID string) (holdem.GameState, error)
}

type Validator interface {
	Validate(gameID, playerID, token string) error
}

type Result struct {
	GameState     holdem.GameState `json:"gameState"`
	ReconnectedAt time.Time        `json:"reconnectedAt"`
}

// Lookup resolves a game that is either live or restorable without
// registering it. It serves token issuance.
type Lookup struct {
	Games lobby.Repository
	Store Store
}

func (l Lookup) State(ctx context.Context, gameID string) (holdem.GameState, error) {
	if t, err := l.Games.Get(gameID); err == nil {
		return t.Snapshot(), nil
	}
	state, err := l.Store.Load(ctx, gameID)
	if err != nil {
		return holdem.GameState{}, notRestorable(gameID, err)
	}
	return state, nil
}

type Options struct {
	Now    func() time.Time
	Logger *zap.Logger
}

type Coordinator struct {
	tokens Validator
	games  lobby.Repository
	store  Store
	now    func() time.Time
	log    *zap.Logger

	restores singleflight.Group
}

func NewCoordinator(tokens Validator, games lobby.Repository, store Store, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		tokens: tokens,
		games:  games,
		store:  store,
		now:    opts.Now,
		log:    opts.Logger,
	}
}

// Reconnect validates token for (gameID, playerID) and returns the game's
// current state, restoring it first if it is not live. Concurrent reconnects
// to the same missing game share one restore.
func (c *Coordinator) Reconnect(ctx context.Context, gameID, playerID, token string) (Result, error) {
	if err := c.tokens.Validate(gameID, playerID, token); err != nil {
		c.log.Info("[Reconnect] token rejected",
			zap.String("game", gameID), zap.String("player", playerID), zap.Error(err))
		return Result{}, err
	}

	state, err := c.state(ctx, gameID)
	if err != nil {
		return Result{}, err
	}
	if _, ok := state.Player(playerID); !ok {
		return Result{}, fmt.Errorf("%w: %s", holdem.ErrPlayerNotFound, playerID)
	}

	c.log.Info("[Reconnect] player reconnected",
		zap.String("game", gameID), zap.String("player", playerID), zap.String("phase", string(state.Phase)))
	return Result{GameState: state, ReconnectedAt: c.now()}, nil
}

func (c *Coordinator) state(ctx context.Context, gameID string) (holdem.GameState, error) {
	if t, err := c.games.Get(gameID); err == nil {
		return t.Snapshot(), nil
	}
	// The restore outlives any single caller that gives up waiting.
	restoreCtx := context.WithoutCancel(ctx)
	v, err, shared := c.restores.Do(gameID, func() (interface{}, error) {
		return c.store.Restore(restoreCtx, gameID)
	})
	if err != nil {
		c.log.Warn("[Reconnect] restore failed", zap.String("game", gameID), zap.Error(err))
		return holdem.GameState{}, notRestorable(gameID, err)
	}
	if shared {
		c.log.Debug("[Reconnect] restore shared", zap.String("game", gameID))
	}
	return v.(holdem.GameState).Clone(), nil
}

func notRestorable(gameID string, err error) error {
	if errors.Is(err, lobby.ErrGameNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", lobby.ErrGameNotFound, gameID, err)
}
