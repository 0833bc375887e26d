package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"holdem-live/apps/server/internal/codec"
	"holdem-live/apps/server/internal/lobby"
	"holdem-live/holdem"
)

const defaultTimeout = 2 * time.Second

// Receipt acknowledges a successful persist.
type Receipt struct {
	GameID      string    `json:"gameId"`
	PersistedAt time.Time `json:"persistedAt"`
	Version     int64     `json:"version"`
}

type GatewayOptions struct {
	// GameConfig is used to rebuild restored games.
	GameConfig holdem.Config
	Timeout    time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Gateway moves game states between the lobby and a Store.
type Gateway struct {
	store   Store
	games   lobby.Repository
	gameCfg holdem.Config
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*flushWorker // one background writer per game
	wg      sync.WaitGroup
}

type flushWorker struct {
	next *holdem.GameState // latest unsaved state, nil when drained
	done chan struct{}
}

func NewGateway(store Store, games lobby.Repository, opts GatewayOptions) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		store:   store,
		games:   games,
		gameCfg: opts.GameConfig,
		timeout: opts.Timeout,
		log:     opts.Logger,
		now:     opts.Now,
		pending: make(map[string]*flushWorker),
	}
}

// Persist snapshots the live game and saves it.
func (g *Gateway) Persist(ctx context.Context, gameID string) (Receipt, error) {
	t, err := g.games.Get(gameID)
	if err != nil {
		return Receipt{}, err
	}
	return g.PersistState(ctx, t.Snapshot())
}

func (g *Gateway) PersistState(ctx context.Context, state holdem.GameState) (Receipt, error) {
	payload, err := codec.EncodeState(state)
	if err != nil {
		return Receipt{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	rec, err := g.store.Save(ctx, Record{
		GameID:      state.GameID,
		Payload:     payload,
		PersistedAt: g.now().UTC(),
		Phase:       state.Phase,
	})
	if err != nil {
		return Receipt{}, unavailable("save", err)
	}
	return Receipt{GameID: rec.GameID, PersistedAt: rec.PersistedAt, Version: rec.Version}, nil
}

// PersistAsync schedules state to be saved in the background. While a save
// for the same game is in flight, newer states replace older queued ones, so
// an old state is never written after a newer one.
func (g *Gateway) PersistAsync(gameID string, state holdem.GameState) {
	g.mu.Lock()
	if w, ok := g.pending[gameID]; ok {
		w.next = &state
		g.mu.Unlock()
		return
	}
	w := &flushWorker{next: &state, done: make(chan struct{})}
	g.pending[gameID] = w
	g.wg.Add(1)
	g.mu.Unlock()

	go g.flush(gameID, w)
}

func (g *Gateway) flush(gameID string, w *flushWorker) {
	defer g.wg.Done()
	defer close(w.done)
	for {
		g.mu.Lock()
		state := w.next
		if state == nil {
			delete(g.pending, gameID)
			g.mu.Unlock()
			return
		}
		w.next = nil
		g.mu.Unlock()

		receipt, err := g.PersistState(context.Background(), *state)
		if err != nil {
			g.log.Warn("[Persist] background persist failed", zap.String("game", gameID), zap.Error(err))
			continue
		}
		g.log.Debug("[Persist] persisted",
			zap.String("game", gameID),
			zap.Int64("version", receipt.Version),
			zap.String("phase", string(state.Phase)))
	}
}

// Wait blocks until background saves scheduled so far are done.
func (g *Gateway) Wait() { g.wg.Wait() }

// Load decodes the latest record without registering it.
func (g *Gateway) Load(ctx context.Context, gameID string) (holdem.GameState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	rec, err := g.store.Load(ctx, gameID)
	if err != nil {
		return holdem.GameState{}, unavailable("load", err)
	}
	state, err := codec.DecodeState(rec.Payload)
	if err != nil {
		return holdem.GameState{}, fmt.Errorf("decode record %s v%d: %w", gameID, rec.Version, err)
	}
	if state.GameID != gameID {
		return holdem.GameState{}, holdem.ErrInvalidState(fmt.Sprintf("record %s holds game %s", gameID, state.GameID))
	}
	return state, nil
}

// Restore loads the latest record and registers it with the lobby unless the
// game is already live. A live game always wins and its state is returned.
func (g *Gateway) Restore(ctx context.Context, gameID string) (holdem.GameState, error) {
	state, err := g.Load(ctx, gameID)
	if err != nil {
		return holdem.GameState{}, err
	}
	game, err := holdem.Restore(g.gameCfg, state)
	if err != nil {
		return holdem.GameState{}, fmt.Errorf("restore %s: %w", gameID, err)
	}
	t, loaded := g.games.PutIfAbsent(game)
	if loaded {
		g.log.Info("[Persist] restore skipped, game already live", zap.String("game", gameID))
	} else {
		g.log.Info("[Persist] game restored",
			zap.String("game", gameID),
			zap.Int("hand", state.HandNumber),
			zap.String("phase", string(state.Phase)))
	}
	return t.Snapshot(), nil
}

// Cleanup deletes the record. Unknown ids are not an error. Queued background
// saves for the game are dropped and a save already in flight is waited for,
// so it cannot bring the record back. Evict the game first to stop new ones.
func (g *Gateway) Cleanup(ctx context.Context, gameID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.mu.Lock()
	var inFlight chan struct{}
	if w, ok := g.pending[gameID]; ok {
		w.next = nil
		inFlight = w.done
	}
	g.mu.Unlock()
	if inFlight != nil {
		select {
		case <-inFlight:
		case <-ctx.Done():
			return unavailable("delete", ctx.Err())
		}
	}

	if err := g.store.Delete(ctx, gameID); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// SweepCompleted removes records of games that finished before cutoff.
func (g *Gateway) SweepCompleted(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ids, err := g.store.SweepCompleted(ctx, cutoff)
	if err != nil {
		return nil, unavailable("sweep", err)
	}
	return ids, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return err
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
