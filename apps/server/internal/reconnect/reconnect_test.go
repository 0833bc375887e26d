package reconnect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-live/apps/server/internal/lobby"
	"holdem-live/apps/server/internal/persist"
	"holdem-live/apps/server/internal/tokens"
	"holdem-live/holdem"
)

type fixture struct {
	lobby  *lobby.Lobby
	gw     *persist.Gateway
	tokens *tokens.Service
	coord  *Coordinator
	store  *persist.MemoryStore
	gameID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := holdem.DefaultConfig()
	cfg.Seed = 7
	l := lobby.New(cfg, lobby.Options{})
	store := persist.NewMemoryStore()
	gw := persist.NewGateway(store, l, persist.GatewayOptions{GameConfig: cfg, Timeout: time.Second})
	tbl, err := l.Create([]holdem.Seat{{Name: "Alice", Chips: 1000}, {Name: "Bob", Chips: 1000}})
	require.NoError(t, err)
	_, err = tbl.Deal()
	require.NoError(t, err)

	tok := tokens.NewService(Lookup{Games: l, Store: gw}, tokens.Options{TTL: time.Minute, Secret: []byte("s")})
	return &fixture{
		lobby:  l,
		gw:     gw,
		tokens: tok,
		coord:  NewCoordinator(tok, l, gw, Options{}),
		store:  store,
		gameID: tbl.ID,
	}
}

func (f *fixture) issue(t *testing.T, playerID string) string {
	t.Helper()
	tok, err := f.tokens.Issue(context.Background(), f.gameID, playerID)
	require.NoError(t, err)
	return tok.Token
}

func TestReconnect_LiveGame(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.Reconnect(context.Background(), f.gameID, "player-2", f.issue(t, "player-2"))
	require.NoError(t, err)
	assert.Equal(t, f.gameID, res.GameState.GameID)
	assert.Equal(t, holdem.PhasePreflop, res.GameState.Phase)
	assert.False(t, res.ReconnectedAt.IsZero())
}

func TestReconnect_RestoresEvictedGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tbl, err := f.lobby.Get(f.gameID)
	require.NoError(t, err)
	want := tbl.Snapshot()
	_, err = f.gw.Persist(ctx, f.gameID)
	require.NoError(t, err)
	token := f.issue(t, "player-1")
	require.True(t, f.lobby.Delete(f.gameID))

	res, err := f.coord.Reconnect(ctx, f.gameID, "player-1", token)
	require.NoError(t, err)
	assert.Equal(t, want, res.GameState)

	_, err = f.lobby.Get(f.gameID)
	assert.NoError(t, err, "restored game is live again")
}

func TestReconnect_AfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tbl, err := f.lobby.Get(f.gameID)
	require.NoError(t, err)
	want := tbl.Snapshot()
	_, err = f.gw.Persist(ctx, f.gameID)
	require.NoError(t, err)
	token := f.issue(t, "player-2")

	// fresh process state over the same store and secret
	cfg := holdem.DefaultConfig()
	cfg.Seed = 7
	l := lobby.New(cfg, lobby.Options{})
	gw := persist.NewGateway(f.store, l, persist.GatewayOptions{GameConfig: cfg, Timeout: time.Second})
	tok := tokens.NewService(Lookup{Games: l, Store: gw}, tokens.Options{TTL: time.Minute, Secret: []byte("s")})
	coord := NewCoordinator(tok, l, gw, Options{})

	res, err := coord.Reconnect(ctx, f.gameID, "player-2", token)
	require.NoError(t, err)
	assert.Equal(t, want, res.GameState)

	restored, err := l.Get(f.gameID)
	require.NoError(t, err)
	assert.Equal(t, want, restored.Snapshot())
}

func TestReconnect_TokenFailuresComeFirst(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t, "player-1")

	_, err := f.coord.Reconnect(context.Background(), f.gameID, "player-2", token)
	assert.ErrorIs(t, err, tokens.ErrTokenInvalid)

	_, err = f.coord.Reconnect(context.Background(), "other", "player-1", token)
	assert.ErrorIs(t, err, tokens.ErrTokenInvalid)
}

func TestReconnect_NotRestorable(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t, "player-1")
	require.True(t, f.lobby.Delete(f.gameID))

	_, err := f.coord.Reconnect(context.Background(), f.gameID, "player-1", token)
	assert.ErrorIs(t, err, lobby.ErrGameNotFound)
	assert.ErrorIs(t, err, persist.ErrRecordNotFound)
	assert.True(t, holdem.IsNotFound(err))
}

type acceptAll struct{}

func (acceptAll) Validate(string, string, string) error { return nil }

func TestReconnect_PlayerMissingFromState(t *testing.T) {
	f := newFixture(t)
	c := NewCoordinator(acceptAll{}, f.lobby, f.gw, Options{})
	_, err := c.Reconnect(context.Background(), f.gameID, "player-9", "whatever")
	assert.ErrorIs(t, err, holdem.ErrPlayerNotFound)
}

// gatedStore counts restores and holds each one until released.
type gatedStore struct {
	Store
	restores atomic.Int32
	release  chan struct{}
}

func (g *gatedStore) Restore(ctx context.Context, gameID string) (holdem.GameState, error) {
	g.restores.Add(1)
	<-g.release
	return g.Store.Restore(ctx, gameID)
}

func TestReconnect_ConcurrentCallersShareOneRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.gw.Persist(ctx, f.gameID)
	require.NoError(t, err)
	require.True(t, f.lobby.Delete(f.gameID))

	gated := &gatedStore{Store: f.gw, release: make(chan struct{})}
	c := NewCoordinator(f.tokens, f.lobby, gated, Options{})
	t1, t2 := f.issue(t, "player-1"), f.issue(t, "player-2")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		player, token := "player-1", t1
		if i%2 == 1 {
			player, token = "player-2", t2
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Reconnect(ctx, f.gameID, player, token)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gated.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), gated.restores.Load())
	assert.Equal(t, []string{f.gameID}, f.lobby.List())
}

func TestLookup_FallsBackToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lookup := Lookup{Games: f.lobby, Store: f.gw}

	live, err := lookup.State(ctx, f.gameID)
	require.NoError(t, err)

	_, err = f.gw.Persist(ctx, f.gameID)
	require.NoError(t, err)
	require.True(t, f.lobby.Delete(f.gameID))

	stored, err := lookup.State(ctx, f.gameID)
	require.NoError(t, err)
	assert.Equal(t, live, stored)
	assert.Empty(t, f.lobby.List(), "lookup does not register")

	_, err = lookup.State(ctx, "missing")
	assert.True(t, errors.Is(err, lobby.ErrGameNotFound))
}
