package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-live/apps/server/internal/lobby"
	"holdem-live/apps/server/internal/persist"
	"holdem-live/card"
	"holdem-live/holdem"
)

type pruner struct{ calls []time.Time }

func (p *pruner) Prune(now time.Time) int {
	p.calls = append(p.calls, now)
	return 3
}

var seats = []holdem.Seat{{Name: "Alice", Chips: 1000}, {Name: "Bob", Chips: 1000}}

// gameOver is a finished game in which one player holds every chip.
func gameOver(t *testing.T) *holdem.Game {
	t.Helper()
	g, err := holdem.Restore(holdem.DefaultConfig(), holdem.GameState{
		GameID: "over",
		Players: []holdem.Player{
			{ID: "player-1", Name: "Alice", Chips: 2000, HoleCards: card.CardList{}},
			{ID: "player-2", Name: "Bob", Chips: 0, HoleCards: card.CardList{}},
		},
		CommunityCards:    card.CardList{},
		ActivePlayerIndex: holdem.InvalidIndex,
		Phase:             holdem.PhaseComplete,
		HandNumber:        7,
		SmallBlind:        10,
		BigBlind:          20,
		TotalChips:        2000,
		LastAggressor:     holdem.InvalidIndex,
		Seed:              3,
	})
	require.NoError(t, err)
	return g
}

type fixture struct {
	lobby   *lobby.Lobby
	store   *persist.MemoryStore
	gw      *persist.Gateway
	waiting string
	folded  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := lobby.New(holdem.DefaultConfig(), lobby.Options{})
	store := persist.NewMemoryStore()
	gw := persist.NewGateway(store, l, persist.GatewayOptions{GameConfig: holdem.DefaultConfig()})

	waiting, err := l.Create(seats)
	require.NoError(t, err)

	folded, err := l.Create(seats)
	require.NoError(t, err)
	_, err = folded.Deal()
	require.NoError(t, err)
	s, err := folded.Act("player-1", holdem.Fold{})
	require.NoError(t, err)
	require.Equal(t, holdem.PhaseComplete, s.Phase)

	l.Put(gameOver(t))
	for _, id := range []string{"over", folded.ID} {
		_, err := gw.Persist(context.Background(), id)
		require.NoError(t, err)
	}
	return &fixture{lobby: l, store: store, gw: gw, waiting: waiting.ID, folded: folded.ID}
}

func TestRunOnce_EvictsGameOverOnly(t *testing.T) {
	f := newFixture(t)
	p := &pruner{}
	s := New(p, f.lobby, f.gw, Options{Retention: time.Hour})

	r := s.RunOnce(context.Background())
	assert.Equal(t, 3, r.TokensPruned)
	assert.Len(t, p.calls, 1)
	assert.Equal(t, []string{"over"}, r.Evicted)
	assert.Empty(t, r.RecordsSwept, "records are younger than the retention window")

	_, err := f.store.Load(context.Background(), "over")
	assert.ErrorIs(t, err, persist.ErrRecordNotFound)
	_, err = f.store.Load(context.Background(), f.folded)
	assert.NoError(t, err, "a finished hand can still be resumed")
	assert.ElementsMatch(t, []string{f.waiting, f.folded}, f.lobby.List())
}

// evictionCheck records whether a game was still live when its record was
// cleaned up.
type evictionCheck struct {
	*persist.Gateway
	lobby       *lobby.Lobby
	liveAtClean map[string]bool
}

func (e *evictionCheck) Cleanup(ctx context.Context, gameID string) error {
	_, err := e.lobby.Get(gameID)
	e.liveAtClean[gameID] = err == nil
	return e.Gateway.Cleanup(ctx, gameID)
}

func TestRunOnce_EvictsBeforeCleanup(t *testing.T) {
	f := newFixture(t)
	over, err := f.lobby.Get("over")
	require.NoError(t, err)
	// a final commit still being saved in the background
	f.gw.PersistAsync("over", over.Snapshot())

	records := &evictionCheck{Gateway: f.gw, lobby: f.lobby, liveAtClean: map[string]bool{}}
	r := New(&pruner{}, f.lobby, records, Options{Retention: time.Hour}).RunOnce(context.Background())
	f.gw.Wait()

	assert.Equal(t, []string{"over"}, r.Evicted)
	assert.Equal(t, map[string]bool{"over": false}, records.liveAtClean)
	_, err = f.store.Load(context.Background(), "over")
	assert.ErrorIs(t, err, persist.ErrRecordNotFound)
}

func TestRunOnce_IdleFinishedGamesAndOldRecords(t *testing.T) {
	f := newFixture(t)
	later := time.Now().Add(2 * time.Hour)
	s := New(&pruner{}, f.lobby, f.gw, Options{
		Retention: time.Nanosecond,
		Now:       func() time.Time { return later },
	})

	r := s.RunOnce(context.Background())
	assert.ElementsMatch(t, []string{"over", f.folded}, r.Evicted)
	assert.Equal(t, []string{f.folded}, r.RecordsSwept)
	assert.Equal(t, []string{f.waiting}, f.lobby.List(), "waiting games are never swept")
}

func TestRunOnce_StoreOff(t *testing.T) {
	l := lobby.New(holdem.DefaultConfig(), lobby.Options{})
	l.Put(gameOver(t))
	gw := persist.NewGateway(persist.UnavailableStore{}, l, persist.GatewayOptions{})
	r := New(&pruner{}, l, gw, Options{}).RunOnce(context.Background())
	assert.Equal(t, []string{"over"}, r.Evicted)
	assert.Empty(t, r.RecordsSwept)
}

func TestStartStop(t *testing.T) {
	l := lobby.New(holdem.DefaultConfig(), lobby.Options{})
	gw := persist.NewGateway(persist.NewMemoryStore(), l, persist.GatewayOptions{})

	assert.Error(t, New(&pruner{}, l, gw, Options{Schedule: "every so often"}).Start())

	s := New(&pruner{}, l, gw, Options{Schedule: "@every 1h"})
	require.NoError(t, s.Start())
	s.Stop()
}
