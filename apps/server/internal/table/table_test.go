package table

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-live/apps/server/internal/broadcast"
	"holdem-live/holdem"
)

func newTestTable(t *testing.T, opts Options) *Table {
	t.Helper()
	cfg := holdem.DefaultConfig()
	cfg.Seed = 7
	game, err := holdem.NewGame(cfg, "table-test", []holdem.Seat{
		{Name: "Alice", Chips: 1000},
		{Name: "Bob", Chips: 1000},
	})
	require.NoError(t, err)
	return New(game, opts)
}

func nextEvent(t *testing.T, sub *broadcast.Subscriber) broadcast.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event")
	}
	return broadcast.Event{}
}

func TestSubscribe_SeesCurrentStateThenUpdates(t *testing.T) {
	hub := broadcast.NewHub(nil)
	tbl := newTestTable(t, Options{Hub: hub})

	sub, err := tbl.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, broadcast.EventConnected, nextEvent(t, sub).Type)
	initial := nextEvent(t, sub)
	require.Equal(t, broadcast.EventGameStateUpdate, initial.Type)
	assert.Equal(t, holdem.PhaseWaiting, initial.Data.(holdem.GameState).Phase)

	_, err = tbl.Deal()
	require.NoError(t, err)
	_, err = tbl.Act("player-1", holdem.Call{})
	require.NoError(t, err)

	dealt := nextEvent(t, sub).Data.(holdem.GameState)
	assert.Equal(t, holdem.PhasePreflop, dealt.Phase)
	assert.Nil(t, dealt.Deck, "published states never carry the deck")
	called := nextEvent(t, sub).Data.(holdem.GameState)
	assert.Equal(t, int64(40), called.Pot)
}

func TestRejectedTransitionPublishesNothing(t *testing.T) {
	hub := broadcast.NewHub(nil)
	var commits int
	tbl := newTestTable(t, Options{Hub: hub, OnCommit: func(string, holdem.GameState) { commits++ }})
	sub, err := tbl.Subscribe()
	require.NoError(t, err)
	defer sub.Close()
	nextEvent(t, sub)
	nextEvent(t, sub)

	_, err = tbl.Act("player-1", holdem.Check{})
	assert.True(t, errors.Is(err, holdem.ErrInvalidPhase))
	_, err = tbl.Act("player-1", nil)
	assert.True(t, errors.Is(err, holdem.ErrUnknownAction))

	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, commits)
}

func TestCommitHookReceivesFullState(t *testing.T) {
	var got holdem.GameState
	tbl := newTestTable(t, Options{OnCommit: func(id string, s holdem.GameState) {
		assert.Equal(t, "table-test", id)
		got = s
	}})
	_, err := tbl.Deal()
	require.NoError(t, err)
	assert.NotEmpty(t, got.Deck)
	assert.Equal(t, 1, got.HandNumber)
}

// Concurrent callers race for the turn; commit order must match the order
// subscribers observe.
func TestConcurrentActionsPublishInCommitOrder(t *testing.T) {
	hub := broadcast.NewHub(nil)
	tbl := newTestTable(t, Options{Hub: hub})
	_, err := tbl.Deal()
	require.NoError(t, err)

	sub, err := tbl.Subscribe()
	require.NoError(t, err)
	defer sub.Close()
	nextEvent(t, sub)
	start := nextEvent(t, sub).Data.(holdem.GameState)

	var (
		mu        sync.Mutex
		committed []holdem.GameState
		wg        sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				s := tbl.Snapshot()
				if s.Phase == holdem.PhaseComplete {
					return
				}
				var a holdem.Action = holdem.Check{}
				if p, ok := s.Player(id); ok && p.CurrentBet < s.CurrentBet {
					a = holdem.Call{}
				}
				mu.Lock()
				if st, err := tbl.Act(id, a); err == nil {
					committed = append(committed, st)
				}
				mu.Unlock()
			}
		}([]string{"player-1", "player-2"}[i%2])
	}
	wg.Wait()

	require.NotEmpty(t, committed)
	assert.Equal(t, holdem.PhasePreflop, start.Phase)
	for _, want := range committed {
		got := nextEvent(t, sub).Data.(holdem.GameState)
		assert.Equal(t, want.Public(), got)
	}
}

func TestCloseRejectsTransitions(t *testing.T) {
	hub := broadcast.NewHub(nil)
	tbl := newTestTable(t, Options{Hub: hub})
	tbl.Close()
	tbl.Close()

	_, err := tbl.Deal()
	assert.True(t, errors.Is(err, ErrTableClosed))
	_, err = tbl.Subscribe()
	assert.True(t, errors.Is(err, ErrTableClosed))
	assert.True(t, tbl.IsClosed())
}

func TestIsIdleFor(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := newTestTable(t, Options{Now: func() time.Time { return now }})
	assert.False(t, tbl.IsIdleFor(time.Minute))
	now = now.Add(2 * time.Minute)
	assert.True(t, tbl.IsIdleFor(time.Minute))

	_, err := tbl.Deal()
	require.NoError(t, err)
	assert.False(t, tbl.IsIdleFor(time.Minute))
}
