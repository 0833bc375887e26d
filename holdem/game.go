package holdem

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"holdem-live/card"
)

// Game owns one table's GameState and is its only writer. Every transition
// works on a copy and is committed only when it succeeds, so a rejected call
// never leaves a partial update behind.
type Game struct {
	cfg Config
	id  string

	mu    sync.Mutex
	state GameState
}

func NewGame(cfg Config, gameID string, seats []Seat) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("%w: empty game id", ErrInvalidPlayer)
	}
	if len(seats) < 2 || len(seats) > cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: %d (allowed 2..%d)", ErrInvalidPlayerCount, len(seats), cfg.MaxPlayers)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := GameState{
		GameID:            gameID,
		Players:           make([]Player, 0, len(seats)),
		CommunityCards:    card.CardList{},
		ActivePlayerIndex: InvalidIndex,
		// The button starts on the last seat so seat 0 posts the small blind
		// and opens the first hand.
		DealerIndex:   len(seats) - 1,
		Phase:         PhaseWaiting,
		SmallBlind:    cfg.SmallBlind,
		BigBlind:      cfg.BigBlind,
		LastAggressor: InvalidIndex,
		Seed:          seed,
	}
	for i, seat := range seats {
		name := strings.TrimSpace(seat.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: seat %d has no name", ErrInvalidPlayer, i)
		}
		if seat.Chips <= 0 {
			return nil, fmt.Errorf("%w: seat %d must start with chips", ErrInvalidPlayer, i)
		}
		s.Players = append(s.Players, Player{
			ID:        fmt.Sprintf("player-%d", i+1),
			Name:      name,
			Chips:     seat.Chips,
			HoleCards: card.CardList{},
			UserID:    seat.UserID,
		})
		s.TotalChips += seat.Chips
	}
	return &Game{cfg: cfg, id: gameID, state: s}, nil
}

// Restore rebuilds a machine from a previously snapshotted state.
func Restore(cfg Config, s GameState) (*Game, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPlayers < len(s.Players) {
		cfg.MaxPlayers = len(s.Players)
	}
	cfg.SmallBlind = s.SmallBlind
	cfg.BigBlind = s.BigBlind
	cfg.Seed = s.Seed
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Game{cfg: cfg, id: s.GameID, state: s.clone()}, nil
}

func (g *Game) ID() string { return g.id }

// Snapshot returns a consistent deep copy of the current state.
func (g *Game) Snapshot() GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.clone()
}

// Deal starts the first hand of a waiting game.
func (g *Game) Deal() (GameState, error) {
	return g.transition(func(s *GameState) error {
		if s.Phase != PhaseWaiting {
			return fmt.Errorf("%w: deal from %s", ErrInvalidPhase, s.Phase)
		}
		if s.PlayersWithChips() < 2 {
			return ErrInsufficientPlayers
		}
		return s.startHand()
	})
}

// Act applies a's transition for playerID, who must be the active player.
func (g *Game) Act(playerID string, a Action) (GameState, error) {
	return g.transition(func(s *GameState) error {
		if a == nil {
			return ErrUnknownAction
		}
		if !s.Phase.betting() {
			return fmt.Errorf("%w: %s", ErrInvalidPhase, s.Phase)
		}
		idx := s.playerIndex(playerID)
		if idx == InvalidIndex {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
		}
		if idx != s.ActivePlayerIndex {
			return fmt.Errorf("%w: %s", ErrNotPlayersTurn, playerID)
		}
		if err := a.apply(s, idx); err != nil {
			return err
		}
		return s.advance(idx)
	})
}

// StartNextHand moves the button, drops busted players and deals again.
func (g *Game) StartNextHand() (GameState, error) {
	return g.transition(func(s *GameState) error {
		if s.Phase != PhaseComplete {
			return fmt.Errorf("%w: phase %s", ErrHandNotComplete, s.Phase)
		}
		if s.PlayersWithChips() < 2 {
			return ErrInsufficientPlayers
		}

		n := len(s.Players)
		dealerID := ""
		for k := 1; k <= n; k++ {
			p := s.Players[(s.DealerIndex+k)%n]
			if p.Chips > 0 {
				dealerID = p.ID
				break
			}
		}
		kept := s.Players[:0]
		for _, p := range s.Players {
			if p.Chips > 0 {
				kept = append(kept, p)
			}
		}
		s.Players = kept
		s.DealerIndex = s.playerIndex(dealerID)
		return s.startHand()
	})
}

func (g *Game) transition(fn func(s *GameState) error) (GameState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.state.clone()
	if err := fn(&next); err != nil {
		return GameState{}, err
	}
	g.state = next
	return g.state.clone(), nil
}

// startHand shuffles, deals hole cards, posts blinds and opens preflop.
func (s *GameState) startHand() error {
	s.HandNumber++
	s.Deck = card.ShuffledDeck(s.Seed + int64(s.HandNumber))
	s.CommunityCards = card.CardList{}
	s.Pot = 0
	s.CurrentBet = 0
	s.Winner = nil
	s.WinnerReason = ""
	s.Winners = nil
	s.Payouts = nil
	s.WinningHand = ""
	for i := range s.Players {
		s.Players[i].resetForNewHand()
	}

	n := len(s.Players)
	for round := 0; round < 2; round++ {
		for k := 1; k <= n; k++ {
			cards, ok := s.Deck.PopCards(1)
			if !ok {
				return ErrInvalidState("deck underflow")
			}
			p := &s.Players[(s.DealerIndex+k)%n]
			p.HoleCards.Add(cards...)
		}
	}

	sb := (s.DealerIndex + 1) % n
	bb := (sb + 1) % n
	s.Pot += s.Players[sb].placeBet(s.SmallBlind)
	s.Pot += s.Players[bb].placeBet(s.BigBlind)
	s.CurrentBet = s.BigBlind

	s.Phase = PhasePreflop
	s.LastAggressor = bb
	s.PendingActions = s.actionableCount()
	s.ActivePlayerIndex = s.nextActionable(bb)
	if s.bettingClosed() {
		return s.finishRound()
	}
	return nil
}

// advance moves the turn after idx acted, closing the round when it is over.
func (s *GameState) advance(idx int) error {
	if s.nonFoldedCount() == 1 {
		return s.settleByFold()
	}
	if s.PendingActions <= 0 || s.bettingClosed() {
		return s.finishRound()
	}
	next := s.nextActionable(idx)
	if next == InvalidIndex {
		return s.finishRound()
	}
	s.ActivePlayerIndex = next
	return nil
}

// bettingClosed reports that nobody is left who could still change the pot:
// no player can act, or a single player can act and owes nothing.
func (s *GameState) bettingClosed() bool {
	switch s.actionableCount() {
	case 0:
		return true
	case 1:
		for _, p := range s.Players {
			if p.canAct() {
				return p.CurrentBet >= s.CurrentBet
			}
		}
	}
	return false
}

// finishRound resets round bets and moves to the next street, or runs the
// board out and settles when betting is over for the hand.
func (s *GameState) finishRound() error {
	for i := range s.Players {
		s.Players[i].CurrentBet = 0
	}
	s.CurrentBet = 0
	s.LastAggressor = InvalidIndex

	if s.Phase == PhaseRiver || s.actionableCount() < 2 {
		if err := s.dealCommunity(5 - len(s.CommunityCards)); err != nil {
			return err
		}
		return s.settleShowdown()
	}

	switch s.Phase {
	case PhasePreflop:
		s.Phase = PhaseFlop
		if err := s.dealCommunity(3); err != nil {
			return err
		}
	case PhaseFlop:
		s.Phase = PhaseTurn
		if err := s.dealCommunity(1); err != nil {
			return err
		}
	case PhaseTurn:
		s.Phase = PhaseRiver
		if err := s.dealCommunity(1); err != nil {
			return err
		}
	default:
		return ErrInvalidState(fmt.Sprintf("cannot finish round in %s", s.Phase))
	}
	s.PendingActions = s.actionableCount()
	s.ActivePlayerIndex = s.nextActionable(s.DealerIndex)
	return nil
}

func (s *GameState) dealCommunity(n int) error {
	if n <= 0 {
		return nil
	}
	cards, ok := s.Deck.PopCards(n)
	if !ok {
		return ErrInvalidState("deck underflow")
	}
	s.CommunityCards.Add(cards...)
	return nil
}

// nextActionable walks the seats clockwise after idx and returns the first
// player that can still act.
func (s *GameState) nextActionable(idx int) int {
	n := len(s.Players)
	for k := 1; k <= n; k++ {
		i := (idx + k) % n
		if s.Players[i].canAct() {
			return i
		}
	}
	return InvalidIndex
}

func (s *GameState) actionableCount() int {
	n := 0
	for _, p := range s.Players {
		if p.canAct() {
			n++
		}
	}
	return n
}

func (s *GameState) nonFoldedCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Folded {
			n++
		}
	}
	return n
}
