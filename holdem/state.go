package holdem

import (
	"fmt"

	"holdem-live/card"
)

// GameState is the single authoritative state of one table.
type GameState struct {
	GameID            string        `json:"gameId"`
	Players           []Player      `json:"players"`
	CommunityCards    card.CardList `json:"communityCards"`
	Deck              card.CardList `json:"deck,omitempty"`
	Pot               int64         `json:"pot"`
	CurrentBet        int64         `json:"currentBet"`
	ActivePlayerIndex int           `json:"activePlayerIndex"`
	DealerIndex       int           `json:"dealerIndex"`
	Phase             Phase         `json:"phase"`
	HandNumber        int           `json:"handNumber"`
	Winner            *int          `json:"winner,omitempty"`
	WinnerReason      string        `json:"winnerReason,omitempty"`
	Winners           []int         `json:"winners,omitempty"`
	Payouts           []Payout      `json:"payouts,omitempty"`
	WinningHand       string        `json:"winningHand,omitempty"`

	SmallBlind int64 `json:"smallBlind"`
	BigBlind   int64 `json:"bigBlind"`
	// TotalChips is fixed at creation: Pot + sum(Chips) always equals it.
	TotalChips int64 `json:"totalChips"`
	// PendingActions counts players that still have to act this round.
	PendingActions int   `json:"pendingActions"`
	LastAggressor  int   `json:"lastAggressor"`
	Seed           int64 `json:"seed,omitempty,string"`
}

type Payout struct {
	PlayerIndex int   `json:"playerIndex"`
	Amount      int64 `json:"amount"`
}

// clone deep-copies the state. Empty collections are normalised so a state
// survives an encode/decode round trip unchanged.
func (s GameState) clone() GameState {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.clone()
	}
	out.CommunityCards = s.CommunityCards.Clone()
	if out.CommunityCards == nil {
		out.CommunityCards = card.CardList{}
	}
	out.Deck = s.Deck.Clone()
	if len(out.Deck) == 0 {
		out.Deck = nil
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	out.Winners = nil
	if len(s.Winners) > 0 {
		out.Winners = append([]int(nil), s.Winners...)
	}
	out.Payouts = nil
	if len(s.Payouts) > 0 {
		out.Payouts = append([]Payout(nil), s.Payouts...)
	}
	return out
}

// Clone returns an independent copy, normalised like Snapshot.
func (s GameState) Clone() GameState { return s.clone() }

// Public strips the server-private deck and shuffle seed.
func (s GameState) Public() GameState {
	out := s.clone()
	out.Deck = nil
	out.Seed = 0
	return out
}

func (s *GameState) playerIndex(playerID string) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}
	return InvalidIndex
}

// Player returns a copy of the player with the given id.
func (s GameState) Player(playerID string) (Player, bool) {
	i := s.playerIndex(playerID)
	if i == InvalidIndex {
		return Player{}, false
	}
	return s.Players[i].clone(), true
}

// ChipsInPlay is Pot plus every stack; equals TotalChips in a valid state.
func (s GameState) ChipsInPlay() int64 {
	total := s.Pot
	for _, p := range s.Players {
		total += p.Chips
	}
	return total
}

// PlayersWithChips counts seats that could be dealt into another hand.
func (s GameState) PlayersWithChips() int {
	n := 0
	for _, p := range s.Players {
		if p.Chips > 0 {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of a state.
func (s GameState) Validate() error {
	if s.GameID == "" {
		return ErrInvalidState("missing game id")
	}
	if len(s.Players) < 2 {
		return ErrInvalidState("fewer than two players")
	}
	if !s.Phase.valid() {
		return ErrInvalidState(fmt.Sprintf("unknown phase %q", s.Phase))
	}
	if got := s.ChipsInPlay(); got != s.TotalChips {
		return ErrInvalidState(fmt.Sprintf("chips not conserved: %d != %d", got, s.TotalChips))
	}
	if s.Pot < 0 || s.CurrentBet < 0 {
		return ErrInvalidState("negative pot or bet")
	}
	if s.DealerIndex < 0 || s.DealerIndex >= len(s.Players) {
		return ErrInvalidState("dealer index out of range")
	}
	if len(s.CommunityCards) > 5 {
		return ErrInvalidState("too many community cards")
	}
	seen := make(map[string]bool, len(s.Players))
	for _, p := range s.Players {
		if p.ID == "" || seen[p.ID] {
			return ErrInvalidState("missing or duplicate player id")
		}
		seen[p.ID] = true
		if p.Chips < 0 || p.CurrentBet < 0 || p.TotalBet < 0 {
			return ErrInvalidState("negative player amount")
		}
		if n := len(p.HoleCards); n != 0 && n != 2 {
			return ErrInvalidState("players hold 0 or 2 hole cards")
		}
	}
	if err := s.checkCards(); err != nil {
		return err
	}
	if s.Phase.betting() {
		if s.ActivePlayerIndex < 0 || s.ActivePlayerIndex >= len(s.Players) {
			return ErrInvalidState("active player out of range")
		}
		if !s.Players[s.ActivePlayerIndex].canAct() {
			return ErrInvalidState("active player cannot act")
		}
	}
	return nil
}

// checkCards rejects unknown cards and any card that appears twice across
// the deck, the board and the players' hands.
func (s GameState) checkCards() error {
	var seen card.CardList
	check := func(cards card.CardList) error {
		for _, c := range cards {
			if !c.Valid() {
				return ErrInvalidState(fmt.Sprintf("unknown card %#x", byte(c)))
			}
			if seen.Contains(c) {
				return ErrInvalidState("duplicate card " + c.String())
			}
			seen.Add(c)
		}
		return nil
	}
	if err := check(s.CommunityCards); err != nil {
		return err
	}
	for _, p := range s.Players {
		if err := check(p.HoleCards); err != nil {
			return err
		}
	}
	return check(s.Deck)
}
