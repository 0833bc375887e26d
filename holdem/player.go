package holdem

import "holdem-live/card"

// Player is one seat of a GameState. It is owned by that state and copied,
// never shared, when the state is snapshotted.
type Player struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Chips      int64         `json:"chips"`
	HoleCards  card.CardList `json:"holeCards"`
	CurrentBet int64         `json:"currentBet"`
	// TotalBet is the player's contribution to the pot over the whole hand.
	TotalBet int64  `json:"totalBet"`
	Folded   bool   `json:"folded"`
	AllIn    bool   `json:"allIn"`
	UserID   string `json:"userId,omitempty"`
}

// Seat describes a player at game creation.
type Seat struct {
	Name   string
	Chips  int64
	UserID string
}

func (p *Player) resetForNewHand() {
	p.HoleCards = make(card.CardList, 0, 2)
	p.CurrentBet = 0
	p.TotalBet = 0
	p.Folded = false
	p.AllIn = false
}

// canAct reports whether the player still takes turns in this hand.
func (p *Player) canAct() bool {
	return !p.Folded && !p.AllIn
}

// placeBet moves up to amount chips from the stack into the pot and returns
// what was actually committed. Committing the whole stack marks the player
// all-in.
func (p *Player) placeBet(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	if p.Chips <= amount {
		amount = p.Chips
		p.AllIn = true
	}
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	return amount
}

func (p Player) clone() Player {
	p.HoleCards = p.HoleCards.Clone()
	if p.HoleCards == nil {
		p.HoleCards = card.CardList{}
	}
	return p
}
