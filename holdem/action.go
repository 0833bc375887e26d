package holdem

import (
	"fmt"
	"strings"
)

// Action is a player decision. The set of actions is closed: Fold, Call,
// Check and Raise are the only implementations, and each carries its own
// transition.
type Action interface {
	Kind() string
	apply(s *GameState, idx int) error
}

type Fold struct{}

type Call struct{}

type Check struct{}

// Raise sets the player's total bet for the current round to Amount.
type Raise struct {
	Amount int64
}

func (Fold) Kind() string  { return "fold" }
func (Call) Kind() string  { return "call" }
func (Check) Kind() string { return "check" }
func (Raise) Kind() string { return "raise" }

func (Fold) apply(s *GameState, idx int) error {
	s.Players[idx].Folded = true
	s.PendingActions--
	return nil
}

func (Check) apply(s *GameState, idx int) error {
	if s.Players[idx].CurrentBet != s.CurrentBet {
		return fmt.Errorf("%w: owes %d", ErrCheckNotAllowed, s.CurrentBet-s.Players[idx].CurrentBet)
	}
	s.PendingActions--
	return nil
}

func (Call) apply(s *GameState, idx int) error {
	p := &s.Players[idx]
	if owed := s.CurrentBet - p.CurrentBet; owed > 0 {
		s.Pot += p.placeBet(owed)
	}
	s.PendingActions--
	return nil
}

func (r Raise) apply(s *GameState, idx int) error {
	if r.Amount <= s.CurrentBet {
		return fmt.Errorf("%w: %d <= %d", ErrInvalidRaise, r.Amount, s.CurrentBet)
	}
	p := &s.Players[idx]
	s.Pot += p.placeBet(r.Amount - p.CurrentBet)

	// A short all-in that does not top the current bet is only a call.
	if p.CurrentBet <= s.CurrentBet {
		s.PendingActions--
		return nil
	}
	s.CurrentBet = p.CurrentBet
	s.LastAggressor = idx
	s.PendingActions = s.actionableCount() - boolToInt(p.canAct())
	return nil
}

// ParseAction maps a transport-level action name onto the Action type.
func ParseAction(kind string, amount *int64) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "fold":
		return Fold{}, nil
	case "call":
		return Call{}, nil
	case "check":
		return Check{}, nil
	case "raise", "bet":
		if amount == nil {
			return nil, ErrMissingAmount
		}
		if *amount <= 0 {
			return nil, fmt.Errorf("%w: amount %d", ErrInvalidRaise, *amount)
		}
		return Raise{Amount: *amount}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
