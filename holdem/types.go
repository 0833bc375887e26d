package holdem

// InvalidIndex marks "no player" for seat pointers such as the active player.
const InvalidIndex = -1

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseComplete Phase = "complete"
)

func (p Phase) valid() bool {
	switch p {
	case PhaseWaiting, PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver, PhaseComplete:
		return true
	}
	return false
}

// betting reports whether actions are accepted in this phase.
func (p Phase) betting() bool {
	switch p {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	}
	return false
}

// HandCategory ranks made hands, high card (0) through royal flush (9).
type HandCategory uint8

const (
	HighCard HandCategory = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var handCategoryNames = [...]string{
	HighCard:      "high card",
	OnePair:       "one pair",
	TwoPair:       "two pair",
	ThreeOfAKind:  "three of a kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full house",
	FourOfAKind:   "four of a kind",
	StraightFlush: "straight flush",
	RoyalFlush:    "royal flush",
}

func (c HandCategory) String() string {
	if int(c) < len(handCategoryNames) {
		return handCategoryNames[c]
	}
	return "unknown"
}

const (
	ReasonOpponentFolded = "opponent folded"
	ReasonBestHand       = "best hand"
	ReasonSplitPot       = "split pot"
)
