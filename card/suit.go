package card

type Suit byte

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var Suits = [...]Suit{Hearts, Diamonds, Clubs, Spades}

func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	}
	return "?"
}

// Letter is the one-character suffix used in short card notation ("Ah").
func (s Suit) Letter() byte {
	switch s {
	case Hearts:
		return 'h'
	case Diamonds:
		return 'd'
	case Clubs:
		return 'c'
	case Spades:
		return 's'
	}
	return '?'
}

func (s Suit) valid() bool { return s <= Spades }

func parseSuit(raw string) (Suit, bool) {
	switch raw {
	case "hearts", "h", "H":
		return Hearts, true
	case "diamonds", "d", "D":
		return Diamonds, true
	case "clubs", "c", "C":
		return Clubs, true
	case "spades", "s", "S":
		return Spades, true
	}
	return 0, false
}
