package card

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Card is an immutable playing card.
//
// Encoding:
// - high 4 bits: suit (0:hearts, 1:diamonds, 2:clubs, 3:spades)
// - low 4 bits: value (2..10, 11:J, 12:Q, 13:K, 14:A)
type Card byte

const (
	MinValue = 2
	MaxValue = 14
)

var ErrMalformedCard = errors.New("malformed card")

// New builds a card from a suit and a value in 2..14.
func New(s Suit, value int) (Card, error) {
	if !s.valid() || value < MinValue || value > MaxValue {
		return CardInvalid, fmt.Errorf("%w: suit=%d value=%d", ErrMalformedCard, s, value)
	}
	return Card(byte(s)<<4 | byte(value)), nil
}

func (c Card) Suit() Suit { return Suit(c >> 4) }

// Value is the comparison value, 2..14 with the ace high.
func (c Card) Value() int { return int(c & 0x0F) }

// Valid reports whether c decodes to one of the 52 cards.
func (c Card) Valid() bool {
	v := c.Value()
	return c.Suit().valid() && v >= MinValue && v <= MaxValue
}

// Rank is the display rank: "2".."10", "J", "Q", "K", "A".
func (c Card) Rank() string {
	return rankName(c.Value())
}

func (c Card) String() string {
	if !c.Valid() {
		return "Invalid"
	}
	r := c.Rank()
	if r == "10" {
		r = "T"
	}
	return r + string(c.Suit().Letter())
}

func rankName(v int) string {
	switch v {
	case 11:
		return "J"
	case 12:
		return "Q"
	case 13:
		return "K"
	case 14:
		return "A"
	default:
		return fmt.Sprintf("%d", v)
	}
}

func parseRank(raw string) (int, bool) {
	switch strings.ToUpper(raw) {
	case "A":
		return 14, true
	case "K":
		return 13, true
	case "Q":
		return 12, true
	case "J":
		return 11, true
	case "T", "10":
		return 10, true
	case "2", "3", "4", "5", "6", "7", "8", "9":
		return int(raw[0] - '0'), true
	}
	return 0, false
}

// Parse converts short notation ("As", "Td", "10h") into a Card.
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return CardInvalid, fmt.Errorf("%w: %q", ErrMalformedCard, s)
	}
	suit, ok := parseSuit(s[len(s)-1:])
	if !ok {
		return CardInvalid, fmt.Errorf("%w: invalid suit in %q", ErrMalformedCard, s)
	}
	value, ok := parseRank(s[:len(s)-1])
	if !ok {
		return CardInvalid, fmt.Errorf("%w: invalid rank in %q", ErrMalformedCard, s)
	}
	return New(suit, value)
}

// MustParse is Parse for literals in tests and tables.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses a space separated list such as "Ah Kh Qh".
func ParseList(s string) (CardList, error) {
	fields := strings.Fields(s)
	out := make(CardList, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type cardJSON struct {
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrMalformedCard, byte(c))
	}
	return json.Marshal(cardJSON{Suit: c.Suit().String(), Rank: c.Rank(), Value: c.Value()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCard, err)
	}
	suit, ok := parseSuit(raw.Suit)
	if !ok {
		return fmt.Errorf("%w: suit %q", ErrMalformedCard, raw.Suit)
	}
	value := raw.Value
	if raw.Rank != "" {
		v, ok := parseRank(raw.Rank)
		if !ok || (value != 0 && value != v) {
			return fmt.Errorf("%w: rank %q value %d", ErrMalformedCard, raw.Rank, raw.Value)
		}
		value = v
	}
	parsed, err := New(suit, value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
