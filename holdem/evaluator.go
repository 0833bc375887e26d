package holdem

import (
	"fmt"
	"sort"

	"github.com/paulhankin/poker"

	"holdem-live/card"
)

// HandResult is the best five-card hand found in a set of five to seven cards.
// Key orders hands totally: a larger key is a stronger hand and equal keys tie.
type HandResult struct {
	Category    HandCategory `json:"category"`
	Key         uint32       `json:"key"`
	Best        [5]card.Card `json:"best"`
	Description string       `json:"description"`
}

// Evaluate scores every five-card subset of cards and keeps the strongest.
func Evaluate(cards []card.Card) (HandResult, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return HandResult{}, fmt.Errorf("%w: got %d, want 5..7", ErrInvalidCardCount, len(cards))
	}
	seen := make(map[card.Card]struct{}, len(cards))
	for _, c := range cards {
		if !c.Valid() {
			return HandResult{}, fmt.Errorf("%w: %#02x", ErrMalformedCard, byte(c))
		}
		if _, dup := seen[c]; dup {
			return HandResult{}, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[c] = struct{}{}
	}

	var best HandResult
	found := false
	n := len(cards)
	var hand [5]card.Card
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						hand = [5]card.Card{cards[a], cards[b], cards[c], cards[d], cards[e]}
						cat, key := eval5(hand)
						if !found || key > best.Key {
							best = HandResult{Category: cat, Key: key, Best: hand}
							found = true
						}
					}
				}
			}
		}
	}
	best.Description = describe(best)
	return best, nil
}

// eval5 packs the category into bits 20..23 and up to five tie-break values
// into the nibbles below it, most significant first.
func eval5(hand [5]card.Card) (HandCategory, uint32) {
	var counts [card.MaxValue + 1]int
	flush := true
	for i, c := range hand {
		counts[c.Value()]++
		if i > 0 && c.Suit() != hand[0].Suit() {
			flush = false
		}
	}

	// values ordered by multiplicity, then by rank.
	values := make([]int, 0, 5)
	for v := card.MaxValue; v >= card.MinValue; v-- {
		if counts[v] > 0 {
			values = append(values, v)
		}
	}
	sort.SliceStable(values, func(i, j int) bool {
		return counts[values[i]] > counts[values[j]]
	})

	straightHigh := 0
	if len(values) == 5 {
		switch {
		case values[0]-values[4] == 4:
			straightHigh = values[0]
		case values[0] == 14 && values[1] == 5:
			straightHigh = 5
		}
	}

	var cat HandCategory
	tiebreak := values
	switch {
	case straightHigh > 0 && flush:
		cat = StraightFlush
		if straightHigh == 14 {
			cat = RoyalFlush
		}
		tiebreak = []int{straightHigh}
	case counts[values[0]] == 4:
		cat = FourOfAKind
	case counts[values[0]] == 3 && counts[values[1]] == 2:
		cat = FullHouse
	case flush:
		cat = Flush
	case straightHigh > 0:
		cat = Straight
		tiebreak = []int{straightHigh}
	case counts[values[0]] == 3:
		cat = ThreeOfAKind
	case counts[values[0]] == 2 && counts[values[1]] == 2:
		cat = TwoPair
	case counts[values[0]] == 2:
		cat = OnePair
	default:
		cat = HighCard
	}

	key := uint32(cat) << 20
	for i, v := range tiebreak {
		key |= uint32(v) << (16 - 4*uint(i))
	}
	return cat, key
}

func describe(r HandResult) string {
	cards := make([]poker.Card, 0, len(r.Best))
	for _, c := range r.Best {
		pc, err := toPokerCard(c)
		if err != nil {
			return r.Category.String()
		}
		cards = append(cards, pc)
	}
	desc, err := poker.Describe(cards)
	if err != nil || desc == "" {
		return r.Category.String()
	}
	return desc
}

var pokerSuits = [...]poker.Suit{
	card.Hearts:   poker.Heart,
	card.Diamonds: poker.Diamond,
	card.Clubs:    poker.Club,
	card.Spades:   poker.Spade,
}

func toPokerCard(c card.Card) (poker.Card, error) {
	rank := c.Value()
	if rank == 14 {
		rank = 1
	}
	return poker.MakeCard(pokerSuits[c.Suit()], poker.Rank(rank))
}
