package card

import (
	"math/rand"
	"strings"
)

type CardList []Card

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) Clone() CardList {
	if ds == nil {
		return nil
	}
	out := make(CardList, len(ds))
	copy(out, ds)
	return out
}

// Shuffle permutes the list with the given source; same seed, same order.
func (ds CardList) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size < 0 || size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

func (ds CardList) Contains(c Card) bool {
	for _, cc := range ds {
		if cc == c {
			return true
		}
	}
	return false
}

func (ds CardList) String() string {
	parts := make([]string, len(ds))
	for i, c := range ds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// NewDeck returns the 52 cards in suit-major order.
func NewDeck() CardList {
	deck := make(CardList, 0, len(Suits)*(MaxValue-MinValue+1))
	for _, s := range Suits {
		for v := MinValue; v <= MaxValue; v++ {
			deck = append(deck, Card(byte(s)<<4|byte(v)))
		}
	}
	return deck
}

// ShuffledDeck returns a full deck shuffled deterministically from seed.
func ShuffledDeck(seed int64) CardList {
	deck := NewDeck()
	deck.Shuffle(rand.New(rand.NewSource(seed)))
	return deck
}
