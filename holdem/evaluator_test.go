package holdem

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdem-live/card"
)

func mustCards(t *testing.T, s string) card.CardList {
	t.Helper()
	cl, err := card.ParseList(s)
	require.NoError(t, err)
	return cl
}

func TestEvaluate_Categories(t *testing.T) {
	cases := []struct {
		cards string
		want  HandCategory
	}{
		{"As Ks Qs Js Ts 2d 3c", RoyalFlush},
		{"9h 8h 7h 6h 5h Ad Ac", StraightFlush},
		{"Ah 2h 3h 4h 5h Kd Kc", StraightFlush},
		{"7c 7d 7h 7s Kd 2c 3d", FourOfAKind},
		{"Qc Qd Qh 9s 9d 2c 3d", FullHouse},
		{"2d 7d 9d Jd Kd Ac As", Flush},
		{"Ac 2d 3h 4s 5c 9d Kh", Straight},
		{"Tc Jd Qh Ks Ac 2d 3h", Straight},
		{"8c 8d 8h Ks 2d 4c 6h", ThreeOfAKind},
		{"8c 8d Kh Ks 2d 4c 6h", TwoPair},
		{"8c 8d Jh Ks 2d 4c 6h", OnePair},
		{"8c 9d Jh Ks 2d 4c 6h", HighCard},
	}
	for _, tc := range cases {
		res, err := Evaluate(mustCards(t, tc.cards))
		require.NoError(t, err, tc.cards)
		assert.Equal(t, tc.want, res.Category, tc.cards)
		assert.NotEmpty(t, res.Description, tc.cards)
	}
}

func TestEvaluate_WheelIsLowestStraight(t *testing.T) {
	wheel, err := Evaluate(mustCards(t, "Ac 2d 3h 4s 5c"))
	require.NoError(t, err)
	six, err := Evaluate(mustCards(t, "2c 3d 4h 5s 6c"))
	require.NoError(t, err)
	assert.Equal(t, Straight, wheel.Category)
	assert.Less(t, wheel.Key, six.Key)
}

func TestEvaluate_KickersBreakTies(t *testing.T) {
	a, err := Evaluate(mustCards(t, "Ac Ad Kh 9s 4c"))
	require.NoError(t, err)
	b, err := Evaluate(mustCards(t, "Ah As Qh Js Tc"))
	require.NoError(t, err)
	assert.Greater(t, a.Key, b.Key)

	c, err := Evaluate(mustCards(t, "Ah As Kd 9c 4d"))
	require.NoError(t, err)
	assert.Equal(t, a.Key, c.Key, "suits never break ties")
}

func TestEvaluate_OrderOfInputIrrelevant(t *testing.T) {
	cards := mustCards(t, "Qc Qd 4h 9s 9d 2c Qs")
	want, err := Evaluate(cards)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := cards.Clone()
		shuffled.Shuffle(rng)
		got, err := Evaluate(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Category, got.Category)
	}
}

func TestEvaluate_RejectsBadInput(t *testing.T) {
	_, err := Evaluate(mustCards(t, "Ac Kd Qh Js"))
	assert.True(t, errors.Is(err, ErrInvalidCardCount))

	_, err = Evaluate(mustCards(t, "Ac Kd Qh Js Tc 9d 8h 7s"))
	assert.True(t, errors.Is(err, ErrInvalidCardCount))

	_, err = Evaluate(mustCards(t, "Ac Ac Qh Js Tc"))
	assert.True(t, errors.Is(err, ErrDuplicateCard))

	_, err = Evaluate([]card.Card{card.CardInvalid, card.CardClub2, card.CardClub3, card.CardClub4, card.CardClub5})
	assert.True(t, errors.Is(err, ErrMalformedCard))
	assert.True(t, IsValidation(err))
}

// Random seven-card hands must order the same way as an independent evaluator.
func TestEvaluate_AgreesWithReferenceEvaluator(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	deal := func() (card.CardList, int16) {
		deck := card.NewDeck()
		deck.Shuffle(rng)
		hand := deck[:7].Clone()
		var ref [7]poker.Card
		for i, c := range hand {
			pc, err := toPokerCard(c)
			require.NoError(t, err)
			ref[i] = pc
		}
		return hand, poker.Eval7(&ref)
	}

	for i := 0; i < 2000; i++ {
		h1, ref1 := deal()
		h2, ref2 := deal()
		r1, err := Evaluate(h1)
		require.NoError(t, err)
		r2, err := Evaluate(h2)
		require.NoError(t, err)

		switch {
		case ref1 > ref2:
			assert.Greater(t, r1.Key, r2.Key, "%s vs %s", h1, h2)
		case ref1 < ref2:
			assert.Less(t, r1.Key, r2.Key, "%s vs %s", h1, h2)
		default:
			assert.Equal(t, r1.Key, r2.Key, "%s vs %s", h1, h2)
		}
	}
}
