package holdem

import "sort"

// pot is one layer of the hand's contributions and the seats that can win it.
type pot struct {
	amount   int64
	eligible []int
}

// buildPots splits the hand's contributions into a main pot and side pots.
// Each distinct TotalBet level of a non-folded player closes a layer; folded
// players' chips feed the layers they reached but they are never eligible.
// Adjacent layers with the same eligible set are merged.
func buildPots(players []Player) []pot {
	levels := make([]int64, 0, len(players))
	for _, p := range players {
		if !p.Folded && p.TotalBet > 0 {
			levels = append(levels, p.TotalBet)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]pot, 0, len(levels))
	var prev int64
	for _, level := range levels {
		if level == prev {
			continue
		}
		// The top level also sweeps in folded chips above it.
		top := level == levels[len(levels)-1]
		p := pot{}
		for i, pl := range players {
			contributed := layerShare(pl.TotalBet, prev, level, top)
			p.amount += contributed
			if !pl.Folded && pl.TotalBet >= level {
				p.eligible = append(p.eligible, i)
			}
		}
		prev = level

		if n := len(pots); n > 0 && sameSeats(pots[n-1].eligible, p.eligible) {
			pots[n-1].amount += p.amount
			continue
		}
		if p.amount > 0 {
			pots = append(pots, p)
		}
	}
	return pots
}

func layerShare(bet, low, high int64, top bool) int64 {
	if bet <= low {
		return 0
	}
	if bet > high && !top {
		return high - low
	}
	return bet - low
}

func sameSeats(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
