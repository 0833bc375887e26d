package holdem

import (
	"fmt"
	"sort"

	"holdem-live/card"
)

// settleByFold awards the whole pot to the last player holding cards.
func (s *GameState) settleByFold() error {
	winner := InvalidIndex
	for i, p := range s.Players {
		if !p.Folded {
			winner = i
			break
		}
	}
	if winner == InvalidIndex {
		return ErrInvalidState("no winner in no-showdown state")
	}
	amount := s.Pot
	s.Players[winner].Chips += amount
	s.completeHand([]int{winner}, []Payout{{PlayerIndex: winner, Amount: amount}}, ReasonOpponentFolded, "")
	return nil
}

// settleShowdown evaluates every live hand against a full board and pays each
// pot layer to its best eligible hands.
func (s *GameState) settleShowdown() error {
	if len(s.CommunityCards) != 5 {
		return ErrInvalidState(fmt.Sprintf("showdown with %d community cards", len(s.CommunityCards)))
	}
	results := make(map[int]HandResult, len(s.Players))
	for i, p := range s.Players {
		if p.Folded {
			continue
		}
		all := make(card.CardList, 0, 7)
		all = append(all, p.HoleCards...)
		all = append(all, s.CommunityCards...)
		res, err := Evaluate(all)
		if err != nil {
			return fmt.Errorf("evaluate seat %d: %w", i, err)
		}
		results[i] = res
	}

	won := make(map[int]int64, len(results))
	var mainWinners []int
	for pi, pt := range buildPots(s.Players) {
		winners := s.bestOf(pt.eligible, results)
		if len(winners) == 0 {
			return ErrInvalidState("pot without eligible winner")
		}
		for i, amt := range s.splitPot(pt.amount, winners) {
			won[winners[i]] += amt
		}
		if pi == 0 {
			mainWinners = winners
		}
	}

	payouts := make([]Payout, 0, len(won))
	for idx, amt := range won {
		s.Players[idx].Chips += amt
		payouts = append(payouts, Payout{PlayerIndex: idx, Amount: amt})
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].PlayerIndex < payouts[j].PlayerIndex })

	reason := ReasonBestHand
	if len(mainWinners) > 1 {
		reason = ReasonSplitPot
	}
	s.completeHand(mainWinners, payouts, reason, results[mainWinners[0]].Description)
	return nil
}

// bestOf returns the seats holding the highest key, ordered clockwise from
// the dealer's left.
func (s *GameState) bestOf(seats []int, results map[int]HandResult) []int {
	var best uint32
	var winners []int
	for _, i := range seats {
		r, ok := results[i]
		if !ok {
			continue
		}
		switch {
		case winners == nil || r.Key > best:
			best = r.Key
			winners = []int{i}
		case r.Key == best:
			winners = append(winners, i)
		}
	}
	n := len(s.Players)
	sort.Slice(winners, func(a, b int) bool {
		return (winners[a]-s.DealerIndex-1+n)%n < (winners[b]-s.DealerIndex-1+n)%n
	})
	return winners
}

// splitPot divides amount evenly; odd chips go one at a time to the winners
// in the order given (clockwise from the dealer's left).
func (s *GameState) splitPot(amount int64, winners []int) []int64 {
	shares := make([]int64, len(winners))
	base := amount / int64(len(winners))
	rem := amount % int64(len(winners))
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares
}

func (s *GameState) completeHand(winners []int, payouts []Payout, reason, description string) {
	w := winners[0]
	s.Winner = &w
	s.Winners = append([]int(nil), winners...)
	s.Payouts = payouts
	s.WinnerReason = reason
	s.WinningHand = description
	s.Pot = 0
	s.CurrentBet = 0
	for i := range s.Players {
		s.Players[i].CurrentBet = 0
	}
	s.PendingActions = 0
	s.LastAggressor = InvalidIndex
	s.ActivePlayerIndex = InvalidIndex
	s.Phase = PhaseComplete
}
