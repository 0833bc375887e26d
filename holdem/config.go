package holdem

import "fmt"

type Config struct {
	// Table
	MaxPlayers int

	// Blinds
	SmallBlind int64
	BigBlind   int64

	// RNG seed (0 => time-based). Hand n is shuffled with Seed+n.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers: 10,
		SmallBlind: 10,
		BigBlind:   20,
	}
}

func (c Config) validate() error {
	if c.MaxPlayers < 2 {
		return fmt.Errorf("MaxPlayers must be >= 2")
	}
	// 2 hole cards each plus a full board must fit in one deck.
	if c.MaxPlayers*2+5 > 52 {
		return fmt.Errorf("MaxPlayers %d does not fit a single deck", c.MaxPlayers)
	}
	if c.SmallBlind < 0 || c.BigBlind <= 0 || c.SmallBlind > c.BigBlind {
		return fmt.Errorf("invalid blinds: sb=%d bb=%d", c.SmallBlind, c.BigBlind)
	}
	return nil
}
