package domain

import "github.com/jonboulle/clockwork"

// clock stamps Quake.ProcessedAt and Summary.GeneratedAt.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the time source used for run timestamps. Passing nil
// restores the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}
