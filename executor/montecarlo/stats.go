package montecarlo

import (
	"math"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
)

// DefaultRollouts is the number of playouts per direction.
const DefaultRollouts = 50

// Config holds Monte Carlo configuration
type Config struct {
	Rollouts int // per direction
	Workers  int // concurrent rollouts; <= 0 means GOMAXPROCS
	Sim      sim.Config
}

// DirectionStats summarises the rollouts of one first move.
type DirectionStats struct {
	Direction game.Direction `json:"direction"`
	Legal     bool           `json:"legal"`
	Rollouts  int            `json:"rollouts"`
	Mean      float64        `json:"mean"`
	Best      int            `json:"best"`
	Won       int            `json:"won"`
}

// Stats is indexed by game.Direction.
type Stats [game.NumDirections]DirectionStats

// Means returns the per-direction means in enumeration order. Illegal
// directions report -Inf.
func (s Stats) Means() []float64 {
	out := make([]float64, len(s))
	for i, d := range s {
		out[i] = d.Mean
	}
	return out
}

// Best returns the direction with the highest mean. Ties go to the first
// direction in enumeration order. ok is false when no direction is legal.
func (s Stats) Best() (d game.Direction, ok bool) {
	bestMean := math.Inf(-1)
	for i := range s {
		if !s[i].Legal {
			continue
		}
		if !ok || s[i].Mean > bestMean {
			bestMean = s[i].Mean
			d = s[i].Direction
			ok = true
		}
	}
	return d, ok
}
