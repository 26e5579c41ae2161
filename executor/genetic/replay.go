package genetic

import (
	"context"
	"errors"

	"github.com/brensch/twenty48/game"
)

var ErrSequenceExhausted = errors.New("move sequence exhausted")

// Replay plays an individual's moves in order as a sim.Strategy.
type Replay struct {
	Moves Individual
	next  int
}

func (r *Replay) Name() string { return "genetic" }

func (r *Replay) NextDirection(context.Context, *game.GameState) (game.Direction, error) {
	if r.next >= len(r.Moves) {
		return game.Left, ErrSequenceExhausted
	}
	d := r.Moves[r.next]
	r.next++
	return d, nil
}
