package sim

import (
	"context"
	"math/rand"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/rules"
)

// RandomStrategy picks uniformly among the directions that change the board.
type RandomStrategy struct {
	Rng *rand.Rand
}

func (RandomStrategy) Name() string { return "random" }

func (s RandomStrategy) NextDirection(_ context.Context, state *game.GameState) (game.Direction, error) {
	d, ok := RandomLegal(state.Board, s.Rng)
	if !ok {
		return game.Left, nil
	}
	return d, nil
}

// RandomLegal returns a uniformly random legal direction, or false when the
// board is terminal. It does not allocate.
func RandomLegal(b *game.Board, rng *rand.Rand) (game.Direction, bool) {
	var legal [game.NumDirections]game.Direction
	n := 0
	for _, d := range game.Directions {
		if rules.CanMove(b, d) {
			legal[n] = d
			n++
		}
	}
	if n == 0 {
		return game.Left, false
	}
	return legal[rng.Intn(n)], true
}

// Rollout plays uniformly random legal moves from state until the game ends
// or maxSteps moves were made. state is modified in place.
func Rollout(state *game.GameState, rng *rand.Rand, cfg Config) Outcome {
	limit := cfg.StepLimit()
	for step := 0; step < limit; step++ {
		d, ok := RandomLegal(state.Board, rng)
		if !ok {
			return Lost
		}
		if outcome := RunMove(state, d, rng, cfg); outcome != Continue {
			return outcome
		}
	}
	return Continue
}
