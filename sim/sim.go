// Package sim is the headless simulation driver shared by every player:
// keyboard play, Monte Carlo rollouts and genetic fitness evaluation all
// advance a game through RunMove.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/rules"
)

// Outcome is the result of a single RunMove.
type Outcome int

const (
	Continue Outcome = iota
	Lost
	Won
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Lost:
		return "lost"
	case Won:
		return "won"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// DefaultMaxSteps bounds a single game. A 4x4 game cannot last this long, so
// hitting it means something is wrong.
const DefaultMaxSteps = 1_000_000

var ErrStepLimit = errors.New("step limit reached")

// Config holds the rule knobs that are not part of the board itself.
type Config struct {
	Spawn game.SpawnSettings
	// StopAtTile ends the game as Won once a merge produces a tile of at least
	// this value. Zero disables it.
	StopAtTile int
	// MaxSteps caps Play and rollouts. Zero means DefaultMaxSteps.
	MaxSteps int
}

// DefaultConfig spawns 2 or 4 uniformly and never stops on a win.
var DefaultConfig = Config{Spawn: game.DefaultSpawnSettings}

func (c Config) StepLimit() int {
	if c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

// RunMove applies d to state in place.
//
// A direction that changes nothing is a no-op and returns Continue unless the
// board is already terminal. An accepted move adds the merge score, spawns one
// tile and advances Turn.
func RunMove(state *game.GameState, d game.Direction, rng *rand.Rand, cfg Config) Outcome {
	delta, largest, moved := rules.SlideMerged(state.Board, d)
	if !moved {
		if rules.IsTerminal(state.Board) {
			return Lost
		}
		return Continue
	}
	state.Score += delta
	state.Turn++
	game.SpawnTile(state.Board, rng, cfg.Spawn)

	if cfg.StopAtTile > 0 && largest >= cfg.StopAtTile {
		return Won
	}
	if rules.IsTerminal(state.Board) {
		return Lost
	}
	return Continue
}

// Strategy picks the next direction for a state. Implementations must not
// modify state.
type Strategy interface {
	Name() string
	NextDirection(ctx context.Context, state *game.GameState) (game.Direction, error)
}

// Observer receives a snapshot after every accepted move and once at start.
type Observer func(game.Snapshot)

// Result summarises a finished Play.
type Result struct {
	Outcome Outcome
	Steps   int
	Score   int
	MaxTile int
}

// Play drives state with strategy until the game ends, the strategy fails or
// the step limit is hit. state is modified in place.
func Play(ctx context.Context, state *game.GameState, strategy Strategy, rng *rand.Rand, cfg Config, observe Observer) (Result, error) {
	if observe != nil {
		observe(state.Snapshot())
	}
	result := func(o Outcome, steps int) Result {
		return Result{Outcome: o, Steps: steps, Score: state.Score, MaxTile: state.Board.MaxTile()}
	}
	if rules.IsTerminal(state.Board) {
		return result(Lost, 0), nil
	}

	limit := cfg.StepLimit()
	for step := 0; step < limit; step++ {
		if err := ctx.Err(); err != nil {
			return result(Continue, step), err
		}
		d, err := strategy.NextDirection(ctx, state)
		if err != nil {
			return result(Continue, step), fmt.Errorf("%s: %w", strategy.Name(), err)
		}
		turn := state.Turn
		outcome := RunMove(state, d, rng, cfg)
		if observe != nil && state.Turn != turn {
			observe(state.Snapshot())
		}
		if outcome != Continue {
			return result(outcome, step+1), nil
		}
	}
	return result(Continue, limit), ErrStepLimit
}
