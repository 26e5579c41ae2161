package selfplay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/executor/genetic"
	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/rules"
	"github.com/brensch/twenty48/sim"
	"github.com/brensch/twenty48/store"
)

// MeansReporter is implemented by strategies that score every direction
// before choosing, such as the Monte Carlo searcher.
type MeansReporter interface {
	LastMeans() []float64
}

type GameResult struct {
	Outcome sim.Outcome
	Score   int
	Steps   int
	MaxTile int
}

// InProgressGame is a resumable self-play game snapshot.
//
// It holds the current state plus the rows already recorded. Outcome fields
// on the rows are assigned only once the game completes.
type InProgressGame struct {
	GameID   string          `json:"game_id"`
	Strategy string          `json:"strategy"`
	State    *game.GameState `json:"state"`
	Rows     []store.TurnRow `json:"rows"`
	RNGSeed  int64           `json:"rng_seed"`
	PausedAt int             `json:"paused_at"`
}

type PlayGameOutcome struct {
	Completed  bool
	GameID     string
	Rows       []store.TurnRow
	Result     GameResult
	Checkpoint *InProgressGame
	Err        error
}

type PlayGameOptions struct {
	Rows int
	Cols int
	Sim  sim.Config
	// Seed drives spawns. Zero picks a random seed.
	Seed int64

	Resume        *InProgressGame
	StopRequested func() bool
	// Observe receives the state after every accepted move.
	Observe sim.Observer
	// OnStep is called once per accepted move.
	OnStep func()
	// Trace logs every board and the strategy's direction scores.
	Trace bool
}

// PlayGame plays one game with strategy and records one row per accepted
// move plus a closing row for the final board.
//
// Cancelling ctx or a true StopRequested returns a checkpoint instead of
// discarding the partial game. A strategy error other than an exhausted
// move sequence aborts the game and is returned in Err.
func PlayGame(ctx context.Context, workerID int, strategy sim.Strategy, opts PlayGameOptions) PlayGameOutcome {
	stopRequested := opts.StopRequested
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}
	rowsN, colsN := opts.Rows, opts.Cols
	if rowsN <= 0 {
		rowsN = game.DefaultRows
	}
	if colsN <= 0 {
		colsN = game.DefaultCols
	}

	var (
		state  *game.GameState
		gameID string
		seed   = opts.Seed
		rows   = make([]store.TurnRow, 0, 256)
	)
	if seed == 0 {
		seed = config.RandomSeed()
	}

	var rng *rand.Rand
	if r := opts.Resume; r != nil && r.State != nil && r.GameID != "" {
		gameID = r.GameID
		state = r.State.Clone()
		if r.RNGSeed != 0 {
			seed = r.RNGSeed
		}
		rows = append(rows, r.Rows...)
		rng = rand.New(rand.NewSource(seed))
	} else {
		// One generator drives the opening and every spawn, so a seed
		// reproduces a game exactly as genetic.Fitness plays it.
		rng = rand.New(rand.NewSource(seed))
		state = game.NewGame(rowsN, colsN, rng)
		gameID = uuid.NewString()
	}

	checkpoint := func() PlayGameOutcome {
		return PlayGameOutcome{
			GameID: gameID,
			Result: resultOf(state, sim.Continue),
			Checkpoint: &InProgressGame{
				GameID:   gameID,
				Strategy: strategy.Name(),
				State:    state.Clone(),
				Rows:     append([]store.TurnRow(nil), rows...),
				RNGSeed:  rng.Int63(),
				PausedAt: state.Turn,
			},
		}
	}

	limit := opts.Sim.StepLimit()
	outcome := sim.Continue
	for steps := 0; outcome == sim.Continue && steps < limit; steps++ {
		if ctx.Err() != nil || stopRequested() {
			return checkpoint()
		}
		if rules.IsTerminal(state.Board) {
			outcome = sim.Lost
			break
		}

		d, err := strategy.NextDirection(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				return checkpoint()
			}
			if errors.Is(err, genetic.ErrSequenceExhausted) {
				break
			}
			return PlayGameOutcome{
				GameID: gameID,
				Result: resultOf(state, outcome),
				Err:    fmt.Errorf("worker %d game %s turn %d: %w", workerID, gameID, state.Turn, err),
			}
		}

		row := turnRow(gameID, strategy.Name(), state)
		row.Direction = int32(d)
		if mr, ok := strategy.(MeansReporter); ok {
			row.Means = archiveMeans(mr.LastMeans())
		}
		if opts.Trace {
			traceTurn(workerID, state, d, row.Means)
		}

		turn := state.Turn
		outcome = sim.RunMove(state, d, rng, opts.Sim)
		if state.Turn == turn {
			// Rejected move, nothing to record.
			continue
		}
		rows = append(rows, row)
		if opts.OnStep != nil {
			opts.OnStep()
		}
		if opts.Observe != nil {
			opts.Observe(state.Snapshot())
		}
	}

	closing := turnRow(gameID, strategy.Name(), state)
	closing.Direction = -1
	rows = append(rows, closing)

	result := resultOf(state, outcome)
	for i := range rows {
		rows[i].Outcome = outcome.String()
		rows[i].FinalScore = int64(result.Score)
		rows[i].MaxTile = int32(result.MaxTile)
	}
	return PlayGameOutcome{Completed: true, GameID: gameID, Rows: rows, Result: result}
}

func resultOf(state *game.GameState, outcome sim.Outcome) GameResult {
	return GameResult{
		Outcome: outcome,
		Score:   state.Score,
		Steps:   state.Turn,
		MaxTile: state.Board.MaxTile(),
	}
}

func turnRow(gameID, strategy string, state *game.GameState) store.TurnRow {
	cells := make([]int32, len(state.Board.Cells))
	for i, v := range state.Board.Cells {
		cells[i] = int32(v)
	}
	return store.TurnRow{
		GameID:   gameID,
		Turn:     int32(state.Turn),
		Strategy: strategy,
		Rows:     int32(state.Board.Rows),
		Cols:     int32(state.Board.Cols),
		Cells:    cells,
		Score:    int64(state.Score),
	}
}

func archiveMeans(means []float64) []float64 {
	if len(means) == 0 {
		return nil
	}
	out := make([]float64, len(means))
	for i, m := range means {
		if math.IsInf(m, -1) || math.IsNaN(m) {
			m = store.IllegalMean
		}
		out[i] = m
	}
	return out
}
