// Package montecarlo picks moves by averaging random playouts.
package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/rules"
	"github.com/brensch/twenty48/sim"
)

var ErrNoLegalMove = errors.New("no legal move")

// Searcher holds the search context. A Searcher remembers the stats of its
// last search, so each game should own its own Searcher.
type Searcher struct {
	Config Config
	Seed   int64

	last Stats
}

func New(cfg Config, seed int64) *Searcher {
	return &Searcher{Config: cfg, Seed: seed}
}

func (s *Searcher) Name() string { return "montecarlo" }

// NextDirection implements sim.Strategy.
func (s *Searcher) NextDirection(ctx context.Context, state *game.GameState) (game.Direction, error) {
	d, stats, err := s.ChooseDirection(ctx, state)
	if err != nil {
		return d, err
	}
	s.last = stats
	return d, nil
}

// LastMeans reports the per-direction means behind the latest NextDirection.
func (s *Searcher) LastMeans() []float64 { return s.last.Means() }

// ChooseDirection runs Rollouts playouts for every legal first move and
// returns the direction with the best mean final score. state is not modified.
//
// Each playout seeds its own generator from (Seed, Turn, direction, index) so
// the choice for a given state does not depend on the number of workers.
func (s *Searcher) ChooseDirection(ctx context.Context, state *game.GameState) (game.Direction, Stats, error) {
	rollouts := s.Config.Rollouts
	if rollouts <= 0 {
		rollouts = DefaultRollouts
	}
	workers := s.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var stats Stats
	var scores [game.NumDirections][]int
	var outcomes [game.NumDirections][]sim.Outcome
	base := uint64(game.MixSeed(uint64(s.Seed), uint64(state.Turn)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, d := range game.Directions {
		stats[d] = DirectionStats{Direction: d, Mean: math.Inf(-1)}
		if !rules.CanMove(state.Board, d) {
			continue
		}
		stats[d].Legal = true
		scores[d] = make([]int, rollouts)
		outcomes[d] = make([]sim.Outcome, rollouts)

		for i := 0; i < rollouts; i++ {
			seed := game.MixSeed(base, uint64(int(d)*rollouts+i))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng := rand.New(rand.NewSource(seed))
				local := state.Clone()
				outcome := sim.RunMove(local, d, rng, s.Config.Sim)
				if outcome == sim.Continue {
					outcome = sim.Rollout(local, rng, s.Config.Sim)
				}
				scores[d][i] = local.Score
				outcomes[d][i] = outcome
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return game.Left, stats, err
	}

	for _, d := range game.Directions {
		if !stats[d].Legal {
			continue
		}
		total := 0
		for i, sc := range scores[d] {
			total += sc
			if sc > stats[d].Best {
				stats[d].Best = sc
			}
			if outcomes[d][i] == sim.Won {
				stats[d].Won++
			}
		}
		stats[d].Rollouts = rollouts
		stats[d].Mean = float64(total) / float64(rollouts)
	}

	best, ok := stats.Best()
	if !ok {
		return game.Left, stats, ErrNoLegalMove
	}
	return best, stats, nil
}
