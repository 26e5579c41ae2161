package genetic

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
)

// Config holds the evolution parameters.
type Config struct {
	PopulationSize int
	Length         int // moves per individual
	Generations    int // total generations, including resumed ones
	MutationRate   float64
	NumParents     int
	Resume         bool
	Workers        int // concurrent fitness evaluations; <= 0 means GOMAXPROCS

	Rows int
	Cols int
	Sim  sim.Config
	// Seed fixes the opening of every generation. Individuals of one
	// generation all start from the same board.
	Seed int64
}

// DefaultConfig is 100 individuals of 60 moves, 50 generations, 10 parents
// and a 10% mutation rate.
var DefaultConfig = Config{
	PopulationSize: 100,
	Length:         60,
	Generations:    50,
	MutationRate:   0.1,
	NumParents:     10,
	Resume:         true,
	Rows:           game.DefaultRows,
	Cols:           game.DefaultCols,
	Sim:            sim.DefaultConfig,
}

// Store persists populations between generations. Load on a store with no
// saved data returns an empty population at generation 0 and no error.
type Store interface {
	Save(pop Population) error
	Load() (Population, error)
}

// GenerationReport describes one evaluated generation. Generation is the
// zero-based index of the generation that was scored.
type GenerationReport struct {
	Generation int
	Best       int
	Mean       float64
	Min        int
	BestMoves  Individual
	Fitness    []int
}

// Fitness replays ind on a fresh game built from seed and returns the final
// score. Replay stops early once the game is lost or won.
func Fitness(ind Individual, seed int64, cfg Config) int {
	rng := rand.New(rand.NewSource(seed))
	state := game.NewGame(cfg.Rows, cfg.Cols, rng)
	for _, d := range ind {
		if sim.RunMove(state, d, rng, cfg.Sim) != sim.Continue {
			break
		}
	}
	return state.Score
}

// Evaluate scores every individual in parallel. The result is indexed like pop.
func Evaluate(ctx context.Context, pop []Individual, seed int64, cfg Config) ([]int, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	fitness := make([]int, len(pop))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ind := range pop {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fitness[i] = Fitness(ind, seed, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fitness, nil
}

// Trainer runs the generation loop.
type Trainer struct {
	Config Config
	Store  Store
	Logger *slog.Logger
	// OnGeneration is called after each generation is scored. An error stops training.
	OnGeneration func(GenerationReport) error
}

// Evolve runs evaluate -> select -> crossover -> mutate -> save until
// Config.Generations is reached. With Resume set it continues from the stored
// population; a missing or unreadable store starts fresh.
func (t *Trainer) Evolve(ctx context.Context, rng *rand.Rand) (Population, error) {
	cfg := t.Config
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var pop Population
	if cfg.Resume && t.Store != nil {
		loaded, err := t.Store.Load()
		if err != nil {
			logger.Warn("could not load saved population, starting fresh", "err", err)
		} else {
			pop = loaded
			logger.Info("resumed population", "generation", pop.Generation, "size", len(pop.Individuals))
		}
	}
	if cfg.NumParents <= 0 {
		cfg.NumParents = 1
	}
	if len(pop.Individuals) == 0 {
		pop.Individuals = RandomPopulation(rng, cfg.PopulationSize, cfg.Length)
	}

	for gen := pop.Generation; gen < cfg.Generations; gen++ {
		seed := game.MixSeed(uint64(cfg.Seed), uint64(gen))
		fitness, err := Evaluate(ctx, pop.Individuals, seed, cfg)
		if err != nil {
			return pop, fmt.Errorf("evaluate generation %d: %w", gen, err)
		}

		parents := Select(pop.Individuals, fitness, cfg.NumParents)
		report := summarize(gen, fitness, parents)
		logger.Info("generation scored",
			"generation", gen+1,
			"best", report.Best,
			"mean", report.Mean,
			"min", report.Min,
		)
		if t.OnGeneration != nil {
			if err := t.OnGeneration(report); err != nil {
				return pop, fmt.Errorf("generation %d callback: %w", gen, err)
			}
		}

		children := Crossover(rng, parents, cfg.PopulationSize)
		Mutate(rng, children, cfg.MutationRate)
		pop = Population{Individuals: children, Generation: gen + 1}

		if t.Store != nil {
			if err := t.Store.Save(pop); err != nil {
				return pop, fmt.Errorf("save generation %d: %w", gen+1, err)
			}
		}
	}
	return pop, nil
}

func summarize(gen int, fitness []int, parents []Individual) GenerationReport {
	r := GenerationReport{Generation: gen, Fitness: fitness}
	if len(fitness) == 0 {
		return r
	}
	total := 0
	r.Min = fitness[0]
	for _, f := range fitness {
		total += f
		if f > r.Best {
			r.Best = f
		}
		if f < r.Min {
			r.Min = f
		}
	}
	r.Mean = float64(total) / float64(len(fitness))
	if len(parents) > 0 {
		r.BestMoves = parents[0].Clone()
	}
	return r
}
