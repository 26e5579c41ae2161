package config

import (
	"flag"
	"fmt"
	"math"
	"math/rand"

	"lukechampine.com/frand"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
)

// Game is the board and simulation configuration shared by every binary.
type Game struct {
	Rows       int
	Cols       int
	FourChance int
	StopAt     int
	MaxSteps   int
	Seed       int64
}

// RegisterFlags binds -rows, -cols, -four-chance, -stop-at, -max-steps and
// -seed. Defaults come from ROWS, COLS, FOUR_CHANCE, STOP_AT, MAX_STEPS and SEED.
func (g *Game) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&g.Rows, "rows", EnvInt("ROWS", game.DefaultRows), "Board rows")
	fs.IntVar(&g.Cols, "cols", EnvInt("COLS", game.DefaultCols), "Board columns")
	fs.IntVar(&g.FourChance, "four-chance", EnvInt("FOUR_CHANCE", game.DefaultSpawnSettings.FourChance), "Percent chance a spawned tile is a 4")
	fs.IntVar(&g.StopAt, "stop-at", EnvInt("STOP_AT", 0), "Stop as won once a tile reaches this value (0 disables)")
	fs.IntVar(&g.MaxSteps, "max-steps", EnvInt("MAX_STEPS", sim.DefaultMaxSteps), "Maximum moves per game or rollout")
	fs.Int64Var(&g.Seed, "seed", EnvInt64("SEED", 0), "RNG seed (0 picks a random seed)")
}

func (g Game) Validate() error {
	if g.Rows < 1 || g.Cols < 1 || g.Rows*g.Cols < 2 {
		return fmt.Errorf("board %dx%d needs at least two cells", g.Rows, g.Cols)
	}
	if g.FourChance < 0 || g.FourChance > 100 {
		return fmt.Errorf("four-chance %d outside [0,100]", g.FourChance)
	}
	if g.StopAt < 0 || g.MaxSteps < 0 {
		return fmt.Errorf("stop-at and max-steps must not be negative")
	}
	return nil
}

func (g Game) Sim() sim.Config {
	return sim.Config{
		Spawn:      game.SpawnSettings{FourChance: g.FourChance},
		StopAtTile: g.StopAt,
		MaxSteps:   g.MaxSteps,
	}
}

// ResolveSeed returns Seed, or a fresh random seed when Seed is 0. The result
// is stored back so it can be logged and reused.
func (g *Game) ResolveSeed() int64 {
	if g.Seed == 0 {
		g.Seed = RandomSeed()
	}
	return g.Seed
}

func (g *Game) Rand() *rand.Rand {
	return rand.New(rand.NewSource(g.ResolveSeed()))
}

// RandomSeed returns a non-zero seed from a CSPRNG.
func RandomSeed() int64 {
	return int64(frand.Uint64n(math.MaxInt64-1)) + 1
}
