package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
	"github.com/google/go-cmp/cmp"
)

func stateFrom(t testing.TB, grid [][]int) *game.GameState {
	t.Helper()
	b, err := game.BoardFromRows(grid)
	if err != nil {
		t.Fatalf("BoardFromRows: %v", err)
	}
	return &game.GameState{Board: b}
}

func TestChooseDirection_SingleLegalMove(t *testing.T) {
	state := stateFrom(t, [][]int{{2, 0}})
	s := New(Config{Rollouts: 8, Workers: 2, Sim: sim.DefaultConfig}, 1)

	d, stats, err := s.ChooseDirection(context.Background(), state)
	if err != nil {
		t.Fatalf("ChooseDirection: %v", err)
	}
	if d != game.Right {
		t.Fatalf("chose %s want right", d)
	}
	for _, other := range []game.Direction{game.Left, game.Up, game.Down} {
		if stats[other].Legal || !math.IsInf(stats[other].Mean, -1) {
			t.Fatalf("%s should be illegal with -Inf mean, got %+v", other, stats[other])
		}
	}
	if stats[game.Right].Rollouts != 8 {
		t.Fatalf("rollouts=%d want 8", stats[game.Right].Rollouts)
	}
}

func TestChooseDirection_TerminalState(t *testing.T) {
	state := stateFrom(t, [][]int{{2, 4}, {4, 2}})
	s := New(Config{Rollouts: 4, Sim: sim.DefaultConfig}, 1)
	_, stats, err := s.ChooseDirection(context.Background(), state)
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("err=%v want ErrNoLegalMove", err)
	}
	for _, st := range stats {
		if !math.IsInf(st.Mean, -1) {
			t.Fatalf("mean=%v want -Inf", st.Mean)
		}
	}
}

func TestChooseDirection_DeterministicAcrossWorkerCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	state := game.NewGame(4, 4, rng)
	for i := 0; i < 5; i++ {
		d, _ := sim.RandomLegal(state.Board, rng)
		sim.RunMove(state, d, rng, sim.DefaultConfig)
	}
	before := state.Clone()

	d1, stats1, err := New(Config{Rollouts: 12, Workers: 1, Sim: sim.DefaultConfig}, 5).ChooseDirection(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	d8, stats8, err := New(Config{Rollouts: 12, Workers: 8, Sim: sim.DefaultConfig}, 5).ChooseDirection(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d8 {
		t.Fatalf("direction differs: %s vs %s", d1, d8)
	}
	if diff := cmp.Diff(stats1, stats8); diff != "" {
		t.Fatalf("stats differ (-1 worker +8 workers):\n%s", diff)
	}
	if diff := cmp.Diff(before, state); diff != "" {
		t.Fatalf("search mutated the caller's state:\n%s", diff)
	}
}

func TestStats_BestTieBreaksInEnumerationOrder(t *testing.T) {
	var stats Stats
	for _, d := range game.Directions {
		stats[d] = DirectionStats{Direction: d, Legal: true, Mean: 10}
	}
	stats[game.Left].Legal = false
	stats[game.Left].Mean = math.Inf(-1)
	if d, ok := stats.Best(); !ok || d != game.Right {
		t.Fatalf("Best()=%s,%v want right", d, ok)
	}
	stats[game.Down].Mean = 11
	if d, _ := stats.Best(); d != game.Down {
		t.Fatalf("Best()=%s want down", d)
	}
}

func TestSearcher_AsStrategyPlaysFullGame(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	state := game.NewGame(3, 3, rng)
	s := New(Config{Rollouts: 3, Workers: 4, Sim: sim.DefaultConfig}, 4)

	res, err := sim.Play(context.Background(), state, s, rng, sim.DefaultConfig, nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.Outcome != sim.Lost {
		t.Fatalf("outcome=%s", res.Outcome)
	}
	if got := len(s.LastMeans()); got != game.NumDirections {
		t.Fatalf("LastMeans len=%d", got)
	}
}

func TestChooseDirection_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := game.NewGame(4, 4, rand.New(rand.NewSource(1)))
	_, _, err := New(Config{Rollouts: 4, Sim: sim.DefaultConfig}, 1).ChooseDirection(ctx, state)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func BenchmarkChooseDirection(b *testing.B) {
	state := game.NewGame(4, 4, rand.New(rand.NewSource(1)))
	s := New(Config{Rollouts: DefaultRollouts, Sim: sim.DefaultConfig}, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.ChooseDirection(context.Background(), state); err != nil {
			b.Fatalf("ChooseDirection failed: %v", err)
		}
	}
}
