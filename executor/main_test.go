package main

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/executor/genetic"
	"github.com/brensch/twenty48/executor/selfplay"
	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
	"github.com/brensch/twenty48/store"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func gameRows(id string, n int) []store.TurnRow {
	rows := make([]store.TurnRow, n)
	for i := range rows {
		rows[i] = store.TurnRow{GameID: id, Turn: int32(i), Rows: 1, Cols: 2, Cells: []int32{2, 0}, Direction: -1, Outcome: "lost"}
	}
	return rows
}

func TestParquetWriterLoop_BatchesAndFinalFlush(t *testing.T) {
	dir := t.TempDir()
	in := make(chan []store.TurnRow, 8)
	in <- gameRows("a", 2)
	in <- gameRows("b", 3)
	in <- nil
	in <- gameRows("c", 1)
	close(in)

	parquetWriterLoop(discardLogger(), dir, 2, in)

	files, err := filepath.Glob(filepath.Join(dir, "batch_*.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("want one full batch and one final flush, got %v", files)
	}
	total := 0
	games := map[string]bool{}
	for _, f := range files {
		rows, err := store.ReadTurns(f)
		if err != nil {
			t.Fatal(err)
		}
		total += len(rows)
		for _, r := range rows {
			games[r.GameID] = true
		}
	}
	if total != 6 || len(games) != 3 {
		t.Fatalf("rows=%d games=%v", total, games)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "tmp")); len(entries) != 0 {
		t.Fatalf("tmp not empty: %v", entries)
	}
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-strategy", "random", "-workers", "0", "-rows", "3", "-cols", "3", "-seed", "5"})
	if err != nil {
		t.Fatal(err)
	}
	if o.strategy != "random" || o.workers != 1 || o.game.Rows != 3 || o.game.Seed != 5 {
		t.Fatalf("options=%+v", o)
	}
	if _, err := parseFlags([]string{"-strategy", "alphazero"}); err == nil || !strings.Contains(err.Error(), "alphazero") {
		t.Fatalf("err=%v", err)
	}
	if _, err := parseFlags([]string{"-four-chance", "120"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseFlags_GeneticReplay(t *testing.T) {
	if _, err := parseFlags([]string{"-strategy", "ga", "-seed", "0"}); err == nil || !strings.Contains(err.Error(), "-seed") {
		t.Fatalf("err=%v want a missing seed error", err)
	}
	o, err := parseFlags([]string{"-strategy", "ga", "-seed", "9", "-workers", "8"})
	if err != nil {
		t.Fatal(err)
	}
	if o.workers != 1 {
		t.Fatalf("workers=%d want 1 for ga", o.workers)
	}
}

func TestWorkerLoop_GeneticReplayPlaysOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rng := rand.New(rand.NewSource(3))
	writes := make(chan []store.TurnRow, 4)
	w := worker{
		opts: options{
			strategy: "ga",
			game:     config.Game{Rows: game.DefaultRows, Cols: game.DefaultCols, Seed: 9},
		},
		sim:     sim.DefaultConfig,
		best:    genetic.RandomIndividual(rng, 20),
		gaSeed:  game.MixSeed(9, 0),
		logger:  discardLogger(),
		writes:  writes,
		updates: make(chan gameUpdate, 4),
		cancel:  cancel,
	}
	w.loop(ctx)

	if len(writes) != 1 {
		t.Fatalf("games written=%d want 1", len(writes))
	}
	if ctx.Err() == nil {
		t.Fatalf("replay should stop the run once its game is done")
	}
	rows := <-writes
	if rows[0].Strategy != "genetic" {
		t.Fatalf("strategy=%q", rows[0].Strategy)
	}
}

func TestStatsModel(t *testing.T) {
	updates := make(chan gameUpdate)
	var m tea.Model = newStatsModel(updates)
	m, cmd := m.Update(gameUpdate{WorkerID: 2, Rows: 40, Result: selfplay.GameResult{Outcome: sim.Lost, Score: 1200, MaxTile: 128, Steps: 39}})
	if cmd == nil {
		t.Fatalf("update should wait for the next game")
	}
	view := m.View()
	for _, want := range []string{"Games Played: 1", "Rows Written: 40", "Best Score:   1200 (tile 128)", "Worker 2: lost"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatalf("q should quit")
	}
}
