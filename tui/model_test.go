package tui

import (
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
)

func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestKeyDirection(t *testing.T) {
	cases := map[string]game.Direction{
		"left": game.Left, "h": game.Left, "a": game.Left,
		"right": game.Right, "l": game.Right, "d": game.Right,
		"up": game.Up, "k": game.Up, "w": game.Up,
		"down": game.Down, "j": game.Down, "s": game.Down,
	}
	for key, want := range cases {
		got, ok := keyDirection(key)
		if !ok || got != want {
			t.Errorf("%q -> %s,%v want %s", key, got, ok, want)
		}
	}
	if _, ok := keyDirection("x"); ok {
		t.Errorf("x should not map to a direction")
	}
}

func TestUpdate_MoveAndObserve(t *testing.T) {
	var snaps []game.Snapshot
	m := New(4, 4, sim.DefaultConfig, rand.New(rand.NewSource(1)))
	m.Observe = func(s game.Snapshot) { snaps = append(snaps, s) }
	b, err := game.BoardFromRows([][]int{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	m.state = &game.GameState{Board: b}
	before := m.state

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.state.Score != 4 || m.state.Turn != 1 || m.state.Board.Get(0, 0) != 4 {
		t.Fatalf("after left: score=%d turn=%d\n%s", m.state.Score, m.state.Turn, m.state.Board)
	}
	if m.state.Board.TileCount() != 2 {
		t.Fatalf("expected merge plus one spawn, got %d tiles", m.state.Board.TileCount())
	}
	if before.Turn != 0 || before.Board.Get(0, 1) != 2 {
		t.Fatalf("previous model state was mutated")
	}
	if len(snaps) != 1 || snaps[0].Score != 4 {
		t.Fatalf("snapshots=%+v", snaps)
	}
	if !strings.Contains(m.View(), "Score 4") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestUpdate_RejectedMove(t *testing.T) {
	m := New(1, 2, sim.DefaultConfig, rand.New(rand.NewSource(1)))
	b, _ := game.BoardFromRows([][]int{{2, 0}})
	m.state = &game.GameState{Board: b}
	m, _ = press(t, m, runes("h"))
	if m.state.Turn != 0 || m.outcome != sim.Continue {
		t.Fatalf("rejected move changed state: turn=%d outcome=%s", m.state.Turn, m.outcome)
	}
	if !strings.Contains(m.View(), "Can't move left") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestUpdate_LostThenNewGame(t *testing.T) {
	m := New(2, 2, sim.Config{Spawn: game.SpawnSettings{FourChance: 0}}, rand.New(rand.NewSource(1)))
	b, _ := game.BoardFromRows([][]int{{2, 4}, {0, 8}})
	m.state = &game.GameState{Board: b}

	// Left slides the 8 over; the only empty cell gets a 2 and nothing can merge.
	m, _ = press(t, m, runes("a"))
	if m.outcome != sim.Lost {
		t.Fatalf("outcome=%s board:\n%s", m.outcome, m.state.Board)
	}
	if !strings.Contains(m.View(), "No moves left") {
		t.Fatalf("view:\n%s", m.View())
	}

	turn := m.state.Turn
	m, _ = press(t, m, runes("d"))
	if m.state.Turn != turn {
		t.Fatalf("move accepted after game over")
	}

	m, _ = press(t, m, runes("n"))
	if m.outcome != sim.Continue || m.state.Turn != 0 || m.state.Board.TileCount() != 2 {
		t.Fatalf("new game: outcome=%s turn=%d tiles=%d", m.outcome, m.state.Turn, m.state.Board.TileCount())
	}
}

func TestUpdate_Quit(t *testing.T) {
	m := New(4, 4, sim.DefaultConfig, rand.New(rand.NewSource(1)))
	for _, key := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := press(t, m, key)
		if cmd == nil {
			t.Fatalf("%s should quit", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s returned %T", key, cmd())
		}
	}
}
