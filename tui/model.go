// Package tui is a bubbletea front end for playing 2048 in a terminal.
package tui

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/sim"
)

// Model is the interactive game. Arrow keys, hjkl or wasd move, n starts a
// new game and q quits.
type Model struct {
	Rows, Cols int
	Sim        sim.Config
	// Observe, when set, receives the state after every accepted move and
	// on each new game.
	Observe sim.Observer

	rng     *rand.Rand
	state   *game.GameState
	outcome sim.Outcome
	best    int
	status  string
}

func New(rows, cols int, cfg sim.Config, rng *rand.Rand) Model {
	m := Model{Rows: rows, Cols: cols, Sim: cfg, rng: rng}
	m.reset()
	return m
}

func (m *Model) reset() {
	m.state = game.NewGame(m.Rows, m.Cols, m.rng)
	m.outcome = sim.Continue
	m.status = ""
	if m.Observe != nil {
		m.Observe(m.state.Snapshot())
	}
}

func (m Model) State() *game.GameState { return m.state }
func (m Model) Outcome() sim.Outcome   { return m.outcome }

func (m Model) Init() tea.Cmd { return nil }

// keyDirection maps a key to a direction.
func keyDirection(key string) (game.Direction, bool) {
	switch key {
	case "left", "h", "a":
		return game.Left, true
	case "right", "l", "d":
		return game.Right, true
	case "up", "k", "w":
		return game.Up, true
	case "down", "j", "s":
		return game.Down, true
	}
	return 0, false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "n":
		m.reset()
		return m, nil
	}

	d, ok := keyDirection(key.String())
	if !ok || m.outcome != sim.Continue {
		return m, nil
	}

	// The board is mutated in place, so work on a copy to keep earlier
	// Model values intact.
	m.state = m.state.Clone()
	turn := m.state.Turn
	m.outcome = sim.RunMove(m.state, d, m.rng, m.Sim)
	if m.state.Score > m.best {
		m.best = m.state.Score
	}
	switch {
	case m.outcome == sim.Lost:
		m.status = "No moves left. Press n for a new game."
	case m.outcome == sim.Won:
		m.status = "You win! Press n for a new game."
	case m.state.Turn == turn:
		m.status = "Can't move " + d.String() + "."
	default:
		m.status = ""
	}
	if m.state.Turn != turn && m.Observe != nil {
		m.Observe(m.state.Snapshot())
	}
	return m, nil
}

var (
	cellStyle  = lipgloss.NewStyle().Width(6).Align(lipgloss.Right).PaddingRight(1)
	emptyStyle = cellStyle.Foreground(lipgloss.Color("240"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// tileColors are 256-colour codes indexed by log2(value).
var tileColors = []string{"", "230", "223", "215", "209", "203", "196", "228", "227", "226", "220", "214"}

func tileStyle(v int) lipgloss.Style {
	exp := 0
	for x := v; x > 1; x >>= 1 {
		exp++
	}
	color := "201"
	if exp < len(tileColors) {
		color = tileColors[exp]
	}
	return cellStyle.Foreground(lipgloss.Color(color)).Bold(true)
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Score %d  Best %d  Turn %d", m.state.Score, m.best, m.state.Turn)))
	sb.WriteString("\n\n")
	b := m.state.Board
	for r := 0; r < b.Rows; r++ {
		cells := make([]string, b.Cols)
		for c := 0; c < b.Cols; c++ {
			v := b.Get(r, c)
			if v == 0 {
				cells[c] = emptyStyle.Render(".")
				continue
			}
			cells[c] = tileStyle(v).Render(strconv.Itoa(v))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(m.status)
		sb.WriteString("\n")
	}
	sb.WriteString(hintStyle.Render("arrows/hjkl/wasd move, n new game, q quit"))
	sb.WriteString("\n")
	return sb.String()
}
