package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time

// statsModel is the live stats screen shown with -tui.
type statsModel struct {
	gamesPlayed int
	rows        int
	bestScore   int
	bestTile    int
	moves       int64
	startTime   time.Time
	recentGames []string
	updates     <-chan gameUpdate
}

func newStatsModel(updates <-chan gameUpdate) statsModel {
	return statsModel{startTime: time.Now(), updates: updates}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates <-chan gameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m statsModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case gameUpdate:
		m.gamesPlayed++
		m.rows += msg.Rows
		m.bestScore = max(m.bestScore, msg.Result.Score)
		m.bestTile = max(m.bestTile, msg.Result.MaxTile)
		line := fmt.Sprintf("Worker %d: %s, score %d, tile %d, steps %d",
			msg.WorkerID, msg.Result.Outcome, msg.Result.Score, msg.Result.MaxTile, msg.Result.Steps)
		m.recentGames = append([]string{line}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m statsModel) View() string {
	elapsed := time.Since(m.startTime)
	var gamesPerSec, movesPerSec float64
	if s := elapsed.Seconds(); s >= 1 {
		gamesPerSec = float64(m.gamesPlayed) / s
		movesPerSec = float64(m.moves) / s
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games Played: %d\n", m.gamesPlayed)
	fmt.Fprintf(&sb, "Rows Written: %d\n", m.rows)
	fmt.Fprintf(&sb, "Total Moves:  %d\n", m.moves)
	fmt.Fprintf(&sb, "Best Score:   %d (tile %d)\n", m.bestScore, m.bestTile)
	fmt.Fprintf(&sb, "Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:    %.2f\n", gamesPerSec)
	fmt.Fprintf(&sb, "Moves/Sec:    %.2f\n\n", movesPerSec)

	sb.WriteString("Recent Games:\n")
	for _, g := range m.recentGames {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}
