// Command play is 2048 in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/logging"
	"github.com/brensch/twenty48/tui"
	"github.com/brensch/twenty48/viewer"
)

func main() {
	var (
		g       config.Game
		logOpts logging.Options
	)
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	g.RegisterFlags(fs)
	logOpts.RegisterFlags(fs)
	logFile := fs.String("log-file", config.EnvString("LOG_FILE", ""), "Write logs to this file (the terminal is taken by the game)")
	viewerAddr := fs.String("viewer-addr", config.EnvString("VIEWER_ADDR", ""), "If set, mirror the game to a browser on this address")
	_ = fs.Parse(os.Args[1:])

	if err := g.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	h, err := logging.NewHandler(out, logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := tui.New(g.Rows, g.Cols, g.Sim(), g.Rand())
	logger.Info("new session", "board", fmt.Sprintf("%dx%d", g.Rows, g.Cols), "seed", g.Seed)

	if *viewerAddr != "" {
		hub := viewer.NewHub()
		go hub.Run(ctx)
		srv := &http.Server{Addr: *viewerAddr, Handler: viewer.NewServer(hub, nil).Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("viewer stopped", "err", err)
			}
		}()
		defer srv.Close()
		m.Observe = hub.Publish
		hub.Publish(m.State().Snapshot())
	}

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		logger.Error("program failed", "err", err)
		os.Exit(1)
	}
	if fm, ok := final.(tui.Model); ok {
		st := fm.State()
		fmt.Printf("Final score %d after %d moves (max tile %d)\n", st.Score, st.Turn, st.Board.MaxTile())
		logger.Info("session ended", "score", st.Score, "turns", st.Turn, "outcome", fm.Outcome().String())
	}
}
