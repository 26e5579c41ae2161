// Command moveserver serves Monte Carlo move suggestions for 2048 boards over
// HTTP. POST a board to /move and get back a direction with per-direction
// rollout stats.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/executor/montecarlo"
	"github.com/brensch/twenty48/logging"
)

type options struct {
	listen      string
	moveTimeout time.Duration
	rollouts    int
	workers     int
	game        config.Game
	log         logging.Options
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("moveserver", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.listen, "listen", config.EnvString("LISTEN", ":8080"), "HTTP listen address")
	fs.DurationVar(&o.moveTimeout, "move-timeout", config.EnvDuration("MOVE_TIMEOUT", 500*time.Millisecond), "Default move timeout")
	fs.IntVar(&o.rollouts, "rollouts", config.EnvInt("ROLLOUTS", montecarlo.DefaultRollouts), "Rollouts per direction (search stops early at the timeout)")
	fs.IntVar(&o.workers, "search-workers", config.EnvInt("SEARCH_WORKERS", 0), "Concurrent rollouts per request (0 = GOMAXPROCS)")
	o.game.RegisterFlags(fs)
	o.log.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.rollouts <= 0 {
		return o, fmt.Errorf("rollouts must be positive, got %d", o.rollouts)
	}
	if o.moveTimeout <= 0 {
		return o, fmt.Errorf("move-timeout must be positive, got %s", o.moveTimeout)
	}
	if err := o.game.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.Setup(o.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	seed := o.game.ResolveSeed()

	server := NewServer(montecarlo.Config{
		Rollouts: o.rollouts,
		Workers:  o.workers,
		Sim:      o.game.Sim(),
	}, seed, o.moveTimeout, logger)

	srv := &http.Server{
		Addr:              o.listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("move server listening", "addr", o.listen, "rollouts", o.rollouts, "seed", seed)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
