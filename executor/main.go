// Command executor runs self-play games with a chosen strategy and archives
// every turn as parquet batches.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/executor/genetic"
	"github.com/brensch/twenty48/executor/montecarlo"
	"github.com/brensch/twenty48/executor/selfplay"
	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/logging"
	"github.com/brensch/twenty48/sim"
	"github.com/brensch/twenty48/store"
	"github.com/brensch/twenty48/viewer"
)

var (
	totalMoves atomic.Int64
	totalGames atomic.Int64
)

type options struct {
	game    config.Game
	logging logging.Options

	strategy      string
	workers       int
	rollouts      int
	searchWorkers int
	population    string
	outDir        string
	checkpointDir string
	gamesPerFlush int
	maxGames      int64
	viewerAddr    string
	statsEvery    time.Duration
	ui            bool
	trace         bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("executor", flag.ContinueOnError)
	o.game.RegisterFlags(fs)
	o.logging.RegisterFlags(fs)
	fs.StringVar(&o.strategy, "strategy", config.EnvString("STRATEGY", "mc"), "Strategy: mc, random or ga")
	fs.IntVar(&o.workers, "workers", config.EnvInt("WORKERS", runtime.NumCPU()), "Number of concurrent self-play games")
	fs.IntVar(&o.rollouts, "rollouts", config.EnvInt("ROLLOUTS", montecarlo.DefaultRollouts), "Monte Carlo rollouts per direction")
	fs.IntVar(&o.searchWorkers, "search-workers", config.EnvInt("SEARCH_WORKERS", 1), "Concurrent rollouts per Monte Carlo search")
	fs.StringVar(&o.population, "population", config.EnvString("POPULATION", "data/population.parquet"), "Population file used by the ga strategy")
	fs.StringVar(&o.outDir, "out-dir", config.EnvString("OUT_DIR", "data/games"), "Directory for parquet turn batches")
	fs.StringVar(&o.checkpointDir, "checkpoint-dir", config.EnvString("CHECKPOINT_DIR", ""), "If set, unfinished games are saved here on shutdown and resumed on start")
	fs.IntVar(&o.gamesPerFlush, "games-per-flush", config.EnvInt("GAMES_PER_FLUSH", 50), "Number of games to buffer per parquet flush")
	fs.Int64Var(&o.maxGames, "max-games", int64(config.EnvInt("MAX_GAMES", 0)), "If > 0, stop after this many games across all workers")
	fs.StringVar(&o.viewerAddr, "viewer-addr", config.EnvString("VIEWER_ADDR", ""), "If set, serve worker 0's game live on this address")
	fs.DurationVar(&o.statsEvery, "stats-every", config.EnvDuration("STATS_EVERY", 10*time.Second), "Interval between stats log lines")
	fs.BoolVar(&o.ui, "tui", config.EnvBool("TUI", false), "Show a live stats screen instead of stats log lines")
	fs.BoolVar(&o.trace, "trace", config.EnvBool("TRACE", false), "Log worker 0's boards and direction scores at debug level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if err := o.game.Validate(); err != nil {
		return o, err
	}
	switch o.strategy {
	case "mc", "random", "ga":
	default:
		return o, fmt.Errorf("unknown strategy %q", o.strategy)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.strategy == "ga" {
		// The replayed opening comes from the training seed, and one game
		// per run is all a fixed sequence on a fixed opening can produce.
		if o.game.Seed == 0 {
			return o, fmt.Errorf("strategy ga needs the -seed used for training")
		}
		o.workers = 1
	}
	if o.statsEvery <= 0 {
		return o, fmt.Errorf("stats-every must be positive, got %s", o.statsEvery)
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.Setup(o.logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(o, logger); err != nil {
		logger.Error("executor failed", "err", err)
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	baseSeed := o.game.ResolveSeed()
	simCfg := o.game.Sim()
	logger.Info("starting self-play",
		"strategy", o.strategy,
		"workers", o.workers,
		"board", fmt.Sprintf("%dx%d", o.game.Rows, o.game.Cols),
		"seed", baseSeed,
		"out_dir", o.outDir,
	)

	var (
		best   genetic.Individual
		gaSeed int64
	)
	if o.strategy == "ga" {
		var err error
		best, gaSeed, err = bestIndividual(ctx, o, simCfg)
		if err != nil {
			return err
		}
		logger.Info("replaying best individual", "moves", best.String(), "opening_seed", gaSeed)
	}

	var hub *viewer.Hub
	if o.viewerAddr != "" {
		hub = viewer.NewHub()
		go hub.Run(ctx)
		srv := &http.Server{Addr: o.viewerAddr, Handler: viewer.NewServer(hub, nil).Handler()}
		go func() {
			logger.Info("live viewer listening", "addr", o.viewerAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("live viewer stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	updates := make(chan gameUpdate, o.workers)
	writeReqs := make(chan []store.TurnRow, o.workers*4)
	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(logger, o.outDir, o.gamesPerFlush, writeReqs)
		close(writerDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			w := worker{
				id:       workerID,
				opts:     o,
				sim:      simCfg,
				seed:     game.MixSeed(uint64(baseSeed), uint64(workerID)),
				best:     best,
				gaSeed:   gaSeed,
				logger:   logger.With("worker", workerID),
				writes:   writeReqs,
				updates:  updates,
				cancel:   cancel,
				trace:    o.trace && workerID == 0,
				liveView: nil,
			}
			if hub != nil && workerID == 0 {
				w.liveView = hub.Publish
			}
			w.loop(ctx)
		}(i)
	}

	shutdown := func() {
		logger.Info("shutdown requested, waiting for workers")
		workerWG.Wait()
		close(writeReqs)
		<-writerDone
		logger.Info("shutdown complete", "games", totalGames.Load(), "moves", totalMoves.Load())
	}

	if o.ui {
		p := tea.NewProgram(newStatsModel(updates), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Warn("stats screen stopped", "err", err)
		}
		cancel()
		shutdown()
		return nil
	}

	start := time.Now()
	ticker := time.NewTicker(o.statsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdown()
			return nil
		case u := <-updates:
			logger.Debug("game finished",
				"worker", u.WorkerID,
				"outcome", u.Result.Outcome.String(),
				"score", u.Result.Score,
				"max_tile", u.Result.MaxTile,
				"steps", u.Result.Steps,
			)
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			logger.Info("stats",
				"games", totalGames.Load(),
				"moves", totalMoves.Load(),
				"moves_per_sec", float64(totalMoves.Load())/elapsed,
				"games_per_sec", float64(totalGames.Load())/elapsed,
			)
		}
	}
}

// bestIndividual loads the trained population and picks the individual with
// the highest fitness on the opening its next generation would be scored on.
// -seed must match the one used for training.
func bestIndividual(ctx context.Context, o options, simCfg sim.Config) (genetic.Individual, int64, error) {
	pop, err := (&store.PopulationFile{Path: o.population}).Load()
	if err != nil {
		return nil, 0, fmt.Errorf("load population: %w", err)
	}
	if len(pop.Individuals) == 0 {
		return nil, 0, fmt.Errorf("population %s is empty", o.population)
	}
	cfg := genetic.DefaultConfig
	cfg.Rows, cfg.Cols, cfg.Sim, cfg.Seed = o.game.Rows, o.game.Cols, simCfg, o.game.Seed
	seed := game.MixSeed(uint64(cfg.Seed), uint64(pop.Generation))
	fitness, err := genetic.Evaluate(ctx, pop.Individuals, seed, cfg)
	if err != nil {
		return nil, 0, err
	}
	parents := genetic.Select(pop.Individuals, fitness, 1)
	return parents[0], seed, nil
}

type gameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
	Rows     int
}

type worker struct {
	id       int
	opts     options
	sim      sim.Config
	seed     int64
	best     genetic.Individual
	gaSeed   int64
	logger   *slog.Logger
	writes   chan<- []store.TurnRow
	updates  chan<- gameUpdate
	cancel   context.CancelFunc
	trace    bool
	liveView func(game.Snapshot)
}

func (w *worker) checkpointPath() string {
	if w.opts.checkpointDir == "" {
		return ""
	}
	return filepath.Join(w.opts.checkpointDir, fmt.Sprintf("worker_%d.json", w.id))
}

func (w *worker) strategy(gameSeed int64) sim.Strategy {
	switch w.opts.strategy {
	case "random":
		return sim.RandomStrategy{Rng: rand.New(rand.NewSource(gameSeed))}
	case "ga":
		return &genetic.Replay{Moves: w.best}
	default:
		return montecarlo.New(montecarlo.Config{
			Rollouts: w.opts.rollouts,
			Workers:  w.opts.searchWorkers,
			Sim:      w.sim,
		}, gameSeed)
	}
}

func (w *worker) loop(ctx context.Context) {
	var resume *selfplay.InProgressGame
	if path := w.checkpointPath(); path != "" {
		cp, err := selfplay.LoadCheckpoint(path)
		if err != nil {
			w.logger.Warn("ignoring checkpoint", "path", path, "err", err)
		} else if cp != nil {
			resume = cp
			w.logger.Info("resuming game", "game_id", cp.GameID, "turn", cp.PausedAt)
		}
		_ = os.Remove(path)
	}

	for n := uint64(0); ctx.Err() == nil; n++ {
		gameSeed := game.MixSeed(uint64(w.seed), n)
		if w.opts.strategy == "ga" {
			// The replayed sequence only makes sense from its training opening.
			gameSeed = w.gaSeed
		}
		out := selfplay.PlayGame(ctx, w.id, w.strategy(gameSeed), selfplay.PlayGameOptions{
			Rows:    w.opts.game.Rows,
			Cols:    w.opts.game.Cols,
			Sim:     w.sim,
			Seed:    gameSeed,
			Resume:  resume,
			Observe: w.liveView,
			OnStep:  func() { totalMoves.Add(1) },
			Trace:   w.trace,
		})
		resume = nil

		if out.Err != nil {
			w.logger.Error("game aborted", "err", out.Err)
			continue
		}
		if !out.Completed {
			w.saveCheckpoint(out.Checkpoint)
			return
		}

		w.writes <- out.Rows
		total := totalGames.Add(1)
		if w.opts.maxGames > 0 && total >= w.opts.maxGames {
			w.cancel()
		}
		select {
		case w.updates <- gameUpdate{WorkerID: w.id, Result: out.Result, Rows: len(out.Rows)}:
		default:
		}
		if w.opts.strategy == "ga" {
			w.cancel()
			return
		}
	}
}

func (w *worker) saveCheckpoint(cp *selfplay.InProgressGame) {
	path := w.checkpointPath()
	if path == "" || cp == nil {
		return
	}
	if err := selfplay.SaveCheckpoint(path, cp); err != nil {
		w.logger.Error("save checkpoint", "path", path, "err", err)
		return
	}
	w.logger.Info("saved checkpoint", "path", path, "turn", cp.PausedAt)
}

func parquetWriterLoop(logger *slog.Logger, outDir string, gamesPerFlush int, in <-chan []store.TurnRow) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	pending := make([]store.TurnRow, 0, 512*gamesPerFlush)
	pendingGames := 0
	flush := func(final bool) {
		if pendingGames == 0 || len(pending) == 0 {
			return
		}
		outPath, err := store.WriteTurnsParquetAtomic(outDir, pending)
		if err != nil {
			logger.Error("parquet flush failed", "games", pendingGames, "rows", len(pending), "final", final, "err", err)
		} else {
			logger.Info("parquet flush ok", "path", outPath, "games", pendingGames, "rows", len(pending), "final", final)
		}
		pending = pending[:0]
		pendingGames = 0
	}

	for rows := range in {
		if len(rows) == 0 {
			continue
		}
		pending = append(pending, rows...)
		pendingGames++
		if pendingGames >= gamesPerFlush {
			flush(false)
		}
	}
	flush(true)
}
