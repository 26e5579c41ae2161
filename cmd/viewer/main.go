// Command viewer browses archived games and training history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/twenty48/config"
	"github.com/brensch/twenty48/logging"
	"github.com/brensch/twenty48/viewer"
)

func parseDataRoots(s string) []string {
	var roots []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

func main() {
	var logOpts logging.Options
	fs := flag.NewFlagSet("viewer", flag.ExitOnError)
	logOpts.RegisterFlags(fs)
	listen := fs.String("listen", config.EnvString("LISTEN", "127.0.0.1:8080"), "HTTP listen address")
	dataDirs := fs.String("data-dirs", config.EnvString("DATA_DIRS", "data/games,data/history"), "Comma-separated directories holding turn batches and history parquet")
	refresh := fs.Duration("refresh", config.EnvDuration("REFRESH", 30*time.Second), "How often to pick up new parquet files")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.Setup(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roots := parseDataRoots(*dataDirs)
	archive := viewer.NewArchive(roots, *refresh)
	defer archive.Close()

	hub := viewer.NewHub()
	go hub.Run(ctx)

	srv := &http.Server{Addr: *listen, Handler: viewer.NewServer(hub, archive).Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("viewer listening", "addr", *listen, "roots", roots)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
