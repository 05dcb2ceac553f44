// Command dehost-server serves the pairing endpoints, the CLI auth page and
// the dashboard deployment records.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dehost-labs/dehost/internal/api"
	"github.com/dehost-labs/dehost/internal/serverdb"
)

func main() {
	var err error
	if len(os.Args) > 1 && isAdminCommand(os.Args[1]) {
		err = runAdmin(os.Args[1:])
	} else {
		err = serve()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg := api.LoadConfig()
	slog.SetDefault(slog.New(newLogHandler(cfg.LogFormat, cfg.LogLevel)))

	store, err := serverdb.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open server db: %w", err)
	}
	defer store.Close()

	srv, err := api.NewServer(cfg, store)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	slog.Info("server started", "addr", srv.Addr(), "base_url", cfg.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLogHandler writes to stderr; format "text" selects the text handler,
// anything else JSON. Unknown levels fall back to info.
func newLogHandler(format, level string) slog.Handler {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.NewJSONHandler(os.Stderr, opts)
}
