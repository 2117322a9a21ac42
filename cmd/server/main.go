package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"timesheets/internal/app/server"
	"timesheets/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, config.Load())
	stop()
	if err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// run owns the app for its whole life so Close runs on every exit path.
func run(ctx context.Context, cfg config.Config) error {
	app, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
