package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/app"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/config"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
)

// refresh runs one refresh batch and exits. Intended for cron hosts that
// prefer a process per run over hitting the HTTP trigger.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	if err := cfg.ValidateRefreshCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer srv.Close()

	summary, err := srv.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh run: %w", err)
	}

	fmt.Printf("refresh finished: %d total, %d success, %d errors, %d skipped in %s\n",
		summary.Total, summary.Success, summary.Errors, summary.Skipped, summary.Elapsed.Round(10*time.Millisecond))
	return nil
}
