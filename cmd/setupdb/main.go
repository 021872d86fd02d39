package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/catalog"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/config"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/storage"
)

// setupdb creates the schema and seeds the catalog from the configured
// catalog file. Safe to re-run; seeding upserts and the price history is
// never touched.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "setupdb failed: %v\n", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.InfoObj("catalog loaded", "catalog_meta", map[string]any{
		"peptides":  len(cat.Peptides),
		"resellers": len(cat.Resellers),
	})

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, storage.Options{})
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := store.SeedPeptides(ctx, cat.Peptides); err != nil {
		return err
	}
	if err := store.SeedResellers(ctx, cat.Resellers); err != nil {
		return err
	}

	hasPrices, err := store.HasPrices(ctx)
	if err != nil {
		return err
	}

	// Starter prices only land in an empty history; a live table is never
	// re-seeded.
	seeded := 0
	if !hasPrices {
		for _, sp := range cat.Prices {
			obs := domain.NewPriceObservation{
				PeptideID:   sp.PeptideID,
				ResellerID:  sp.ResellerID,
				ProductName: sp.ProductName,
				PriceCents:  sp.PriceCents,
				ProductURL:  sp.ProductURL,
			}
			if err := store.AppendPrice(ctx, obs); err != nil {
				return fmt.Errorf("seed price %s/%s: %w", sp.PeptideID, sp.ResellerID, err)
			}
			seeded++
		}
	}

	logger.InfoObj("database ready", "setup_meta", map[string]any{
		"peptides":      len(cat.Peptides),
		"resellers":     len(cat.Resellers),
		"had_history":   hasPrices,
		"prices_seeded": seeded,
	})
	fmt.Printf("database ready: %d peptides, %d resellers seeded\n", len(cat.Peptides), len(cat.Resellers))
	return nil
}
