package main

// Seed loads a YAML catalog (sale settings, merch, events and parts) into
// the database.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/models"
)

type seedConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
}

func main() {
	path := flag.String("file", "seed.yaml", "path to the YAML catalog")
	dryRun := flag.Bool("dry-run", false, "validate the catalog without writing it")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))

	if err := run(logger, *path, *dryRun); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, path string, dryRun bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	seed, err := catalog.NewParser().Parse(content)
	if err != nil {
		return err
	}
	validated, err := catalog.NewValidator().Validate(seed)
	if err != nil {
		return err
	}
	logger.Info("catalog validated",
		"products", len(validated.Products),
		"events", len(validated.Events),
		"parts", len(validated.Parts),
	)
	if dryRun {
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return write(ctx, logger, pool, validated)
}

func write(ctx context.Context, logger *slog.Logger, pool *pgxpool.Pool, validated *catalog.Catalog) error {
	if err := db.NewSaleSettingsStore(pool).Update(ctx, validated.Sales); err != nil {
		return fmt.Errorf("failed to write sale settings: %w", err)
	}

	products := db.NewProductStore(pool)
	for _, product := range validated.Products {
		if err := products.Create(ctx, product); err != nil {
			return fmt.Errorf("failed to insert product %q: %w", product.Name, err)
		}
	}

	events := db.NewDocumentStore[models.Event, *models.Event](pool, models.KindEvent)
	for _, event := range validated.Events {
		if err := events.Create(ctx, event); err != nil {
			return fmt.Errorf("failed to insert event %q: %w", event.Name, err)
		}
	}

	parts := db.NewDocumentStore[models.Part, *models.Part](pool, models.KindPart)
	for _, part := range validated.Parts {
		if err := parts.Create(ctx, part); err != nil {
			return fmt.Errorf("failed to insert part %q: %w", part.Name, err)
		}
	}

	logger.Info("catalog seeded")
	return nil
}
