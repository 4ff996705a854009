// Command forecast runs a one-shot batch forecast over all active orders in
// the seed store. This is the dry run consumed before a recurring billing
// cycle; nothing is billed.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rebillhq/rebill/internal/cache"
	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/logger"
	"github.com/rebillhq/rebill/internal/repository"
	"github.com/rebillhq/rebill/internal/repository/memory"
	"github.com/rebillhq/rebill/internal/sentry"
	"github.com/rebillhq/rebill/internal/service"
)

func main() {
	var (
		seedFile    = flag.String("seed", "", "seed file path, overrides config")
		concurrency = flag.Int("concurrency", 4, "max concurrent order forecasts")
	)
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		logger.GetLogger().Fatalw("failed to load configuration", "error", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		logger.GetLogger().Fatalw("failed to initialize logger", "error", err)
	}

	if *seedFile != "" {
		cfg.Store.SeedFile = *seedFile
	}

	store := memory.NewStore()
	if cfg.Store.SeedFile != "" {
		if err := store.LoadSeedFile(cfg.Store.SeedFile); err != nil {
			log.Fatalw("failed to load seed file", "path", cfg.Store.SeedFile, "error", err)
		}
	}

	sentrySvc := sentry.NewService(cfg, log)
	if err := sentrySvc.Initialize(); err != nil {
		log.Warnw("continuing without sentry", "error", err)
	}
	defer sentrySvc.Flush()

	c := cache.NewInMemoryCache(cfg, log)

	params := service.ServiceParams{
		Logger: log,
		Config: cfg,
		Sentry: sentrySvc,

		OrderRepo:          store,
		ProductRepo:        repository.NewCachedProductRepository(store, c, log),
		ShippingRepo:       store,
		VolumeDiscountRepo: store,
		TaxProfileRepo:     store,
	}

	runner := service.NewForecastRunnerService(params)
	summary, err := runner.Run(context.Background(), *concurrency)
	if err != nil {
		log.Errorw("forecast run failed", "error", err)
		os.Exit(1)
	}

	if summary.OrdersFailed > 0 {
		os.Exit(1)
	}
}
