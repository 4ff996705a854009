package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	v1 "github.com/rebillhq/rebill/internal/api/v1"
	"github.com/rebillhq/rebill/internal/cache"
	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/logger"
	"github.com/rebillhq/rebill/internal/repository"
	"github.com/rebillhq/rebill/internal/repository/memory"
	"github.com/rebillhq/rebill/internal/rest/middleware"
	"github.com/rebillhq/rebill/internal/sentry"
	"github.com/rebillhq/rebill/internal/service"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			sentry.NewService,
			cache.NewInMemoryCache,
			newStore,
			newServiceParams,
			service.NewPriceCalculatorService,
			service.NewBreakdownService,
			v1.NewPricingHandler,
			newRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func newStore(cfg *config.Configuration, log *logger.Logger) (*memory.Store, error) {
	store := memory.NewStore()
	if cfg.Store.SeedFile == "" {
		return store, nil
	}
	if _, err := os.Stat(cfg.Store.SeedFile); os.IsNotExist(err) {
		log.Infow("seed file not found, starting with empty store", "path", cfg.Store.SeedFile)
		return store, nil
	}
	if err := store.LoadSeedFile(cfg.Store.SeedFile); err != nil {
		return nil, err
	}
	log.Infow("loaded seed file", "path", cfg.Store.SeedFile)
	return store, nil
}

func newServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	sentrySvc *sentry.Service,
	c cache.Cache,
	store *memory.Store,
) service.ServiceParams {
	return service.ServiceParams{
		Logger: log,
		Config: cfg,
		Sentry: sentrySvc,

		OrderRepo:          store,
		ProductRepo:        repository.NewCachedProductRepository(store, c, log),
		ShippingRepo:       store,
		VolumeDiscountRepo: store,
		TaxProfileRepo:     store,

		// External collaborators; the engine treats them as absent when nil
		TaxProvider:   nil,
		CouponService: nil,
	}
}

func newRouter(cfg *config.Configuration, log *logger.Logger, handler *v1.PricingHandler) *gin.Engine {
	if cfg.Deployment.Mode == config.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SentryMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pricing := router.Group("/v1/pricing")
	{
		pricing.POST("/forecast", handler.Forecast)
		pricing.POST("/breakdown", handler.Breakdown)
	}

	return router
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	log *logger.Logger,
	sentrySvc *sentry.Service,
	router *gin.Engine,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sentrySvc.Initialize(); err != nil {
				log.Warnw("continuing without sentry", "error", err)
			}
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("shutting down server")
			sentrySvc.Flush()
			return srv.Shutdown(ctx)
		},
	})
}
