package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ariefcatur/go-eshop-orders/internal/config"
	"github.com/ariefcatur/go-eshop-orders/internal/httpx"
	"github.com/ariefcatur/go-eshop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-eshop-orders/internal/kafka"
	"github.com/ariefcatur/go-eshop-orders/internal/orders"
	"github.com/ariefcatur/go-eshop-orders/internal/postgres"
	"github.com/ariefcatur/go-eshop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:           "api",
		Usage:          "e-shop orders and products API",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrateDB,
			},
			{
				Name:   "seed",
				Usage:  "insert the demo product catalog",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("api failed")
	}
}

func load() (config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, cfg.NewLogger(), nil
}

func migrateDB(_ *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func seed(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	db, err := postgres.Connect(c.Context, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := &inventory.Catalog{DB: db}
	products, err := catalog.Seed(c.Context, inventory.DemoProducts())
	if err != nil {
		return err
	}
	for _, p := range products {
		logger.WithFields(log.Fields{"id": p.ID, "name": p.Name, "stock": p.Stock}).Info("product seeded")
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	router := httpx.NewRouter(logger, cfg.RequestTimeout, db)

	oh := &httpx.OrdersHandler{
		Orders:  &orders.Repo{DB: db},
		Service: cfg.ServiceName,
		Log:     logger,
	}

	// Redis
	if cfg.IdempotencyEnabled() {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		oh.Idem = redisx.NewIdempotency(rdb)
	} else {
		logger.Info("REDIS_ADDR not set, Idempotency-Key support disabled")
	}

	// Kafka producers
	if cfg.EventsEnabled() {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
		cancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger)
		created.Start()
		cancelled.Start()
		defer func() {
			created.Close()
			cancelled.Close()
			created.WaitClosed()
			cancelled.WaitClosed()
		}()
		oh.Created, oh.Cancelled = created, cancelled
	} else {
		logger.Info("KAFKA_BROKERS not set, order events disabled")
	}

	oh.Register(router)
	(&httpx.ProductsHandler{Catalog: &inventory.Catalog{DB: db}, Log: logger}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	return nil
}
