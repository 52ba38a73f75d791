package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/finwise/statement-ingest/internal/api"
	"github.com/finwise/statement-ingest/internal/config"
	"github.com/finwise/statement-ingest/internal/observability"
	"github.com/finwise/statement-ingest/internal/reconciler"
	"github.com/finwise/statement-ingest/internal/store"
	"github.com/finwise/statement-ingest/internal/store/dynamo"
	"github.com/finwise/statement-ingest/internal/store/memory"
)

func main() {
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	accounts, categories, txns, err := buildStores(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	rec := reconciler.New(accounts, categories, txns, logger)
	handler := api.NewHandler(accounts, rec, logger, cfg.UseOCR)

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(observability.RequestLogger(logger))
	handler.RegisterRoutes(app)

	go func() {
		logger.Info("listening",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.StoreBackend))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// buildStores selects the persistence backend. The in-memory store is
// the default for local runs and tests; DynamoDB is the deployed path.
func buildStores(cfg *config.Config, logger *zap.Logger) (store.AccountDirectory, store.CategoryDirectory, store.TransactionStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		s := memory.New()
		return s, s, s, nil
	case "dynamo":
		client, err := dynamo.NewClient(context.Background(), cfg.AWSRegion)
		if err != nil {
			return nil, nil, nil, err
		}
		s := dynamo.New(client, cfg.DynamoTable, logger)
		return s, s, s, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
