package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/api"
	"github.com/acme/engagement-compliance/internal/api/handlers"
	"github.com/acme/engagement-compliance/internal/app"
	"github.com/acme/engagement-compliance/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	cfg := container.Config
	logger := container.Logger

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name+"-api", cfg.App.Version)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure decision schema", zap.Error(err))
	}

	services := container.Services()
	checks := make(map[string]handlers.HealthCheck)
	for name, check := range container.HealthChecks() {
		checks[name] = check
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Rules:        services.Rules,
		Gate:         services.Gate,
		Slots:        services.Slots,
		AfterHours:   services.Compliance.AfterHours(),
		HealthChecks: checks,
		MaxSlotRange: time.Duration(cfg.Slots.MaxRangeDays) * 24 * time.Hour,
		Logger:       logger.Named("http"),
	})

	server := api.NewServer(cfg.HTTP, handlerSet)
	logger.Info("starting api server", zap.Int("port", cfg.HTTP.Port), zap.String("env", cfg.App.Env))
	if err := server.Start(ctx); err != nil {
		logger.Fatal("server terminated", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
