package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/app"
	"github.com/acme/engagement-compliance/internal/telemetry"
	"github.com/acme/engagement-compliance/internal/worker/reschedule"
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

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name+"-rescheduler", cfg.App.Version)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		logger.Fatal("failed to ensure kafka topics", zap.Error(err))
	}
	if err := container.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure decision schema", zap.Error(err))
	}

	groupID := cfg.Kafka.ConsumerGroupID
	if groupID == "" {
		groupID = cfg.App.Name + "-rescheduler"
	}

	pubs := container.Publishers()
	var deadLetters reschedule.Requeuer
	if pubs.DeadLetters != nil {
		deadLetters = pubs.DeadLetters
	}

	worker := reschedule.New(
		container.Kafka.NewReader(cfg.Kafka.RescheduleTopic, groupID),
		container.Services().Gate,
		pubs.Releases,
		pubs.Reschedules,
		deadLetters,
		reschedule.Options{
			MaxWait:      cfg.Rescheduler.MaxWait,
			MaxAttempts:  cfg.Rescheduler.MaxAttempts,
			RetryInitial: cfg.Rescheduler.RetryInitial,
			RetryMax:     cfg.Rescheduler.RetryMax,
		},
		logger.Named("rescheduler"),
	)

	logger.Info("starting rescheduler", zap.String("topic", cfg.Kafka.RescheduleTopic), zap.String("group", groupID))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker terminated", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
