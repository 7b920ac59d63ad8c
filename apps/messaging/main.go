package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/bootstrap"
	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/events"
	"github.com/mahaj/supportdesk/pkg/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	migrate := pflag.Bool("migrate", false, "create the keyspace and tables before consuming")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := logging.Setup("info", "")
		fallback.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger, closeLog := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate && cfg.Backends.Store == "scylla" {
		opts := db.Options{Hosts: cfg.Scylla.Hosts, Keyspace: cfg.Scylla.Keyspace, Timeout: 10 * time.Second}
		if err := db.Setup(ctx, opts, cfg.Scylla.ReplicationFactor, logger); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	backends, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close()

	worker := NewWorker(backends.Counters, backends.Presence, logAlerter{logger: logger}, logger)

	consumer := events.NewConsumer(events.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, logger)
	defer consumer.Close()

	logger.Info("messaging worker starting", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	consumer.Consume(ctx, worker.Handle)
	logger.Info("messaging worker stopped")
}
