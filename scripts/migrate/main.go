package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger, _ := logging.Setup(cfg.Logging.Level, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := db.Options{Hosts: cfg.Scylla.Hosts, Keyspace: cfg.Scylla.Keyspace, Timeout: 10 * time.Second}
	if err := db.Setup(ctx, opts, cfg.Scylla.ReplicationFactor, logger); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Keyspace %s is ready", cfg.Scylla.Keyspace)
}
