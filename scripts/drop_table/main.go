package main

import (
	"log"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	table := pflag.String("table", "", "table to drop; empty drops every table")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger, _ := logging.Setup(cfg.Logging.Level, "")

	session, err := db.NewSession(db.Options{Hosts: cfg.Scylla.Hosts, Keyspace: cfg.Scylla.Keyspace}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	tables := db.Tables
	if *table != "" {
		tables = []string{*table}
	}
	for _, t := range tables {
		log.Printf("Dropping table %s...", t)
		if err := session.Query("DROP TABLE IF EXISTS " + t).Exec(); err != nil {
			log.Fatalf("Failed to drop table: %v", err)
		}
	}
	log.Println("Tables dropped successfully.")
}
