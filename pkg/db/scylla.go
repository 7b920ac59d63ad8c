package db

import (
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

type Session struct {
	*gocql.Session
}

type Options struct {
	Hosts    []string
	Keyspace string
	Timeout  time.Duration

	// DisableHostLookup keeps the driver on Hosts only, for nodes behind a
	// port mapping that advertise unreachable addresses.
	DisableHostLookup bool
}

func NewSession(opts Options, logger *slog.Logger) (*Session, error) {
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = opts.Keyspace
	cluster.Consistency = gocql.Quorum
	// Conditional writes on a conversation partition go through Paxos.
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.DisableInitialHostLookup = opts.DisableHostLookup
	cluster.Timeout = opts.Timeout
	cluster.ConnectTimeout = opts.Timeout
	if cluster.Timeout == 0 {
		cluster.Timeout = 5 * time.Second
		cluster.ConnectTimeout = 5 * time.Second
	}

	// Retry policy
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	logger.Info("connected to scylla", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	return &Session{Session: session}, nil
}
