// Package bootstrap opens the backends selected in the configuration. Every
// service binary goes through it so they agree on storage and presence.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/supportdesk/pkg/blob"
	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/presence"
	"github.com/mahaj/supportdesk/pkg/snowflake"
	"github.com/mahaj/supportdesk/pkg/store"
	"github.com/mahaj/supportdesk/pkg/support"
)

type Backends struct {
	Store    store.Store
	Counters store.Counters
	Presence presence.Cache
	Blobs    *blob.FSStore
	IDs      *snowflake.Node

	closers []func() error
}

// Open connects to the configured backends. The memory presence cache gets
// a sweeper tied to ctx.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}

	ids, err := snowflake.NewNode(cfg.Server.NodeID)
	if err != nil {
		return nil, err
	}
	b.IDs = ids

	switch cfg.Backends.Store {
	case "scylla":
		session, err := db.NewSession(db.Options{Hosts: cfg.Scylla.Hosts, Keyspace: cfg.Scylla.Keyspace}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect scylla: %w", err)
		}
		b.Store = store.NewScyllaStore(session)
		b.Counters = store.NewScyllaCounters(session)
		b.closers = append(b.closers, b.Store.Close)
	default:
		b.Store = store.NewMemoryStore()
		b.Counters = store.NewMemoryCounters()
	}

	ttl := presence.TTL{Online: cfg.Sync.OnlineTTL, Typing: cfg.Sync.TypingTTL}
	switch cfg.Backends.Presence {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Presence = presence.NewRedisCache(rdb, ttl)
		b.closers = append(b.closers, rdb.Close)
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	default:
		mc := presence.NewMemoryCache(ttl)
		go mc.Run(ctx, cfg.Sync.OnlineTTL)
		b.Presence = mc
	}

	maxSize, err := cfg.AttachmentMaxSize()
	if err != nil {
		b.Close()
		return nil, err
	}
	blobs, err := blob.NewFSStore(cfg.Blob.Dir, maxSize)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Blobs = blobs

	logger.Info("backends ready", "store", cfg.Backends.Store, "presence", cfg.Backends.Presence, "blob_dir", cfg.Blob.Dir)
	return b, nil
}

// Service builds the sync engine over the backends.
func (b *Backends) Service(logger *slog.Logger, opts ...support.Option) *support.Service {
	opts = append([]support.Option{support.WithBlobs(b.Blobs)}, opts...)
	return support.NewService(b.Store, b.Presence, b.IDs, logger, opts...)
}

func (b *Backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// ShutdownTimeout bounds graceful HTTP shutdown in every binary.
const ShutdownTimeout = 10 * time.Second
