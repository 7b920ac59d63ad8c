package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/auth"
	"github.com/mahaj/supportdesk/pkg/bootstrap"
	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/events"
	"github.com/mahaj/supportdesk/pkg/logging"
	"github.com/mahaj/supportdesk/pkg/model"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	noEvents := pflag.Bool("no-events", false, "poll on the interval only, without Kafka wake-ups")
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

	backends, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close()

	svc := backends.Service(logger)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	hub := NewHub(logger)
	go hub.Run(ctx)

	if !*noEvents {
		// Unique group so every gateway sees every event.
		consumer := events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: "gateway-" + uuid.NewString(),
			Latest:  true,
		}, logger)
		defer consumer.Close()
		go consumer.Consume(ctx, func(ctx context.Context, ev model.Event) error {
			hub.Wake(ev.ConversationID)
			return nil
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, svc, issuer, cfg.Sync.PollInterval, w, r)
	})
	srv := &http.Server{
		Addr:              cfg.Server.GatewayAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("gateway service starting", "addr", cfg.Server.GatewayAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("gateway service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway service stopped")
}
