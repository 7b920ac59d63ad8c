package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/auth"
	"github.com/mahaj/supportdesk/pkg/bootstrap"
	"github.com/mahaj/supportdesk/pkg/config"
	"github.com/mahaj/supportdesk/pkg/events"
	"github.com/mahaj/supportdesk/pkg/logging"
	"github.com/mahaj/supportdesk/pkg/support"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	noEvents := pflag.Bool("no-events", false, "do not publish conversation events to Kafka")
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

	var opts []support.Option
	if !*noEvents {
		publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, support.WithNotifier(publisher))
	}
	svc := backends.Service(logger, opts...)
	defer svc.Wait()

	api := &API{
		svc:      svc,
		issuer:   auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		counters: backends.Counters,
		maxSize:  backends.Blobs.MaxSize(),
		logger:   logger,
	}
	srv := &http.Server{
		Addr:              cfg.Server.APIAddr,
		Handler:           CORSMiddleware(api.Router()),
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

	logger.Info("api service starting", "addr", cfg.Server.APIAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("api service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("api service stopped")
}
