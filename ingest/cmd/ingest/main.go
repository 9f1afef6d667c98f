package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/intakestats"
	"github.com/crnapay/crnapay-stack/common/logging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
	"github.com/crnapay/crnapay-stack/ingest/internal/config"
	"github.com/crnapay/crnapay-stack/ingest/internal/handlers"
	"github.com/crnapay/crnapay-stack/ingest/internal/ratelimit"
	"github.com/crnapay/crnapay-stack/ingest/internal/server"
	"github.com/crnapay/crnapay-stack/ingest/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger("ingest")
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest service failed", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting ingest service",
		"port", cfg.Server.Port,
		"nats_url", cfg.NATS.URL,
		"redis_enabled", cfg.Redis.Enabled)

	js, err := natsclient.NewJetStreamClient(cfg.NATS.ClientConfig("crnapay-ingest"), logger.Logger)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer js.Close()

	if _, err := js.CreateOrUpdateStream(ctx, natsclient.SubmissionsStream); err != nil {
		return err
	}

	var (
		redisClient *redis.Client
		limiter     ratelimit.RateLimiter
		collector   *intakestats.Collector
		opts        = []service.Option{service.WithPreValidation(cfg.Ingestion.PreValidate)}
	)
	if cfg.Redis.Enabled {
		redisClient, err = cfg.Redis.NewClient(ctx)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		opts = append(opts, service.WithGuard(budgetguard.New(redisClient, cfg.Guard.KeyPrefix)))

		if cfg.Ingestion.RateLimitEnabled {
			limiter = ratelimit.NewRedisRateLimiter(redisClient, cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
			logger.Info("Rate limiting enabled",
				"requests", cfg.Ingestion.RateLimitRequests,
				"window", cfg.Ingestion.RateLimitWindow.String())
		}

		hostname, _ := os.Hostname()
		instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
		collector = intakestats.NewCollector(intakestats.NewClient(redisClient, instanceID), cfg.Ingestion.StatsFlushInterval, logger.Logger)
		defer collector.Stop()
	} else {
		logger.Warn("Redis disabled: no rate limiting, budget guard or intake stats")
	}

	svc := service.NewIntakeService(js, cfg.Ingestion.DefaultDataSource, logger, opts...)
	handler := handlers.NewSubmissionHandler(svc, limiter, collector, js.IsConnected, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewRouter(handler, cfg.CORS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Ingest service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
