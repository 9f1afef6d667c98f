package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
	"github.com/crnapay/crnapay-stack/core/internal/config"
	"github.com/crnapay/crnapay-stack/core/internal/handlers"
	"github.com/crnapay/crnapay-stack/core/internal/pipeline"
	"github.com/crnapay/crnapay-stack/core/internal/server"
	"github.com/crnapay/crnapay-stack/core/internal/service"
	"github.com/crnapay/crnapay-stack/core/internal/storage"
	"github.com/crnapay/crnapay-stack/core/pkg/dlq"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "override listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger("core")
	logging.SetDefault(logger)

	if err := run(cfg, *addr, logger); err != nil {
		logger.Error("core service failed", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, addrOverride string, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = cfg.Redis.NewClient(ctx)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("connected to redis")
	}

	geocoder, err := newGeocoder(cfg, redisClient, logger)
	if err != nil {
		return err
	}

	writer, closeWriter, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWriter()

	js, err := natsclient.NewJetStreamClient(cfg.NATS.ClientConfig("crnapay-core"), logger.Logger)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer js.Close()

	for _, sc := range []natsclient.StreamConfig{natsclient.SubmissionsStream, natsclient.SubmissionsDLQStream} {
		if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
			return err
		}
	}

	pipe := pipeline.New(geocoder, writer, cfg.Storage.Table, logger)

	opts := []service.Option{
		service.WithDeadLetter(dlq.NewQueue(js, logger.Logger)),
		service.WithMaxDeliver(cfg.Consumer.MaxDeliver),
	}
	var guard *budgetguard.Guard
	if redisClient != nil {
		guard = budgetguard.New(redisClient, cfg.Guard.KeyPrefix)
		opts = append(opts, service.WithGuard(guard))
	}
	processor := service.NewProcessor(pipe, logger, opts...)

	if cfg.Consumer.Enabled {
		start := func(ctx context.Context) (func(), error) {
			return js.ConsumeMessages(ctx, natsclient.SubmissionsStream.Name, cfg.Consumer.JetStream(), processor.HandleMessage)
		}
		var checker service.PauseChecker
		if guard != nil {
			checker = guard
		}
		supervisor := service.NewSupervisor(start, checker, cfg.Guard.PollInterval, logger)
		go supervisor.Run(ctx)
	} else {
		logger.Info("submissions consumer disabled")
	}

	listenAddr := cfg.Server.Addr()
	if addrOverride != "" {
		listenAddr = addrOverride
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(handlers.NewProcessorHandler(processor, logger)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("core service listening",
			"addr", listenAddr,
			"backend", cfg.Storage.Backend,
			logging.Table(cfg.Storage.Table))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logging.Error(err))
	}
	if err := js.Drain(); err != nil {
		logger.Warn("nats drain failed", logging.Error(err))
	}
	return nil
}

func newGeocoder(cfg *config.Config, redisClient *redis.Client, logger *logging.Logger) (geocode.Geocoder, error) {
	loadFile := func() (*geocode.Table, error) {
		table, err := geocode.LoadTableFile(cfg.Geocoder.File)
		if err != nil {
			return nil, fmt.Errorf("load geocode table: %w", err)
		}
		logger.Info("loaded geocode table", "path", cfg.Geocoder.File, "postal_codes", table.Len())
		return table, nil
	}

	switch cfg.Geocoder.Mode {
	case config.GeocoderFile:
		return loadFile()
	case config.GeocoderRedis:
		return geocode.NewRedisIndex(redisClient, cfg.Geocoder.KeyPrefix), nil
	case config.GeocoderChain:
		table, err := loadFile()
		if err != nil {
			return nil, err
		}
		return geocode.Chain{geocode.NewRedisIndex(redisClient, cfg.Geocoder.KeyPrefix), table}, nil
	default:
		logger.Warn("geocoding disabled, location fields will not be derived")
		return nil, nil
	}
}

func newWriter(ctx context.Context, cfg *config.Config, logger *logging.Logger) (pipeline.RowWriter, func(), error) {
	switch cfg.Storage.Backend {
	case storage.BackendPostgres:
		dsn := cfg.Postgres.DSN()
		if cfg.Storage.Migrate {
			version, err := storage.Migrate(dsn)
			if err != nil {
				return nil, nil, err
			}
			logger.Info("postgres schema migrated", "version", version)
		}
		w, err := storage.NewPostgresWriter(ctx, dsn, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil

	case storage.BackendOpenSearch:
		w, err := storage.NewOpenSearchWriter(storage.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
		})
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil

	default:
		var opts []option.ClientOption
		if cfg.BigQuery.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.BigQuery.CredentialsFile))
		}
		w, err := storage.NewBigQueryWriter(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, opts...)
		if err != nil {
			return nil, nil, err
		}
		return w, closeLogged(w, logger), nil
	}
}

func closeLogged(c io.Closer, logger *logging.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", logging.Error(err))
		}
	}
}
