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

	"github.com/crnapay/crnapay-stack/budget/internal/config"
	"github.com/crnapay/crnapay-stack/budget/internal/monitor"
	"github.com/crnapay/crnapay-stack/budget/internal/scheduler"
	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger("budget")
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("budget service failed", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cfg.Redis.NewClient(ctx)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	js, err := natsclient.NewJetStreamClient(cfg.NATS.ClientConfig("crnapay-budget"), logger.Logger)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer js.Close()

	mon := monitor.New(budgetguard.New(redisClient, cfg.Guard.KeyPrefix), js, logger)

	if cfg.Consumer.Enabled {
		if _, err := js.CreateOrUpdateStream(ctx, natsclient.BudgetAlertsStream); err != nil {
			return err
		}
		stopConsumer, err := js.ConsumeMessages(ctx, natsclient.BudgetAlertsStream.Name, cfg.Consumer.JetStream(), mon.HandleMessage)
		if err != nil {
			return err
		}
		defer stopConsumer()
		logger.Info("consuming budget notifications", "consumer", cfg.Consumer.Name)
	}

	if cfg.Reset.Enabled {
		loc, err := cfg.Reset.Location()
		if err != nil {
			return err
		}
		sched := scheduler.New(mon, cfg.Reset.Schedule, loc, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mon.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("budget service listening", "addr", srv.Addr)
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
	return srv.Shutdown(shutdownCtx)
}
