// initdaemon — сервис координации шагов инициализации.
//
// Отвечает на canStart, принимает команды смены статуса шагов,
// продвигает статусы по health-событиям контейнеров (delta-уведомления
// по HTTP и из RabbitMQ) и периодически сверяет статусы с событиями.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/initdaemon/internal/api"
	"github.com/shaiso/initdaemon/internal/config"
	"github.com/shaiso/initdaemon/internal/coordinator"
	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/mq"
	"github.com/shaiso/initdaemon/internal/reconciler"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/store/memory"
	"github.com/shaiso/initdaemon/internal/store/postgres"
	"github.com/shaiso/initdaemon/internal/store/sparql"
	"github.com/shaiso/initdaemon/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting initdaemon")

	if err := run(logger); err != nil {
		logger.Error("initdaemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	healthCfg, err := cfg.HealthProcessor()
	if err != nil {
		return err
	}

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	coordCfg := coordinator.Config{
		Store:           st,
		Health:          healthCfg,
		ReconcileOnGate: cfg.Health.ReconcileOnGate,
		Logger:          logger,
	}

	// RabbitMQ опционален
	var conn *mq.Connection
	if cfg.Queue.URL != "" {
		conn, err = mq.NewConnection(cfg.Queue.URL, "initdaemon", logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		coordCfg.Publisher = mq.NewPublisher(conn, logger)
		logger.Info("connected to rabbitmq")
	}

	coord := coordinator.New(coordCfg)

	handler := api.NewHandler(api.Config{
		Coordinator: coord,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if conn != nil {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue: mq.QueueDeltasInbox,
			Handler: func(ctx context.Context, body []byte) error {
				_, err := coord.IngestDelta(ctx, body)
				return err
			},
			Retryable: func(err error) bool {
				return !errors.Is(err, health.ErrMalformedEvent)
			},
			Prefetch: cfg.Queue.Prefetch,
		})
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("delta consumer: %w", err)
			}
			return nil
		})
	}

	if cfg.Reconciler.Schedule != "" {
		rec, err := reconciler.New(reconciler.Config{
			Target:   coord,
			Schedule: cfg.Reconciler.Schedule,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return rec.Run(gctx)
		})
	}

	return g.Wait()
}

// openStore создаёт хранилище фактов выбранного бэкенда.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, state is lost on restart")
		return memory.New(), func() {}, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		st, err := postgres.New(pool, cfg.Store.Graph, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return st, st.Close, nil

	default:
		st, err := sparql.New(sparql.Config{
			Endpoint: cfg.Store.SPARQLEndpoint,
			Graph:    cfg.Store.Graph,
			Timeout:  cfg.Store.SPARQLTimeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sparql endpoint", "endpoint", cfg.Store.SPARQLEndpoint, "graph", cfg.Store.Graph)
		return st, func() {}, nil
	}
}
