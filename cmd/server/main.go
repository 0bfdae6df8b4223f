package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"walezi/internal/compliance"
	"walezi/internal/guardianship/cache"
	"walezi/internal/guardianship/handler"
	"walezi/internal/guardianship/service"
	"walezi/internal/guardianship/store"
	"walezi/internal/platform/config"
	"walezi/internal/platform/httpserver"
	"walezi/internal/platform/logger"
	"walezi/internal/platform/metrics"
	platformredis "walezi/internal/platform/redis"
	"walezi/pkg/platform/outbox"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages; unset backends fall back to in-memory
// implementations so the server runs standalone in development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		guardianships store.Store
		outboxStore   outbox.Store
		txRunner      service.TxRunner = service.NoopRunner{}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, store.Schema); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, outbox.Schema); err != nil {
			return err
		}
		guardianships = store.NewPostgres(db)
		outboxStore = outbox.NewPostgresStore(db)
		txRunner = service.NewSQLRunner(db)
		log.Info("postgres store wired")
	} else {
		guardianships = store.NewInMemory()
		outboxStore = outbox.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory store")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	statusCache := cache.New(redisClient, cfg.StatusCacheTTL)

	engine := compliance.NewEngine()
	svcMetrics := metrics.New()
	svc := service.New(guardianships, outboxStore, txRunner, engine, compliance.NewPolicy(engine), log,
		service.WithCache(statusCache),
		service.WithMetrics(svcMetrics),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/v1", func(r chi.Router) {
		handler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting walezi server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			return err
		}
		relay := outbox.NewRelay(outboxStore, publisher, log,
			outbox.WithInterval(cfg.OutboxInterval),
			outbox.WithMetrics(outbox.NewMetrics()),
		)
		group.Go(func() error {
			defer publisher.Close()
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("outbox relay wired", "topic", cfg.EventsTopic)
	} else {
		log.Warn("no kafka brokers configured, events stay in the outbox")
	}

	return group.Wait()
}
