package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"enrichd/internal/enrichment/dispatch"
	"enrichd/internal/enrichment/handler"
	"enrichd/internal/enrichment/metrics"
	"enrichd/internal/enrichment/ports"
	"enrichd/internal/enrichment/providers"
	"enrichd/internal/enrichment/service"
	cachestore "enrichd/internal/enrichment/store/cache"
	runconfigstore "enrichd/internal/enrichment/store/runconfig"
	taskstore "enrichd/internal/enrichment/store/task"
	"enrichd/internal/enrichment/sweeper"
	"enrichd/internal/enrichment/tracker"
	"enrichd/internal/platform/config"
	"enrichd/internal/platform/httpserver"
	"enrichd/internal/platform/logger"
	"enrichd/internal/platform/postgres"
	"enrichd/internal/platform/redis"
	"enrichd/pkg/platform/middleware/requestid"
	"enrichd/pkg/platform/middleware/requesttime"
)

// main wires configuration, storage tiers, the pipeline service, and the
// HTTP surface. Missing backends degrade to in-memory stores so the
// service runs standalone in development.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Cache tier preference: redis, then postgres, then memory.
	var cacheStore ports.CacheStore
	switch {
	case redisClient != nil:
		cacheStore = cachestore.NewRedis(redisClient.Client)
		log.Info("cache store: redis")
	case db != nil:
		cacheStore = cachestore.NewPostgres(db)
		log.Info("cache store: postgres")
	default:
		cacheStore = cachestore.NewInMemory()
		log.Warn("cache store: in-memory, entries lost on restart")
	}

	var tasks ports.TaskStore
	var configs ports.ConfigStore
	if db != nil {
		tasks = taskstore.NewPostgres(db)
		configs = runconfigstore.NewPostgres(db)
	} else {
		tasks = taskstore.NewInMemory()
		configs = runconfigstore.NewInMemory()
	}

	trk, err := tracker.New(tasks, tracker.WithLogger(log))
	if err != nil {
		log.Error("tracker init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	var dispatcher service.Dispatcher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := dispatch.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic,
			dispatch.WithLogger(log),
			dispatch.WithMetrics(m),
		)
		if err != nil {
			log.Error("kafka dispatcher init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := kafka.Close(closeCtx); err != nil {
				log.Error("kafka dispatcher close failed", "error", err)
			}
		}()
		dispatcher = kafka
		log.Info("dispatcher: kafka", "topic", cfg.KafkaTopic)
	} else {
		dispatcher = dispatch.NewLog(log)
		log.Warn("dispatcher: log only, no kafka brokers configured")
	}

	svc, err := service.New(cacheStore, trk, providers.NewSimulatedSet(),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithDispatcher(dispatcher),
		service.WithConfigStore(configs),
	)
	if err != nil {
		log.Error("service init failed", "error", err)
		os.Exit(1)
	}

	h := handler.New(svc, trk, cacheStore, log)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)
	h.Register(router)
	h.RegisterAdmin(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	sw, err := sweeper.New(cacheStore, sweeper.WithLogger(log))
	if err != nil {
		log.Error("sweeper init failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := sw.Run(ctx, cfg.CacheSweepInt); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cache sweeper stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting enrichd", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("enrichd stopped")
}
