// Command server runs the fractional marketplace HTTP API.
//
// main wires dependencies from environment configuration and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fracmarket/internal/events"
	"fracmarket/internal/jwtauth"
	"fracmarket/internal/ledger"
	"fracmarket/internal/market/cache"
	"fracmarket/internal/market/handler"
	"fracmarket/internal/market/metrics"
	"fracmarket/internal/market/service"
	listingstore "fracmarket/internal/market/store/listing"
	registrystore "fracmarket/internal/market/store/registry"
	"fracmarket/internal/platform/config"
	"fracmarket/internal/platform/httpserver"
	"fracmarket/internal/platform/logger"
	"fracmarket/internal/platform/middleware"
	"fracmarket/internal/platform/ratelimit"
	platformredis "fracmarket/internal/platform/redis"
	id "fracmarket/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		registries service.RegistryStore
		listings   service.ListingStore
		txRunner   service.TxRunner
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		for _, schema := range []string{registrystore.Schema, listingstore.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		registries = registrystore.NewPostgres(db)
		listings = listingstore.NewPostgres(db)
		txRunner = service.NewSQLTx(db)
		log.Info("using postgres stores")
	} else {
		registries = registrystore.NewInMemory()
		listings = listingstore.NewInMemory()
		txRunner = service.NewShardedTx()
		log.Info("using in-memory stores")
	}

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(metrics.New())}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithCache(cache.New(redisClient.Client, cfg.Redis.SnapshotTTL, log)))
		log.Info("caching listing snapshots", "ttl", cfg.Redis.SnapshotTTL)
	}

	svc := service.New(registries, listings, ledger.NewInMemory(), txRunner, service.Config{
		Marketplace: id.AccountID(cfg.Marketplace),
		FeeBps:      cfg.FeeBps,
	}, opts...)

	jwtService := jwtauth.NewJWTService(cfg.JWTSigningKey, "fracmarket", "fracmarket-api")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Use(chimiddleware.AllowContentType("application/json"))
		r.Use(middleware.RequireAuth(jwtauth.NewAdapter(jwtService), log))
		if cfg.RateLimit > 0 {
			limiter := ratelimit.NewSlidingWindow(cfg.RateLimit, cfg.RateLimitWindow)
			r.Use(ratelimit.Middleware(limiter, cfg.RateLimit, log))
		}
		handler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting fracmarket server", "addr", cfg.Addr, "marketplace", cfg.Marketplace)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
