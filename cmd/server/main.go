package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountsvc "landledger/internal/accounts/service"
	accountstore "landledger/internal/accounts/store"
	"landledger/internal/platform/config"
	"landledger/internal/platform/httpserver"
	"landledger/internal/platform/logger"
	platformredis "landledger/internal/platform/redis"
	"landledger/internal/registry/chain"
	"landledger/internal/registry/docstore"
	"landledger/internal/registry/handler"
	"landledger/internal/registry/metrics"
	"landledger/internal/registry/service"
	"landledger/internal/registry/store/prepared"
	"landledger/internal/registry/store/property"
	"landledger/migrations"
	"landledger/pkg/platform/audit"
	"landledger/pkg/platform/audit/publisher"
	kafkastore "landledger/pkg/platform/audit/store/kafka"
	memorystore "landledger/pkg/platform/audit/store/memory"
	"landledger/pkg/platform/middleware/auth"
	"landledger/pkg/platform/middleware/request"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		log.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var preparedStore prepared.Store
	if redisClient != nil {
		defer redisClient.Close()
		preparedStore = prepared.NewRedisStore(redisClient.Client)
	} else {
		log.Warn("REDIS_URL not set, prepared registrations will not survive restarts")
		preparedStore = prepared.NewInMemoryStore()
	}

	m := metrics.New(nil)

	gateway, err := chain.NewEthereum(chain.EthereumConfig{
		RPCURL:             cfg.Chain.RPCURL,
		ChainID:            cfg.Chain.ChainID,
		RegistryAddress:    cfg.Chain.RegistryAddress,
		MarketplaceAddress: cfg.Chain.MarketplaceAddress,
		SigningKeyHex:      cfg.Chain.SigningKey,
		ConfirmTimeout:     cfg.Chain.ConfirmTimeout,
		MaxAttempts:        cfg.Chain.MaxAttempts,
		Logger:             log,
	})
	if err != nil {
		log.Error("connect chain", "error", err)
		os.Exit(1)
	}
	gateway.OnRetry(func(op string) {
		m.ChainRetries.WithLabelValues(op).Inc()
	})

	pinner := docstore.NewPinata(cfg.Pinning.Endpoint, cfg.Pinning.APIKey, cfg.Pinning.APISecret)

	var auditStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafkastore.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer ks.Close()
		auditStore = ks
	} else {
		log.Warn("KAFKA_BROKERS not set, audit events stay in memory")
		auditStore = memorystore.NewInMemoryStore()
	}
	auditPub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer auditPub.Close()

	accounts := accountsvc.New(accountstore.NewPostgresStore(db), accountsvc.WithLogger(log))
	registry := service.New(
		property.NewPostgresStore(db),
		preparedStore,
		gateway,
		pinner,
		accounts,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPub),
		service.WithPreparedTTL(cfg.PreparedTTL),
	)

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(request.Recovery(log))
	router.Use(request.Logger(log))

	handler.New(registry, accounts, log).Register(router, auth.NewValidator(cfg.JWTSigningKey))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting landledger server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
