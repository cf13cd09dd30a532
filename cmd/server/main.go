package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	jwttoken "alpine/internal/jwt_token"
	ledgermetrics "alpine/internal/ledger/metrics"
	ledgerservice "alpine/internal/ledger/service"
	"alpine/internal/platform/config"
	"alpine/internal/platform/httpserver"
	"alpine/internal/platform/kafka"
	"alpine/internal/platform/logger"
	"alpine/internal/platform/metrics"
	platformredis "alpine/internal/platform/redis"
	registrymetrics "alpine/internal/registry/metrics"
	registryservice "alpine/internal/registry/service"
	registrystore "alpine/internal/registry/store"
	"alpine/internal/superchat"
	"alpine/internal/transfer"
	"alpine/internal/transfer/mover"
	httptransport "alpine/internal/transport/http"
	"alpine/pkg/address"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	storage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer storage.close()

	reg := metrics.NewRegistry()
	registryMetrics := registrymetrics.New(reg)
	checks := map[string]httptransport.HealthCheck{"storage": storage.health}
	registryStore := storage.registry
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		registryStore = registrystore.NewRedisCache(registryStore, redisClient.Client,
			registrystore.WithCacheTTL(cfg.Redis.CacheTTL),
			registrystore.WithCacheLogger(log),
			registrystore.WithCacheMetrics(registryMetrics),
		)
	}

	validator := address.NewBech32(cfg.Server.AddressPrefix)
	registry := registryservice.New(registryStore,
		registryservice.WithTx(storage.runner),
		registryservice.WithLogger(log),
		registryservice.WithMetrics(registryMetrics),
	)
	ledger := ledgerservice.New(storage.ledger,
		ledgerservice.WithTx(storage.runner),
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New(reg)),
	)

	policyCfg := transfer.Config{
		FeeSplit:         cfg.Donation.FeeSplit,
		CommissionRate:   cfg.Donation.CommissionRate,
		PlatformAddress:  cfg.Donation.PlatformAddress,
		MaxMessageLength: cfg.Donation.MaxMessageLength,
	}
	if err := policyCfg.Validate(); err != nil {
		return fmt.Errorf("donation policy: %w", err)
	}
	if policyCfg.FeeSplit && !validator.Validate(policyCfg.PlatformAddress) {
		return fmt.Errorf("platform address %q does not match prefix %q", policyCfg.PlatformAddress, cfg.Server.AddressPrefix)
	}
	policy := transfer.NewPolicy(registry, validator, policyCfg)

	var funds superchat.Mover = mover.NewLogMover(log)
	if cfg.Kafka.Enabled() {
		kcfg := kafka.Config{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			ClientID:          cfg.Kafka.ClientID,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
			ProduceTimeout:    cfg.Kafka.ProduceTimeout,
		}
		client, err := kafka.NewProducer(ctx, kcfg)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := kafka.EnsureTopic(ctx, client, kcfg); err != nil {
			return err
		}
		funds = mover.NewKafkaMover(client, kcfg.Topic)
	}

	executor := superchat.NewExecutor(registry, ledger, policy, funds, validator,
		superchat.WithTx(storage.runner),
		superchat.WithLogger(log),
	)
	queries := superchat.NewQueries(registry, ledger, validator)

	tokens := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	handler := httptransport.New(executor, queries, tokens, log, metrics.New(reg))
	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = metrics.Handler(reg)
	}
	router := httptransport.NewRouter(handler, log, metricsHandler, checks)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting alpine", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend, "kafka", cfg.Kafka.Enabled())
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}
