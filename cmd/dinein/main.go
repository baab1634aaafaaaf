package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/dinein/gateway"
	"github.com/example/dinein/pkg/catalog"
	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/discovery"
	"github.com/example/dinein/pkg/grpc"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/ledger"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/logging"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/registry"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/serial"
	"github.com/example/dinein/pkg/tenant"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dinein",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("broker", cfg.Notify.Broker))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	// Redis, when the broker or the serializer needs it
	var rdb *redis.Client
	if cfg.Notify.Broker == "redis" || cfg.Lifecycle.Serializer == "redis" {
		rdb, err = repository.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		logger.Info("Redis connected successfully")
	}

	// Per-table serializer
	var serializer serial.Serializer
	switch cfg.Lifecycle.Serializer {
	case "redis":
		serializer = serial.NewRedisSerializer(rdb, logger, cfg.Server.Name, cfg.Lifecycle.LockTTL, cfg.Lifecycle.RequestTimeout)
	default:
		serializer = serial.NewActorSerializer(logger, cfg.Lifecycle.RequestTimeout)
	}
	defer serializer.Close()

	// Notifications
	hub := notify.NewHub(logger)
	var publisher notify.Publisher = hub
	var relay func(ctx context.Context) error
	switch cfg.Notify.Broker {
	case "redis":
		channel := cfg.Server.Name + ":events"
		publisher = notify.NewRedisPublisher(rdb, channel)
		relay = func(ctx context.Context) error {
			return notify.RunRedisRelay(ctx, rdb, channel, hub, logger)
		}
	case "amqp":
		broker, err := notify.NewAMQPBroker(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Fatal("Failed to connect to amqp", zap.Error(err))
		}
		defer broker.Close()
		publisher = broker
		relay = func(ctx context.Context) error {
			return broker.Relay(ctx, hub)
		}
	}
	emitter := notify.NewEmitter(publisher, logger)

	// Staff directory
	db, err := identity.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open staff directory", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	directory, err := identity.NewDirectory(db)
	if err != nil {
		logger.Fatal("Failed to create staff directory", zap.Error(err))
	}
	if err := directory.SeedAdmin(ctx, cfg.Auth.AdminLogin, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("Failed to seed admin", zap.Error(err))
	}
	tokens := identity.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Services
	coord := lifecycle.NewCoordinator(store, serializer, emitter, logger)
	sweeper := lifecycle.NewSweeper(coord, cfg.Lifecycle.CallExpiry, cfg.Lifecycle.SweepInterval, logger)

	// Service discovery is optional
	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
			sd = nil
		} else {
			defer sd.Close()
		}
	}

	gw := gateway.NewGateway(cfg, logger, gateway.Services{
		Tenant:    tenant.NewService(coord, directory, tokens, logger),
		Catalog:   catalog.NewService(coord, logger),
		Registry:  registry.NewService(coord, directory, cfg.Server.PublicURL, logger),
		Ledger:    ledger.NewService(coord, logger),
		Tokens:    tokens,
		Hub:       hub,
		Store:     store,
		Discovery: sd,
	})
	health := grpc.NewHealthServer(cfg, store, logger)

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if sd != nil {
		if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(gw.Start)
	g.Go(health.Start)
	g.Go(func() error {
		return health.Probe(gctx, 10*time.Second)
	})
	g.Go(func() error {
		// Only one instance sweeps when instances share etcd.
		if sd != nil {
			return sd.RunElected(gctx, "call-sweeper", uuid.NewString(), sweeper.Run)
		}
		return sweeper.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay(gctx)
		})
	}

	logger.Info("Dinein started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case <-gctx.Done():
		logger.Error("Service error, shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down gateway", zap.Error(err))
	}
	health.Stop()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return repository.NewMemory(), nil
	default:
		return repository.NewMongoRepository(ctx, &cfg.MongoDB)
	}
}
