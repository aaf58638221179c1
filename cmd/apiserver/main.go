// Package main runs the VaultEstim REST API: the catalog cache, the
// collection store and the price refresher behind one HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultestim/vaultestim/internal/api"
	"github.com/vaultestim/vaultestim/internal/backup"
	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/config"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/pokemontcg"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/storage"
	"github.com/vaultestim/vaultestim/internal/vault"
	"github.com/vaultestim/vaultestim/internal/version"
)

var (
	configPath = flag.String("config", "", "Config file (default: ~/.vaultestim/config.toml)")
	port       = flag.Int("port", 0, "API server port (overrides config)")
	watch      = flag.Bool("watch", true, "Reload cache TTL and price quota when the config file changes")
)

func main() {
	flag.Parse()

	path := *configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			log.Fatalf("Failed to resolve config path: %v", err)
		}
		path = p
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.App.DebugMode)
	logger.Info(context.Background(), "starting vaultestim apiserver", "version", version.String(), "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, path, logger); err != nil {
		logger.Error(ctx, "apiserver failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, logger logging.Logger) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set %s)", config.EnvDatabaseDSN)
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (set %s)", config.EnvJWTSecret)
	}

	// User data store
	dbConfig := storage.DefaultConfig(cfg.Database.DSN)
	dbConfig.AutoMigrate = cfg.Database.AutoMigrate
	if cfg.Database.MaxOpenConns > 0 {
		dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	db, err := storage.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "error closing database", "error", err)
		}
	}()

	// Catalog cache
	cachePath, err := cfg.GetCachePath()
	if err != nil {
		return err
	}
	cacheStore, err := cardcache.OpenSQLite(cachePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Warn(ctx, "error closing card cache", "error", err)
		}
	}()

	client, err := newCatalogClient(cfg, logger)
	if err != nil {
		return err
	}
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return err
	}
	refreshTimeout, err := cfg.GetCacheRefreshTimeout()
	if err != nil {
		return err
	}
	catalog := cardcache.New(cacheStore, client,
		cardcache.WithTTL(ttl),
		cardcache.WithRefreshTimeout(refreshTimeout),
		cardcache.WithLogger(logger))

	// Prices
	loc, err := cfg.GetPricesLocation()
	if err != nil {
		return err
	}
	quota := prices.NewQuotaTracker(db.Quota(), cfg.Prices.DailyQuota,
		prices.WithQuotaLocation(loc),
		prices.WithQuotaLogger(logger.With("component", "quota")))
	provider, err := prices.NewProvider(cfg.Prices.Provider, client, prices.RapidAPIConfig{
		Host: cfg.Prices.RapidAPIHost,
		Key:  cfg.Prices.RapidAPIKey,
	}, quota)
	if err != nil {
		return err
	}

	services := &vault.Services{
		Catalog:    catalog,
		Collection: db.Collection(),
		Prices:     db.Prices(),
		Refresher:  prices.NewRefresher(provider, db.Prices(), logger, cfg.Prices.Concurrency),
		Logger:     logger,
	}
	// Only the RapidAPI plan has a daily budget.
	if cfg.Prices.Provider == "rapidapi" {
		services.Quota = quota
	}

	// Backup
	if cfg.Backup.Bucket != "" {
		manager, scheduler, err := newBackup(ctx, cfg, db, logger)
		if err != nil {
			return err
		}
		services.Backup = manager
		if scheduler != nil {
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := scheduler.Stop(); err != nil {
					logger.Warn(ctx, "error stopping backup scheduler", "error", err)
				}
			}()
		}
	}

	// Config reload
	if *watch {
		go func() {
			err := config.Watch(ctx, path, logger, func(next *config.Config) {
				if d, err := next.GetCacheTTL(); err == nil {
					catalog.SetTTL(d)
				}
				quota.SetLimit(next.Prices.DailyQuota)
			})
			if err != nil {
				logger.Warn(ctx, "config watch stopped", "error", err)
			}
		}()
	}

	requestTimeout, err := cfg.GetServerRequestTimeout()
	if err != nil {
		return err
	}
	server, err := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		JWTSecret:      cfg.Server.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: requestTimeout,
	}, vault.NewFacades(services), logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "API server stopped")
	return nil
}

func newCatalogClient(cfg *config.Config, logger logging.Logger) (*pokemontcg.Client, error) {
	timeout, err := cfg.GetCatalogTimeout()
	if err != nil {
		return nil, err
	}
	opts := []pokemontcg.Option{
		pokemontcg.WithBaseURL(cfg.Catalog.BaseURL),
		pokemontcg.WithAPIKey(cfg.Catalog.APIKey),
		pokemontcg.WithTimeout(timeout),
		pokemontcg.WithLogger(logger.With("component", "pokemontcg")),
	}
	// A zero interval lifts the limit.
	var every time.Duration
	if rps := cfg.Catalog.RequestsPerSecond; rps > 0 {
		every = time.Duration(float64(time.Second) / rps)
	}
	opts = append(opts, pokemontcg.WithRateLimit(every, 1))
	return pokemontcg.NewClient(opts...), nil
}

func newBackup(ctx context.Context, cfg *config.Config, db *storage.DB, logger logging.Logger) (*backup.Manager, *backup.Scheduler, error) {
	store, err := backup.NewS3Store(ctx, backup.S3Config{
		Bucket:    cfg.Backup.Bucket,
		Endpoint:  cfg.Backup.Endpoint,
		Region:    cfg.Backup.Region,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
	})
	if err != nil {
		return nil, nil, err
	}
	manager := backup.NewManager(store, db.Collection(), cfg.Backup.Prefix, logger)

	interval, err := cfg.GetBackupInterval()
	if err != nil || interval <= 0 {
		return manager, nil, err
	}
	return manager, backup.NewScheduler(manager, interval), nil
}
