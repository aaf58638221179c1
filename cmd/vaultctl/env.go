package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/vaultestim/vaultestim/internal/backup"
	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/config"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/pokemontcg"
	"github.com/vaultestim/vaultestim/internal/storage"
	"github.com/vaultestim/vaultestim/internal/vault"
)

// env holds what a command opened. close releases it.
type env struct {
	cfg    *config.Config
	logger logging.Logger
	db     *storage.DB
	cache  *cardcache.Cache
	store  *cardcache.SQLiteStore
}

func loadConfig() *config.Config {
	path := *configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			log.Fatalf("Error resolving config path: %v", err)
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func openDB(ctx context.Context, cfg *config.Config, migrate bool) *storage.DB {
	if cfg.Database.DSN == "" {
		log.Fatalf("Database DSN is not configured (set %s)", config.EnvDatabaseDSN)
	}
	dbConfig := storage.DefaultConfig(cfg.Database.DSN)
	dbConfig.AutoMigrate = migrate && cfg.Database.AutoMigrate
	db, err := storage.Open(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	return db
}

// openEnv opens the catalog cache and, when withDB is set, the user store.
func openEnv(ctx context.Context, withDB bool) *env {
	cfg := loadConfig()
	e := &env{cfg: cfg, logger: logging.New(os.Stderr, cfg.App.DebugMode)}

	cachePath, err := cfg.GetCachePath()
	if err != nil {
		log.Fatalf("Error resolving cache path: %v", err)
	}
	e.store, err = cardcache.OpenSQLite(cachePath)
	if err != nil {
		log.Fatalf("Error opening card cache: %v", err)
	}

	timeout, err := cfg.GetCatalogTimeout()
	if err != nil {
		log.Fatalf("Invalid catalog timeout: %v", err)
	}
	client := pokemontcg.NewClient(
		pokemontcg.WithBaseURL(cfg.Catalog.BaseURL),
		pokemontcg.WithAPIKey(cfg.Catalog.APIKey),
		pokemontcg.WithTimeout(timeout),
		pokemontcg.WithLogger(e.logger.With("component", "pokemontcg")),
	)

	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		log.Fatalf("Invalid cache ttl: %v", err)
	}
	refreshTimeout, err := cfg.GetCacheRefreshTimeout()
	if err != nil {
		log.Fatalf("Invalid cache refresh timeout: %v", err)
	}
	e.cache = cardcache.New(e.store, client,
		cardcache.WithTTL(ttl),
		cardcache.WithRefreshTimeout(refreshTimeout),
		cardcache.WithLogger(e.logger))

	if withDB {
		e.db = openDB(ctx, cfg, true)
	}
	return e
}

func (e *env) services() *vault.Services {
	s := &vault.Services{Catalog: e.cache, Logger: e.logger}
	if e.db != nil {
		s.Collection = e.db.Collection()
		s.Prices = e.db.Prices()
	}
	return s
}

func (e *env) backupManager(ctx context.Context) *backup.Manager {
	if e.cfg.Backup.Bucket == "" {
		log.Fatal("Backup bucket is not configured ([backup] bucket)")
	}
	store, err := backup.NewS3Store(ctx, backup.S3Config{
		Bucket:    e.cfg.Backup.Bucket,
		Endpoint:  e.cfg.Backup.Endpoint,
		Region:    e.cfg.Backup.Region,
		AccessKey: e.cfg.Backup.AccessKey,
		SecretKey: e.cfg.Backup.SecretKey,
	})
	if err != nil {
		log.Fatalf("Error creating backup store: %v", err)
	}
	return backup.NewManager(store, e.db.Collection(), e.cfg.Backup.Prefix, e.logger)
}

func (e *env) close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Printf("Error closing card cache: %v", err)
		}
	}
}

func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
