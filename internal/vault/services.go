// Package vault holds the facades the HTTP API and the vaultctl tool call.
// Each facade combines the catalog cache, the user data store and the
// pure collection and progress logic.
package vault

import (
	"context"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/backup"
	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/storage/repository"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

// CatalogStore is the card catalog as served by the local cache.
// This interface allows for easy mocking in tests.
type CatalogStore interface {
	Sets(ctx context.Context) ([]tcg.Set, error)
	GetCardsBySet(ctx context.Context, setID string) ([]tcg.Card, error)
	FindCard(ctx context.Context, cardID string) (tcg.Card, error)
	RefreshSet(ctx context.Context, setID string) error
	Stats(ctx context.Context) (cardcache.Stats, error)
}

// PriceStore keeps fetched prices.
type PriceStore interface {
	prices.Sink
	Latest(ctx context.Context, cardID, version string) (prices.Price, error)
}

// Backuper exports collections to object storage.
type Backuper interface {
	Backup(ctx context.Context, userID string) (backup.Info, error)
	List(ctx context.Context, userID string) ([]backup.Object, error)
}

// Services contains all shared services needed by facades.
// Optional services are nil when not configured.
type Services struct {
	Catalog    CatalogStore
	Collection repository.CollectionRepository

	// Price refresh; nil disables /prices.
	Prices    PriceStore
	Refresher *prices.Refresher
	// Quota is nil for providers without a daily budget.
	Quota *prices.QuotaTracker

	Backup Backuper

	// Resolver defaults to versions.Default().
	Resolver *versions.Resolver
	Logger   logging.Logger
}

func (s *Services) resolver() *versions.Resolver {
	if s.Resolver == nil {
		return versions.Default()
	}
	return s.Resolver
}

func (s *Services) logger() logging.Logger {
	if s.Logger == nil {
		return logging.Nop()
	}
	return s.Logger
}

func notConfigured(op, what string) error {
	return apperr.Errorf(apperr.UpstreamUnavailable, op, "%s is not configured", what)
}

func requireUser(op, userID string) error {
	if userID == "" {
		return apperr.Errorf(apperr.Invalid, op, "user id is required")
	}
	return nil
}

// Facades bundles one instance of every facade.
type Facades struct {
	Catalog    *CatalogFacade
	Collection *CollectionFacade
	Progress   *ProgressFacade
	Prices     *PriceFacade
	Backup     *BackupFacade
}

// NewFacades creates every facade over services.
func NewFacades(services *Services) *Facades {
	return &Facades{
		Catalog:    NewCatalogFacade(services),
		Collection: NewCollectionFacade(services),
		Progress:   NewProgressFacade(services),
		Prices:     NewPriceFacade(services),
		Backup:     NewBackupFacade(services),
	}
}
