package vault

import (
	"context"

	"github.com/vaultestim/vaultestim/internal/backup"
)

// BackupFacade exports a user's collection to object storage.
type BackupFacade struct {
	services *Services
}

// NewBackupFacade creates a new BackupFacade with the given services.
func NewBackupFacade(services *Services) *BackupFacade {
	return &BackupFacade{services: services}
}

// Backup writes a new export for userID.
func (b *BackupFacade) Backup(ctx context.Context, userID string) (backup.Info, error) {
	const op = "vault.Backup.Backup"
	if err := requireUser(op, userID); err != nil {
		return backup.Info{}, err
	}
	if b.services.Backup == nil {
		return backup.Info{}, notConfigured(op, "backup storage")
	}
	return b.services.Backup.Backup(ctx, userID)
}

// List returns a user's exports, newest first.
func (b *BackupFacade) List(ctx context.Context, userID string) ([]backup.Object, error) {
	const op = "vault.Backup.List"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	if b.services.Backup == nil {
		return nil, notConfigured(op, "backup storage")
	}
	return b.services.Backup.List(ctx, userID)
}
