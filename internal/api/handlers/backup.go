package handlers

import (
	"context"
	"net/http"

	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/backup"
)

// BackupService is the part of vault.BackupFacade the backup routes use.
type BackupService interface {
	Backup(ctx context.Context, userID string) (backup.Info, error)
	List(ctx context.Context, userID string) ([]backup.Object, error)
}

// BackupHandler handles collection export requests.
type BackupHandler struct {
	facade BackupService
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(facade BackupService) *BackupHandler {
	return &BackupHandler{facade: facade}
}

// CreateBackup exports the caller's collection to object storage.
func (h *BackupHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := h.facade.Backup(r.Context(), userID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, info)
}

// ListBackups returns the caller's backups, newest first.
func (h *BackupHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	objects, err := h.facade.List(r.Context(), userID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	if objects == nil {
		objects = []backup.Object{}
	}

	response.Success(w, objects)
}
