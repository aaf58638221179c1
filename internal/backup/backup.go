// Package backup exports user collections as JSON documents to an
// S3-compatible bucket.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/logging"
)

// ChecksumKey is the object metadata key holding the SHA-256 of the body.
const ChecksumKey = "sha256"

// Object describes one stored backup.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectStore is the subset of object storage a backup needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, map[string]string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Source lists what gets backed up.
type Source interface {
	ListByUser(ctx context.Context, userID string) ([]collection.Entry, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Export is the document written for one user.
type Export struct {
	UserID     string             `json:"userId"`
	ExportedAt time.Time          `json:"exportedAt"`
	Entries    []collection.Entry `json:"entries"`
}

// Info is returned after a successful backup.
type Info struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Entries  int       `json:"entries"`
	Checksum string    `json:"checksum"`
	At       time.Time `json:"at"`
}

// Manager writes and reads collection backups.
type Manager struct {
	store  ObjectStore
	source Source
	prefix string
	logger logging.Logger
	now    func() time.Time
}

// NewManager creates a backup manager writing under prefix.
func NewManager(store ObjectStore, source Source, prefix string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		store:  store,
		source: source,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "backup"),
		now:    time.Now,
	}
}

func (m *Manager) userPrefix(userID string) string {
	return path.Join(m.prefix, userID) + "/"
}

// Backup exports one user's collection to <prefix>/<user>/<timestamp>.json.
func (m *Manager) Backup(ctx context.Context, userID string) (Info, error) {
	if userID == "" {
		return Info{}, apperr.Errorf(apperr.Invalid, "backup.Backup", "user id is required")
	}

	entries, err := m.source.ListByUser(ctx, userID)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read collection: %w", err)
	}

	at := m.now().UTC()
	body, err := json.Marshal(Export{UserID: userID, ExportedAt: at, Entries: entries})
	if err != nil {
		return Info{}, fmt.Errorf("failed to encode backup: %w", err)
	}

	sum := checksum(body)
	key := m.userPrefix(userID) + at.Format("20060102T150405Z") + ".json"
	if err := m.store.Put(ctx, key, body, map[string]string{ChecksumKey: sum}); err != nil {
		return Info{}, apperr.E(apperr.UpstreamUnavailable, "backup.Backup", fmt.Errorf("failed to upload backup: %w", err))
	}

	m.logger.Info(ctx, "collection backed up", "user", userID, "key", key, "entries", len(entries))
	return Info{Key: key, Size: int64(len(body)), Entries: len(entries), Checksum: sum, At: at}, nil
}

// BackupAll backs up every user and returns how many succeeded. Failures
// are logged and the first one is returned after all users were tried.
func (m *Manager) BackupAll(ctx context.Context) (int, error) {
	users, err := m.source.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var (
		done     int
		firstErr error
	)
	for _, u := range users {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := m.Backup(ctx, u); err != nil {
			m.logger.Error(ctx, "backup failed", "user", u, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

// List returns a user's backups, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]Object, error) {
	objs, err := m.store.List(ctx, m.userPrefix(userID))
	if err != nil {
		return nil, apperr.E(apperr.UpstreamUnavailable, "backup.List", err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
	return objs, nil
}

// Load reads a backup and verifies its checksum.
func (m *Manager) Load(ctx context.Context, key string) (Export, error) {
	const op = "backup.Load"

	body, meta, err := m.store.Get(ctx, key)
	if err != nil {
		return Export{}, err
	}
	if want := meta[ChecksumKey]; want != "" && want != checksum(body) {
		return Export{}, apperr.Errorf(apperr.DataIntegrity, op, "checksum mismatch for %s", key)
	}

	var exp Export
	if err := json.Unmarshal(body, &exp); err != nil {
		return Export{}, apperr.E(apperr.DataIntegrity, op, fmt.Errorf("failed to decode backup: %w", err))
	}
	return exp, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
