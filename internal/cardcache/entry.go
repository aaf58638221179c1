// Package cardcache keeps a local copy of the merged catalog so reads do not
// hit the remote catalog API on every page load.
package cardcache

import (
	"context"
	"time"

	"github.com/vaultestim/vaultestim/internal/tcg"
)

// CurrentVersion is bumped whenever the merged shape changes (merge rules,
// normalization, label tables). Entries written under another version are
// discarded on load.
const CurrentVersion = "v3"

// DefaultKey is the store key of the full merged catalog.
const DefaultKey = "catalog"

// Entry is one persisted catalog snapshot.
type Entry struct {
	CacheVersion string    `json:"cacheVersion"`
	Sets         []tcg.Set `json:"sets"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// CardCount returns the number of cards across all sets.
func (e *Entry) CardCount() int {
	n := 0
	for _, s := range e.Sets {
		n += len(s.Cards)
	}
	return n
}

// Store persists entries by key. Save replaces the whole entry, so a reader
// never observes a partially written catalog.
type Store interface {
	// Load returns nil, nil when nothing is stored under key.
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) error
}

// Source is the remote catalog.
type Source interface {
	ListSets(ctx context.Context) ([]tcg.Set, error)
	ListCards(ctx context.Context, setID string) ([]tcg.Card, error)
}

// CardGetter is implemented by sources that can look a single card up.
type CardGetter interface {
	GetCard(ctx context.Context, cardID string) (tcg.Card, error)
}

// Stats summarizes the cached catalog.
type Stats struct {
	CacheVersion string        `json:"cacheVersion"`
	SetCount     int           `json:"setCount"`
	CardCount    int           `json:"cardCount"`
	LastSyncedAt *time.Time    `json:"lastSyncedAt,omitempty"`
	Age          time.Duration `json:"age"`
	Stale        bool          `json:"stale"`
}
