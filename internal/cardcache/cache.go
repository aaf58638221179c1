package cardcache

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/gallery"
)

const (
	DefaultTTL            = 5 * time.Minute
	DefaultRefreshTimeout = 2 * time.Minute

	// concurrent ListCards calls during a full resync
	fetchConcurrency = 4
)

// Cache serves the merged catalog from a Store and resyncs it from a Source
// when it is missing or stale. Concurrent refreshes of the same key share
// one upstream sync.
type Cache struct {
	store          Store
	source         Source
	logger         logging.Logger
	key            string
	ttl            atomic.Int64 // time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	flight  singleflight.Group
	current atomic.Pointer[Entry]
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl.Store(int64(d))
		}
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithKey stores the catalog under a key other than DefaultKey.
func WithKey(key string) Option {
	return func(c *Cache) { c.key = key }
}

// New builds a cache over store, syncing from source.
func New(store Store, source Source, opts ...Option) *Cache {
	c := &Cache{
		store:          store,
		source:         source,
		logger:         logging.Nop(),
		key:            DefaultKey,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
	}
	c.ttl.Store(int64(DefaultTTL))
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cardcache", "key", c.key)
	return c
}

// SetTTL changes the freshness window of a running cache.
func (c *Cache) SetTTL(d time.Duration) {
	if d > 0 {
		c.ttl.Store(int64(d))
	}
}

// Load returns the stored entry, or nil when there is none. An entry written
// under another CacheVersion is deleted and never returned.
func (c *Cache) Load(ctx context.Context) (*Entry, error) {
	if e := c.current.Load(); e != nil && e.CacheVersion == CurrentVersion {
		return e, nil
	}

	e, err := c.store.Load(ctx, c.key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	if e.CacheVersion != CurrentVersion {
		c.logger.Info(ctx, "discarding cache entry from another version",
			"stored", e.CacheVersion, "current", CurrentVersion)
		if err := c.store.Delete(ctx, c.key); err != nil {
			c.logger.Warn(ctx, "failed to delete outdated cache entry", "error", err)
		}
		return nil, nil
	}

	c.current.CompareAndSwap(nil, e)
	return e, nil
}

// Save persists e as the whole catalog and makes it the in-process copy.
func (c *Cache) Save(ctx context.Context, e *Entry) error {
	if err := c.store.Save(ctx, c.key, e); err != nil {
		return err
	}
	c.current.Store(e)
	return nil
}

// IsStale reports whether e must be resynced before being served.
func (c *Cache) IsStale(e *Entry) bool {
	if e == nil || e.CacheVersion != CurrentVersion {
		return true
	}
	return c.now().Sub(e.LastSyncedAt) > time.Duration(c.ttl.Load())
}

// Sets returns the merged catalog, resyncing it first when missing or
// stale. When the resync fails a stale entry is still served; with nothing
// to serve the error is UpstreamUnavailable or Timeout.
// The returned sets are shared and must not be modified.
func (c *Cache) Sets(ctx context.Context) ([]tcg.Set, error) {
	e, err := c.loadQuiet(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsStale(e) {
		return e.Sets, nil
	}

	ch := c.flight.DoChan(c.key, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		if e != nil && e.CacheVersion == CurrentVersion {
			c.logger.Warn(ctx, "catalog resync still running, serving stale cache",
				"error", ctx.Err(), "lastSyncedAt", e.LastSyncedAt)
			return e.Sets, nil
		}
		return nil, c.failure(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry).Sets, nil
	}
}

// refresh runs inside the single flight.
func (c *Cache) refresh(ctx context.Context) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	// a flight that finished just before this one may have refreshed already
	stale, err := c.loadQuiet(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsStale(stale) {
		return stale, nil
	}

	start := c.now()
	fresh, err := c.fetchAll(ctx)
	if err != nil {
		if stale != nil {
			c.logger.Warn(ctx, "catalog resync failed, serving stale cache",
				"error", err, "lastSyncedAt", stale.LastSyncedAt)
			return stale, nil
		}
		return nil, c.failure(err)
	}

	if err := c.Save(ctx, fresh); err != nil {
		c.logger.Warn(ctx, "failed to persist catalog, keeping it in memory", "error", err)
		c.current.Store(fresh)
	}
	c.logger.Info(ctx, "catalog synced",
		"sets", len(fresh.Sets), "cards", fresh.CardCount(), "took", c.now().Sub(start))
	return fresh, nil
}

// Resync refetches the whole catalog even when the stored copy is fresh.
// On failure the stored copy stays in place.
func (c *Cache) Resync(ctx context.Context) error {
	_, err, _ := c.flight.Do("resync:"+c.key, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()

		fresh, err := c.fetchAll(ctx)
		if err != nil {
			return nil, c.failure(err)
		}
		if err := c.Save(ctx, fresh); err != nil {
			return nil, err
		}
		c.logger.Info(ctx, "catalog resynced", "sets", len(fresh.Sets), "cards", fresh.CardCount())
		return fresh, nil
	})
	return err
}

// fetchAll lists every set and its cards, then merges gallery satellites.
func (c *Cache) fetchAll(ctx context.Context) (*Entry, error) {
	sets, err := c.source.ListSets(ctx)
	if err != nil {
		return nil, err
	}

	raw := make([]tcg.Set, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, s := range sets {
		g.Go(func() error {
			cards, err := c.source.ListCards(gctx, s.ID)
			if err != nil {
				return err
			}
			s.Cards = cards
			raw[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := gallery.Merge(raw)
	c.logMerge(ctx, res)

	return &Entry{
		CacheVersion: CurrentVersion,
		Sets:         res.Sets,
		LastSyncedAt: c.now().UTC(),
	}, nil
}

func (c *Cache) logMerge(ctx context.Context, res gallery.Result) {
	for satellite, parent := range res.Merged {
		c.logger.Debug(ctx, "merged gallery set", "satellite", satellite, "parent", parent)
	}
	for _, dc := range res.Conflicts {
		c.logger.Warn(ctx, "release date conflict",
			"set", dc.SetID, "candidates", dc.Candidates, "chosen", dc.Chosen)
	}
}

// RefreshSet re-reads one raw set from the source and writes the catalog
// back as a whole new entry. A satellite set is refreshed inside its parent.
// The catalog's sync time is left unchanged.
func (c *Cache) RefreshSet(ctx context.Context, setID string) error {
	const op = "cardcache.RefreshSet"

	_, err, _ := c.flight.Do(c.key+"/"+setID, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()

		e, err := c.loadQuiet(ctx)
		if err != nil {
			return nil, err
		}
		if e == nil {
			_, err := c.Sets(ctx)
			return nil, err
		}

		cards, err := c.source.ListCards(ctx, setID)
		if err != nil {
			return nil, c.failure(err)
		}

		sets := make([]tcg.Set, len(e.Sets))
		for i, s := range e.Sets {
			sets[i] = s.Clone()
		}

		target := setID
		if parent, _, ok := gallery.SatelliteParent(setID); ok && indexOf(sets, parent) >= 0 {
			target = parent
		}
		if i := indexOf(sets, target); i >= 0 {
			sets[i].Cards = replaceCards(sets[i].Cards, target, setID, cards)
		} else {
			meta, err := c.findSet(ctx, setID)
			if err != nil {
				return nil, err
			}
			meta.Cards = cards
			sets = gallery.MergeGallerySets(append(sets, meta))
		}

		next := &Entry{CacheVersion: CurrentVersion, Sets: sets, LastSyncedAt: e.LastSyncedAt}
		if err := c.Save(ctx, next); err != nil {
			return nil, err
		}
		c.logger.Info(ctx, "set refreshed", "set", setID, "cards", len(cards))
		return nil, nil
	})
	if err != nil && apperr.KindOf(err) == apperr.KindUnknown {
		return apperr.E(apperr.UpstreamUnavailable, op, err)
	}
	return err
}

func (c *Cache) findSet(ctx context.Context, setID string) (tcg.Set, error) {
	sets, err := c.source.ListSets(ctx)
	if err != nil {
		return tcg.Set{}, c.failure(err)
	}
	for _, s := range sets {
		if s.ID == setID {
			return s, nil
		}
	}
	return tcg.Set{}, apperr.Errorf(apperr.NotFound, "cardcache.RefreshSet", "set %s not found", setID)
}

// replaceCards swaps the cards of rawID inside a merged set. Own cards stay
// first and satellites follow in id order.
func replaceCards(existing []tcg.Card, target, rawID string, fresh []tcg.Card) []tcg.Card {
	out := make([]tcg.Card, 0, len(existing)+len(fresh))
	for _, card := range existing {
		if card.Set.ID != rawID {
			out = append(out, card)
		}
	}
	out = append(out, fresh...)
	slices.SortStableFunc(out, func(a, b tcg.Card) int {
		ao, bo := a.Set.ID == target, b.Set.ID == target
		switch {
		case ao && !bo:
			return -1
		case !ao && bo:
			return 1
		case ao && bo:
			return 0
		}
		return cmp.Compare(a.Set.ID, b.Set.ID)
	})
	return out
}

// GetCardsBySet returns the cards of setID from the merged catalog. A
// satellite id is answered from its parent. Sets missing from the catalog
// fall back to the raw source listing.
func (c *Cache) GetCardsBySet(ctx context.Context, setID string) ([]tcg.Card, error) {
	const op = "cardcache.GetCardsBySet"

	sets, err := c.Sets(ctx)
	if err == nil {
		if cards, ok := lookupSet(sets, setID); ok {
			return cards, nil
		}
	}

	c.logger.Info(ctx, "set not in merged catalog, asking source", "set", setID, "cacheError", err)
	cards, ferr := c.source.ListCards(ctx, setID)
	switch {
	case ferr != nil && err != nil:
		return nil, err
	case ferr != nil && apperr.Is(ferr, apperr.NotFound):
		return nil, apperr.E(apperr.NotFound, op, ferr)
	case ferr != nil:
		return nil, c.failure(ferr)
	case len(cards) == 0:
		return nil, apperr.Errorf(apperr.NotFound, op, "set %s not found", setID)
	}
	return cards, nil
}

func lookupSet(sets []tcg.Set, setID string) ([]tcg.Card, bool) {
	if i := indexOf(sets, setID); i >= 0 {
		return slices.Clone(sets[i].Cards), true
	}
	parent, _, ok := gallery.SatelliteParent(setID)
	if !ok {
		return nil, false
	}
	i := indexOf(sets, parent)
	if i < 0 {
		return nil, false
	}
	var cards []tcg.Card
	for _, card := range sets[i].Cards {
		if card.Set.ID == setID {
			cards = append(cards, card)
		}
	}
	return cards, len(cards) > 0
}

// FindCard returns one card by id.
func (c *Cache) FindCard(ctx context.Context, cardID string) (tcg.Card, error) {
	const op = "cardcache.FindCard"

	sets, err := c.Sets(ctx)
	if err == nil {
		for _, s := range sets {
			for _, card := range s.Cards {
				if card.ID == cardID {
					return card, nil
				}
			}
		}
	}

	if getter, ok := c.source.(CardGetter); ok {
		card, gerr := getter.GetCard(ctx, cardID)
		if gerr == nil {
			return card, nil
		}
		if apperr.Is(gerr, apperr.NotFound) {
			return tcg.Card{}, apperr.E(apperr.NotFound, op, gerr)
		}
		if err == nil {
			return tcg.Card{}, c.failure(gerr)
		}
	}
	if err != nil {
		return tcg.Card{}, err
	}
	return tcg.Card{}, apperr.Errorf(apperr.NotFound, op, "card %s not found", cardID)
}

// Stats describes the stored catalog without triggering a resync.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	e, err := c.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{CacheVersion: CurrentVersion, Stale: true}
	if e == nil {
		return st, nil
	}
	synced := e.LastSyncedAt
	st.SetCount = len(e.Sets)
	st.CardCount = e.CardCount()
	st.LastSyncedAt = &synced
	st.Age = c.now().Sub(synced)
	st.Stale = c.IsStale(e)
	return st, nil
}

// Invalidate drops the stored catalog so the next read resyncs.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.current.Store(nil)
	return c.store.Delete(ctx, c.key)
}

// loadQuiet treats a store read failure as an empty cache.
func (c *Cache) loadQuiet(ctx context.Context) (*Entry, error) {
	e, err := c.Load(ctx)
	if err != nil {
		c.logger.Warn(ctx, "failed to read cache, resyncing", "error", err)
		return nil, nil
	}
	return e, nil
}

// failure classifies a sync error for callers that have nothing to serve.
func (c *Cache) failure(err error) error {
	const op = "cardcache.Sets"
	switch {
	case errors.Is(err, context.DeadlineExceeded), apperr.Is(err, apperr.Timeout):
		return apperr.E(apperr.Timeout, op, err)
	case apperr.Is(err, apperr.NotFound), errors.Is(err, context.Canceled):
		return err
	default:
		return apperr.E(apperr.UpstreamUnavailable, op, err)
	}
}

func indexOf(sets []tcg.Set, id string) int {
	return slices.IndexFunc(sets, func(s tcg.Set) bool { return s.ID == id })
}
