package cardcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/tcg"
)

type fakeSource struct {
	mu       sync.Mutex
	sets     []tcg.Set
	cards    map[string][]tcg.Card
	err      error
	setCalls atomic.Int32
	// when set, ListSets blocks until it is closed
	gate chan struct{}
}

func (f *fakeSource) ListSets(ctx context.Context) ([]tcg.Set, error) {
	f.setCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]tcg.Set(nil), f.sets...), nil
}

func (f *fakeSource) ListCards(_ context.Context, setID string) ([]tcg.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]tcg.Card(nil), f.cards[setID]...), nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func card(setID, id string) tcg.Card {
	return tcg.Card{ID: id, Name: id, Set: tcg.SetRef{ID: setID}}
}

func newSource() *fakeSource {
	return &fakeSource{
		sets: []tcg.Set{
			{ID: "swsh9", Name: "Brilliant Stars", ReleaseDate: "2022/02/25"},
			{ID: "swsh9tg", Name: "Brilliant Stars Trainer Gallery", ReleaseDate: "2022/02/25"},
			{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023/03/31"},
		},
		cards: map[string][]tcg.Card{
			"swsh9":   {card("swsh9", "swsh9-1"), card("swsh9", "swsh9-2")},
			"swsh9tg": {card("swsh9tg", "swsh9tg-TG01")},
			"sv1":     {card("sv1", "sv1-1")},
		},
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestSets_SyncsAndMerges(t *testing.T) {
	src := newSource()
	clk := newClock()
	store := NewMemoryStore()
	c := New(store, src, WithClock(clk.Now))

	sets, err := c.Sets(context.Background())
	require.NoError(t, err)

	require.Len(t, sets, 2)
	assert.Equal(t, "sv1", sets[0].ID)
	assert.Equal(t, "swsh9", sets[1].ID)
	assert.Equal(t, []string{"swsh9-1", "swsh9-2", "swsh9tg-TG01"}, sets[1].CardIDs())

	stored, err := store.Load(context.Background(), DefaultKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, CurrentVersion, stored.CacheVersion)
	assert.Equal(t, clk.Now(), stored.LastSyncedAt)
}

func TestSets_FreshEntryServedWithoutSource(t *testing.T) {
	src := newSource()
	clk := newClock()
	c := New(NewMemoryStore(), src, WithClock(clk.Now), WithTTL(time.Minute))

	_, err := c.Sets(context.Background())
	require.NoError(t, err)
	clk.Advance(59 * time.Second)
	_, err = c.Sets(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.setCalls.Load())

	clk.Advance(2 * time.Second)
	_, err = c.Sets(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.setCalls.Load(), "entry older than the ttl is resynced")
}

func TestLoad_VersionMismatchDiscarded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, DefaultKey, &Entry{
		CacheVersion: "v1",
		Sets:         []tcg.Set{{ID: "old"}},
		LastSyncedAt: time.Now(),
	}))
	c := New(store, newSource())

	e, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, e)

	left, err := store.Load(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Nil(t, left, "outdated entry is deleted")
}

func TestSets_VersionMismatchNeverServedEvenWhenSourceFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, DefaultKey, &Entry{CacheVersion: "v1", Sets: []tcg.Set{{ID: "old"}}}))
	src := newSource()
	src.fail(errors.New("connection refused"))
	c := New(store, src)

	_, err := c.Sets(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
}

func TestSets_StaleServedWhenSourceFails(t *testing.T) {
	store := NewMemoryStore()
	clk := newClock()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, DefaultKey, &Entry{
		CacheVersion: CurrentVersion,
		Sets:         []tcg.Set{{ID: "sv1", Cards: []tcg.Card{card("sv1", "sv1-1")}}},
		LastSyncedAt: clk.Now().Add(-time.Hour),
	}))
	src := newSource()
	src.fail(errors.New("503"))
	c := New(store, src, WithClock(clk.Now))

	sets, err := c.Sets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "sv1", sets[0].ID)
}

func TestSets_StaleServedWhenCallerGivesUp(t *testing.T) {
	store := NewMemoryStore()
	clk := newClock()
	require.NoError(t, store.Save(context.Background(), DefaultKey, &Entry{
		CacheVersion: CurrentVersion,
		Sets:         []tcg.Set{{ID: "sv1", Cards: []tcg.Card{card("sv1", "sv1-1")}}},
		LastSyncedAt: clk.Now().Add(-10 * time.Minute),
	}))
	src := newSource()
	src.gate = make(chan struct{})
	t.Cleanup(func() { close(src.gate) })
	c := New(store, src, WithClock(clk.Now))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sets, err := c.Sets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "sv1", sets[0].ID)
}

func TestSets_CancelledWithNothingToServe(t *testing.T) {
	src := newSource()
	src.gate = make(chan struct{})
	t.Cleanup(func() { close(src.gate) })
	c := New(NewMemoryStore(), src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Sets(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperr.Is(err, apperr.UpstreamUnavailable))
}

func TestSets_NoCacheAndSourceDown(t *testing.T) {
	src := newSource()
	src.fail(errors.New("dial tcp: no route to host"))
	c := New(NewMemoryStore(), src)

	_, err := c.Sets(context.Background())
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
}

func TestSets_RefreshTimeout(t *testing.T) {
	src := newSource()
	src.gate = make(chan struct{}) // never released
	c := New(NewMemoryStore(), src, WithRefreshTimeout(20*time.Millisecond))

	_, err := c.Sets(context.Background())
	assert.True(t, apperr.Is(err, apperr.Timeout), "got %v", err)
}

func TestSets_ConcurrentCallersShareOneSync(t *testing.T) {
	src := newSource()
	src.gate = make(chan struct{})
	c := New(NewMemoryStore(), src)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sets, err := c.Sets(context.Background())
			if err == nil && len(sets) != 2 {
				err = errors.New("unexpected set count")
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return src.setCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, src.setCalls.Load())
}

func TestGetCardsBySet(t *testing.T) {
	src := newSource()
	src.cards["unlisted"] = []tcg.Card{card("unlisted", "unlisted-1")}
	c := New(NewMemoryStore(), src)
	ctx := context.Background()

	cards, err := c.GetCardsBySet(ctx, "swsh9")
	require.NoError(t, err)
	assert.Len(t, cards, 3)

	cards, err = c.GetCardsBySet(ctx, "swsh9tg")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "swsh9tg-TG01", cards[0].ID)

	cards, err = c.GetCardsBySet(ctx, "unlisted")
	require.NoError(t, err)
	assert.Len(t, cards, 1, "falls back to the source")

	_, err = c.GetCardsBySet(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestFindCard(t *testing.T) {
	c := New(NewMemoryStore(), newSource())

	got, err := c.FindCard(context.Background(), "swsh9tg-TG01")
	require.NoError(t, err)
	assert.Equal(t, "swsh9tg", got.Set.ID)

	_, err = c.FindCard(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestRefreshSet(t *testing.T) {
	src := newSource()
	clk := newClock()
	c := New(NewMemoryStore(), src, WithClock(clk.Now))
	ctx := context.Background()
	_, err := c.Sets(ctx)
	require.NoError(t, err)
	synced := clk.Now()

	clk.Advance(time.Minute)
	src.mu.Lock()
	src.cards["swsh9tg"] = []tcg.Card{card("swsh9tg", "swsh9tg-TG01"), card("swsh9tg", "swsh9tg-TG02")}
	src.cards["swsh9"] = []tcg.Card{card("swsh9", "swsh9-1")}
	src.mu.Unlock()

	require.NoError(t, c.RefreshSet(ctx, "swsh9tg"))
	require.NoError(t, c.RefreshSet(ctx, "swsh9"))

	cards, err := c.GetCardsBySet(ctx, "swsh9")
	require.NoError(t, err)
	ids := make([]string, len(cards))
	for i, cd := range cards {
		ids[i] = cd.ID
	}
	assert.Equal(t, []string{"swsh9-1", "swsh9tg-TG01", "swsh9tg-TG02"}, ids)

	e, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, synced, e.LastSyncedAt)
}

func TestStats(t *testing.T) {
	clk := newClock()
	c := New(NewMemoryStore(), newSource(), WithClock(clk.Now))
	ctx := context.Background()

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, st.Stale)
	assert.Nil(t, st.LastSyncedAt)

	_, err = c.Sets(ctx)
	require.NoError(t, err)
	clk.Advance(time.Minute)

	st, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.SetCount)
	assert.Equal(t, 4, st.CardCount)
	assert.Equal(t, time.Minute, st.Age)
	assert.False(t, st.Stale)
	assert.Equal(t, CurrentVersion, st.CacheVersion)
}

func TestInvalidate(t *testing.T) {
	src := newSource()
	c := New(NewMemoryStore(), src)
	ctx := context.Background()
	_, err := c.Sets(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Sets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.setCalls.Load())
}

func TestSetTTL(t *testing.T) {
	src := newSource()
	clk := newClock()
	c := New(NewMemoryStore(), src, WithClock(clk.Now), WithTTL(time.Hour))

	_, err := c.Sets(context.Background())
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)

	c.SetTTL(0)
	_, err = c.Sets(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.setCalls.Load(), "zero ttl is ignored")

	c.SetTTL(5 * time.Minute)
	_, err = c.Sets(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.setCalls.Load())
}

func TestResync(t *testing.T) {
	src := newSource()
	clk := newClock()
	c := New(NewMemoryStore(), src, WithClock(clk.Now))

	_, err := c.Sets(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Resync(context.Background()))
	assert.EqualValues(t, 2, src.setCalls.Load(), "fresh entry is refetched")

	src.fail(errors.New("connection refused"))
	err = c.Resync(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))

	sets, err := c.Sets(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sets, "previous catalog kept")
}
