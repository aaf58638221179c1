package vault

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/progress"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

func entry(id, cardID, version string, qty int, added time.Time) collection.Entry {
	return collection.Entry{ID: id, UserID: "u1", CardID: cardID, Version: version, Quantity: qty, DateAdded: added}
}

func newTestFacades(rows ...collection.Entry) (*Facades, *memCollection, *Services) {
	store := newMemCollection(rows...)
	s := &Services{Catalog: testCatalog(), Collection: store}
	return NewFacades(s), store, s
}

func TestCatalogFacade(t *testing.T) {
	f, _, _ := newTestFacades()
	ctx := context.Background()

	sets, err := f.Catalog.Sets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "sv1", sets[1].ID)
	assert.Equal(t, 2, sets[1].CardCount)

	v, err := f.Catalog.CardVersions(ctx, "sv1-2")
	require.NoError(t, err)
	assert.Equal(t, []string{versions.EX}, v.Versions)
	assert.Equal(t, versions.EX, v.Default)
	assert.Equal(t, "ex", v.Rule)

	_, err = f.Catalog.CardVersions(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCatalogFacade_SetsNewestFirst(t *testing.T) {
	f, _, s := newTestFacades()
	catalog := &fakeCatalog{sets: []tcg.Set{
		{ID: "base1", ReleaseDate: "1999/01/09"},
		{ID: "sv1", ReleaseDate: "2023/03/31"},
		{ID: "swsh1", ReleaseDate: "2020-02-07"},
		{ID: "undated"},
	}}
	s.Catalog = catalog
	ctx := context.Background()

	sets, err := f.Catalog.Sets(ctx)
	require.NoError(t, err)
	ids := make([]string, len(sets))
	for i, set := range sets {
		ids[i] = set.ID
	}
	assert.Equal(t, []string{"sv1", "swsh1", "base1", "undated"}, ids)

	// the catalog's own slice is left untouched
	assert.Equal(t, "base1", catalog.sets[0].ID)

	all, err := f.Progress.All(ctx, "u1", progress.Base)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "sv1", all[0].SetID)
}

func TestCollectionFacade_Add(t *testing.T) {
	f, store, _ := newTestFacades()
	ctx := context.Background()

	e, err := f.Collection.Add(ctx, "u1", AddRequest{CardID: "sv1-1"})
	require.NoError(t, err)
	assert.Equal(t, versions.Normale, e.Version)
	assert.Equal(t, 1, e.Quantity)
	assert.Len(t, store.rows, 1)

	e, err = f.Collection.Add(ctx, "u1", AddRequest{CardID: "sv1-2", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, versions.EX, e.Version)

	_, err = f.Collection.Add(ctx, "u1", AddRequest{CardID: "sv1-2", Version: "Reverse Holo"})
	assert.True(t, apperr.Is(err, apperr.Invalid), "got %v", err)

	_, err = f.Collection.Add(ctx, "u1", AddRequest{CardID: "sv1-1", Grade: "10"})
	assert.True(t, apperr.Is(err, apperr.Invalid))

	_, err = f.Collection.Add(ctx, "u1", AddRequest{CardID: "zz-9"})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = f.Collection.Add(ctx, "", AddRequest{CardID: "sv1-1"})
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestCollectionFacade_Update(t *testing.T) {
	now := time.Now()
	f, store, _ := newTestFacades(entry("e1", "sv1-1", "Normale", 1, now))
	ctx := context.Background()

	holo := "holo"
	graded := true
	company, grade := "PCA", "10+"
	e, err := f.Collection.Update(ctx, "u1", "e1", UpdateRequest{
		Version: &holo, IsGraded: &graded, GradeCompany: &company, Grade: &grade,
	})
	require.NoError(t, err)
	assert.Equal(t, versions.Holo, e.Version)
	assert.Equal(t, "10+", store.rows["e1"].Grade)

	ungraded := false
	e, err = f.Collection.Update(ctx, "u1", "e1", UpdateRequest{IsGraded: &ungraded})
	require.NoError(t, err)
	assert.Empty(t, e.GradeCompany)
	assert.Empty(t, e.Grade)

	zero := 0
	_, err = f.Collection.Update(ctx, "u1", "e1", UpdateRequest{Quantity: &zero})
	assert.True(t, apperr.Is(err, apperr.Invalid))

	_, err = f.Collection.Update(ctx, "u2", "e1", UpdateRequest{})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCollectionFacade_ListGroupsVersions(t *testing.T) {
	now := time.Now()
	f, _, _ := newTestFacades(
		entry("a", "sv1-1", "Holo", 1, now),
		entry("b", "sv1-1", "Normale", 2, now),
		entry("c", "sv1-1", "normale", 1, now),
	)

	groups, err := f.Collection.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 4, groups[0].Quantity)
	require.Len(t, groups[0].Versions, 2)
	assert.Equal(t, versions.Normale, groups[0].Versions[0].Version)
	assert.Equal(t, 3, groups[0].Versions[0].Quantity)
}

func TestCollectionFacade_Adjust(t *testing.T) {
	f, store, _ := newTestFacades(entry("e1", "sv1-1", "Normale", 1, time.Now()))
	ctx := context.Background()

	qty, err := f.Collection.Adjust(ctx, "u1", "e1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	qty, err = f.Collection.Adjust(ctx, "u1", "e1", -3)
	require.NoError(t, err)
	assert.Zero(t, qty)
	assert.Empty(t, store.rows)

	_, err = f.Collection.Adjust(ctx, "u1", "e1", 0)
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestCollectionFacade_DuplicatesAndMerge(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f, store, _ := newTestFacades(
		entry("a", "sv1-1", "Normale", 1, t0.Add(time.Hour)),
		entry("b", "sv1-1", "", 2, t0),
		entry("c", "sv1-2", "EX", 3, t0),
	)
	ctx := context.Background()

	byRows, err := f.Collection.Duplicates(ctx, "u1", collection.ModeRows)
	require.NoError(t, err)
	require.Len(t, byRows, 1)
	assert.Equal(t, 3, byRows[0].Quantity)

	byQty, err := f.Collection.Duplicates(ctx, "u1", collection.ModeQuantity)
	require.NoError(t, err)
	assert.Len(t, byQty, 2)

	res, err := f.Collection.MergeDuplicates(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Groups)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, "b", res.Plans[0].Keep.ID)
	assert.Equal(t, 3, store.rows["b"].Quantity)
	assert.NotContains(t, store.rows, "a")

	again, err := f.Collection.Duplicates(ctx, "u1", collection.ModeRows)
	require.NoError(t, err)
	assert.Empty(t, again)

	res, err = f.Collection.MergeDuplicates(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, res.Groups)
	assert.Equal(t, 1, store.merges)
}

func TestProgressFacade(t *testing.T) {
	now := time.Now()
	f, _, _ := newTestFacades(
		entry("a", "sv1-1", "Normale", 1, now),
		entry("b", "sv1-1", "Holo", 1, now),
	)
	ctx := context.Background()

	res, err := f.Progress.Set(ctx, "u1", "sv1", progress.Base)
	require.NoError(t, err)
	assert.Equal(t, "Scarlet & Violet", res.SetName)
	assert.Equal(t, 1, res.Owned)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 50, res.Percentage)

	master, err := f.Progress.Set(ctx, "u1", "sv1", progress.Masterset)
	require.NoError(t, err)
	assert.Equal(t, 2, master.Owned)
	assert.Equal(t, 6, master.Total)

	all, err := f.Progress.All(ctx, "u1", progress.Base)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	started, err := f.Progress.Started(ctx, "u1", progress.Base)
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, "sv1", started[0].SetID)

	rarity, err := f.Progress.Rarity(ctx, "u1", "sv1", progress.Base)
	require.NoError(t, err)
	assert.Len(t, rarity, 2)

	var buf bytes.Buffer
	require.NoError(t, f.Progress.Chart(ctx, &buf, "u1", progress.Base))
	assert.Contains(t, buf.String(), "Scarlet")

	_, err = f.Progress.Set(ctx, "u1", "nope", progress.Base)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPriceFacade(t *testing.T) {
	now := time.Now()
	f, _, s := newTestFacades(
		entry("a", "sv1-1", "Normale", 1, now),
		entry("b", "sv1-1", "", 1, now),
		entry("c", "sv1-2", "EX", 1, now),
	)
	ctx := context.Background()

	_, err := f.Prices.RefreshCollection(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
	_, err = f.Prices.Quota(ctx)
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))

	store := &memPrices{}
	s.Prices = store
	s.Refresher = prices.NewRefresher(fixedProvider{}, store, nil, 2)

	rep, err := f.Prices.RefreshCollection(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Updated)
	assert.Empty(t, rep.Failed)

	rep, err = f.Prices.Refresh(ctx, []PriceRequest{{CardID: "sv1-1"}, {CardID: "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "missing", rep.Failed[0].Request.Card.ID)

	p, err := f.Prices.Latest(ctx, "sv1-1", "normale")
	require.NoError(t, err)
	assert.Equal(t, 1.5, p.Amount)

	s.Quota = prices.NewQuotaTracker(&prices.MemoryQuotaStore{}, 100)
	st, err := f.Prices.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, st.Limit)
}

func TestBackupFacade_NotConfigured(t *testing.T) {
	f, _, _ := newTestFacades()
	_, err := f.Backup.Backup(context.Background(), "u1")
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))

	_, err = f.Backup.List(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.Invalid))
}
