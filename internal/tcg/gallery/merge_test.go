package gallery

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/tcg"
)

func cardsOf(setID string, n int, date string) []tcg.Card {
	cards := make([]tcg.Card, n)
	for i := range cards {
		cards[i] = tcg.Card{
			ID:  setID + "-" + string(rune('a'+i)),
			Set: tcg.SetRef{ID: setID, ReleaseDate: date},
		}
	}
	return cards
}

func TestMerge_TrainerGalleryIntoParent(t *testing.T) {
	c1 := tcg.Card{ID: "swsh9tg-TG01", Set: tcg.SetRef{ID: "swsh9tg"}}
	c2 := tcg.Card{ID: "swsh9tg-TG02", Set: tcg.SetRef{ID: "swsh9tg"}}
	in := []tcg.Set{
		{ID: "swsh9", Name: "Brilliant Stars", ReleaseDate: "2022/02/25"},
		{ID: "swsh9tg", Name: "Brilliant Stars Trainer Gallery", ReleaseDate: "2022/02/25", Cards: []tcg.Card{c1, c2}},
	}

	res := Merge(in)

	require.Len(t, res.Sets, 1)
	assert.Equal(t, "swsh9", res.Sets[0].ID)
	assert.Equal(t, "Brilliant Stars", res.Sets[0].Name, "parent metadata wins")
	assert.Equal(t, []string{"swsh9tg-TG01", "swsh9tg-TG02"}, res.Sets[0].CardIDs())
	assert.Equal(t, map[string]string{"swsh9tg": "swsh9"}, res.Merged)

	// input untouched
	assert.Empty(t, in[0].Cards)
}

func TestMerge_PointFiveNeverMerged(t *testing.T) {
	in := []tcg.Set{
		{ID: "sv3", Cards: cardsOf("sv3", 2, "")},
		{ID: "sv3pt5", Cards: cardsOf("sv3pt5", 3, "")},
	}

	got := MergeGallerySets(in)

	require.Len(t, got, 2)
	assert.Equal(t, "sv3", got[0].ID)
	assert.Len(t, got[0].Cards, 2)
	assert.Equal(t, "sv3pt5", got[1].ID)
	assert.Len(t, got[1].Cards, 3)
}

func TestMerge_SatelliteWithoutParentStaysStandalone(t *testing.T) {
	in := []tcg.Set{{ID: "swsh11tg", Cards: cardsOf("swsh11tg", 2, "")}}

	res := Merge(in)

	require.Len(t, res.Sets, 1)
	assert.Equal(t, "swsh11tg", res.Sets[0].ID)
	assert.Empty(t, res.Merged)
}

func TestMerge_GalleryAndTrainerGalleryDeterministicOrder(t *testing.T) {
	a := []tcg.Set{
		{ID: "swsh12pt5tg", Cards: cardsOf("swsh12pt5tg", 1, "")},
		{ID: "swsh12pt5", Cards: cardsOf("swsh12pt5", 1, "")},
		{ID: "swsh12pt5gg", Cards: cardsOf("swsh12pt5gg", 2, "")},
	}
	b := []tcg.Set{a[2], a[0], a[1]}

	ra := MergeGallerySets(a)
	rb := MergeGallerySets(b)

	require.Len(t, ra, 1)
	assert.Equal(t, []string{"swsh12pt5-a", "swsh12pt5gg-a", "swsh12pt5gg-b", "swsh12pt5tg-a"}, ra[0].CardIDs())
	assert.True(t, reflect.DeepEqual(ra, rb), "merge must not depend on input order")
}

func TestMerge_Idempotent(t *testing.T) {
	inputs := [][]tcg.Set{
		{
			{ID: "swsh9", ReleaseDate: "2022/02/25", Cards: cardsOf("swsh9", 3, "2022/02/25")},
			{ID: "swsh9tg", Cards: cardsOf("swsh9tg", 2, "2022/02/25")},
			{ID: "sv3pt5", Cards: cardsOf("sv3pt5", 2, "")},
			{ID: "sv3"},
		},
		{
			{ID: "sv10", ReleaseDate: "2025/05/30", Cards: cardsOf("sv10", 1, "2025/05/30")},
			{ID: "sv10", ReleaseDate: "2025/06/01", Cards: cardsOf("sv10", 2, "2025/06/01")},
			{ID: "sv10", ReleaseDate: "2025/06/01"},
			{ID: "lonetg", Cards: cardsOf("lonetg", 1, "")},
		},
		{
			{ID: "nodate", Cards: cardsOf("nodate", 3, "2020/01/01")},
		},
	}

	for i, in := range inputs {
		once := MergeGallerySets(in)
		twice := MergeGallerySets(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("input %d: merge not idempotent\nonce:  %+v\ntwice: %+v", i, once, twice)
		}
	}
}

func TestMerge_DuplicateEntriesReleaseDate(t *testing.T) {
	in := []tcg.Set{
		{ID: "rsv10pt5", Name: "White Flare", ReleaseDate: "2025/07/18"},
		{ID: "rsv10pt5", ReleaseDate: "2025/07/17", Cards: cardsOf("rsv10pt5", 2, "2025/07/18")},
		{ID: "rsv10pt5", ReleaseDate: "2025/07/17"},
	}

	res := Merge(in)

	require.Len(t, res.Sets, 1)
	set := res.Sets[0]
	assert.Equal(t, "White Flare", set.Name)
	assert.Equal(t, "2025/07/18", set.ReleaseDate, "3 votes beat 2")
	assert.Len(t, set.Cards, 2)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "rsv10pt5", res.Conflicts[0].SetID)
	assert.Equal(t, map[string]int{"2025/07/18": 3, "2025/07/17": 2}, res.Conflicts[0].Candidates)
}

func TestMerge_ReleaseDateTieBreaksEarliest(t *testing.T) {
	in := []tcg.Set{
		{ID: "zsv10pt5", ReleaseDate: "2025/07/18"},
		{ID: "zsv10pt5", ReleaseDate: "2025-07-11"},
	}

	for i := 0; i < 5; i++ {
		got := MergeGallerySets(in)
		require.Len(t, got, 1)
		assert.Equal(t, "2025-07-11", got[0].ReleaseDate)
	}
}

func TestMerge_DuplicateCardsUnioned(t *testing.T) {
	shared := tcg.Card{ID: "sv9-1", Set: tcg.SetRef{ID: "sv9"}}
	in := []tcg.Set{
		{ID: "sv9", Cards: []tcg.Card{shared}},
		{ID: "sv9", Cards: []tcg.Card{shared, {ID: "sv9-2", Set: tcg.SetRef{ID: "sv9"}}}},
	}

	got := MergeGallerySets(in)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"sv9-1", "sv9-2"}, got[0].CardIDs())
}

func TestSatelliteParent(t *testing.T) {
	tests := []struct {
		id     string
		parent string
		ok     bool
	}{
		{"swsh9tg", "swsh9", true},
		{"swsh12pt5gg", "swsh12pt5", true},
		{"sv3pt5", "", false},
		{"tg", "", false},
		{"sv9", "", false},
	}
	for _, tt := range tests {
		parent, _, ok := SatelliteParent(tt.id)
		if parent != tt.parent || ok != tt.ok {
			t.Errorf("SatelliteParent(%q) = (%q, %v), want (%q, %v)", tt.id, parent, ok, tt.parent, tt.ok)
		}
	}
}

func TestSortByRelease(t *testing.T) {
	sets := []tcg.Set{
		{ID: "a", ReleaseDate: "2023/01/01"},
		{ID: "b", ReleaseDate: "2024-06-01"},
		{ID: "c", ReleaseDate: "2023/01/01"},
	}
	SortByRelease(sets)
	assert.Equal(t, []string{"b", "a", "c"}, []string{sets[0].ID, sets[1].ID, sets[2].ID})
}
