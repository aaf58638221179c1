package tcg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/apperr"
)

func TestNormalize_NestedSet(t *testing.T) {
	raw := map[string]any{
		"id":     "sv8-057",
		"name":   "Pikachu ex",
		"number": "057",
		"rarity": "Double Rare",
		"set": map[string]any{
			"id":          "sv8",
			"name":        "Surging Sparks",
			"series":      "Scarlet & Violet",
			"releaseDate": "2024/11/08",
		},
		"images": map[string]any{"small": "s.png", "large": "l.png"},
	}

	card, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "sv8-057", card.ID)
	assert.Equal(t, "057", card.Number, "zero padding must be preserved")
	assert.Equal(t, SetRef{ID: "sv8", Name: "Surging Sparks", Series: "Scarlet & Violet", ReleaseDate: "2024/11/08"}, card.Set)
	assert.Equal(t, "l.png", card.Images.Large)
}

func TestNormalize_FlatAlternatives(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		wantSetID string
	}{
		{"setId", map[string]any{"id": "a-1", "setId": "sv9"}, "sv9"},
		{"set_id", map[string]any{"id": "a-1", "set_id": "sv9tg"}, "sv9tg"},
		{"derived from card id", map[string]any{"id": "swsh12pt5gg-GG01"}, "swsh12pt5gg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSetID, card.Set.ID)
		})
	}
}

func TestNormalize_SnakeCaseFields(t *testing.T) {
	card, err := Normalize(map[string]any{
		"card_id":         "sv3pt5-025",
		"name":            "Pikachu",
		"card_number":     "025",
		"has_cosmos_holo": true,
		"set_name":        "151",
		"release_date":    "2023/09/22",
	})
	require.NoError(t, err)

	assert.Equal(t, "sv3pt5-025", card.ID)
	assert.Equal(t, "025", card.Number)
	assert.True(t, card.HasCosmosHolo)
	assert.Equal(t, "sv3pt5", card.Set.ID)
	assert.Equal(t, "151", card.Set.Name)
	assert.Equal(t, "2023/09/22", card.Set.ReleaseDate)
}

func TestNormalize_MissingID(t *testing.T) {
	_, err := Normalize(map[string]any{"name": "Nameless"})
	if !apperr.Is(err, apperr.Invalid) {
		t.Fatalf("expected Invalid error, got %v", err)
	}
}

func TestNormalizeSet(t *testing.T) {
	set, err := NormalizeSet(map[string]any{
		"id":          "sv9",
		"name":        "Journey Together",
		"series":      "Scarlet & Violet",
		"releaseDate": "2025/03/28",
		"total":       float64(190),
	})
	require.NoError(t, err)
	assert.Equal(t, 190, set.Total)
	assert.Equal(t, "Journey Together", set.Ref().Name)
}

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Méga Dracaufeu-ex": "mega dracaufeu-ex",
		"  Peu Commune ":    "peu commune",
		"ÉVOLUTIONS":        "evolutions",
	}
	for in, want := range tests {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetClone_DoesNotAlias(t *testing.T) {
	s := Set{ID: "sv9", Cards: []Card{{ID: "sv9-1"}}}
	c := s.Clone()
	c.Cards[0].ID = "changed"
	if s.Cards[0].ID != "sv9-1" {
		t.Error("clone must not share the card slice")
	}
}
