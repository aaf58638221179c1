package tcg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vaultestim/vaultestim/internal/apperr"
)

// Normalize converts a loosely-typed catalog record into a canonical Card.
//
// Records come from several places (catalog API, discovered_cards rows,
// older backups) and disagree on field names. This is the only place that
// knows about the alternatives; everything downstream uses Card fields.
func Normalize(raw map[string]any) (Card, error) {
	id := firstString(raw, "id", "card_id", "cardId")
	if id == "" {
		return Card{}, apperr.Errorf(apperr.Invalid, "tcg.Normalize", "record has no id")
	}

	card := Card{
		ID:            id,
		Name:          firstString(raw, "name", "name_en"),
		Number:        firstString(raw, "number", "localId", "card_number", "collector_number"),
		Rarity:        firstString(raw, "rarity"),
		HasCosmosHolo: firstBool(raw, "hasCosmosHolo", "has_cosmos_holo"),
	}

	if set, ok := raw["set"].(map[string]any); ok {
		card.Set = normalizeSetRef(set)
	}
	if card.Set.ID == "" {
		card.Set.ID = firstString(raw, "setId", "set_id")
	}
	if card.Set.Name == "" {
		card.Set.Name = firstString(raw, "setName", "set_name", "extension")
	}
	if card.Set.Series == "" {
		card.Set.Series = firstString(raw, "series", "set_series")
	}
	if card.Set.ReleaseDate == "" {
		card.Set.ReleaseDate = firstString(raw, "releaseDate", "release_date", "set_release_date")
	}
	if card.Set.ID == "" {
		card.Set.ID = setIDFromCardID(id)
	}

	if images, ok := raw["images"].(map[string]any); ok {
		card.Images = Images{
			Small: firstString(images, "small"),
			Large: firstString(images, "large"),
		}
	} else if img := firstString(raw, "image", "image_url"); img != "" {
		card.Images = Images{Small: img, Large: img}
	}

	return card, nil
}

// NormalizeSet converts a loosely-typed set record into a Set without cards.
func NormalizeSet(raw map[string]any) (Set, error) {
	ref := normalizeSetRef(raw)
	if ref.ID == "" {
		return Set{}, apperr.Errorf(apperr.Invalid, "tcg.NormalizeSet", "record has no id")
	}
	return Set{
		ID:          ref.ID,
		Name:        ref.Name,
		Series:      ref.Series,
		ReleaseDate: ref.ReleaseDate,
		Total:       firstInt(raw, "total", "printedTotal", "card_count"),
	}, nil
}

func normalizeSetRef(raw map[string]any) SetRef {
	return SetRef{
		ID:          firstString(raw, "id", "set_id", "setId", "code"),
		Name:        firstString(raw, "name", "set_name"),
		Series:      firstString(raw, "series", "serie"),
		ReleaseDate: firstString(raw, "releaseDate", "release_date"),
	}
}

// setIDFromCardID derives "sv8" from "sv8-123". Catalog ids always use the
// last hyphen as separator ("swsh12pt5gg-GG01").
func setIDFromCardID(id string) string {
	i := strings.LastIndex(id, "-")
	if i <= 0 {
		return ""
	}
	return id[:i]
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

func firstBool(raw map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return false
}

func firstInt(raw map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}
