// Package tcg holds the canonical Pokémon TCG catalog records shared by the
// resolver, the gallery merger, the local cache and the progress calculator.
package tcg

// Card is a catalog entry.
type Card struct {
	// Globally unique catalog key, e.g. "sv8-123". Never reused.
	ID string `json:"id"`

	Name string `json:"name"`

	// Printed collector number. May be zero-padded or non-numeric ("TG05").
	Number string `json:"number"`

	// Free-text classification, e.g. "Illustration Rare".
	Rarity string `json:"rarity"`

	Set SetRef `json:"set"`

	// Whether a cosmic-foil print variant exists for this card.
	HasCosmosHolo bool `json:"hasCosmosHolo"`

	Images Images `json:"images,omitempty"`
}

// SetRef is the set reference embedded in every card.
type SetRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Series      string `json:"series"`
	ReleaseDate string `json:"releaseDate"` // "2006-01-02" or "2006/01/02"
}

// Images holds card artwork URLs.
type Images struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// Set is a logical release group with its attached cards.
type Set struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Series      string `json:"series"`
	ReleaseDate string `json:"releaseDate"`

	// Printed card total as reported by the catalog (0 when unknown).
	Total int `json:"total,omitempty"`

	Cards []Card `json:"cards,omitempty"`
}

// Ref returns the SetRef describing s.
func (s Set) Ref() SetRef {
	return SetRef{ID: s.ID, Name: s.Name, Series: s.Series, ReleaseDate: s.ReleaseDate}
}

// CardIDs returns the ids of the set's cards in order.
func (s Set) CardIDs() []string {
	ids := make([]string, 0, len(s.Cards))
	for _, c := range s.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

// Clone returns a copy of s whose Cards slice does not alias the original.
func (s Set) Clone() Set {
	out := s
	if s.Cards != nil {
		out.Cards = append([]Card(nil), s.Cards...)
	}
	return out
}
