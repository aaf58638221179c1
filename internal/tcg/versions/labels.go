package versions

import "github.com/vaultestim/vaultestim/internal/tcg"

// Version labels. These are the values stored in collection rows.
const (
	Normale           = "Normale"
	ReverseHolo       = "Reverse Holo"
	ReversePokeball   = "Reverse (Pokéball)"
	ReverseMasterball = "Reverse (Masterball)"
	Holo              = "Holo"
	HoloEtoile        = "Holo étoile"
	HoloCosmos        = "Holo Cosmos"
	Tampon            = "Tampon (logo extension)"
	Promo             = "Promo"
	EX                = "EX"
	Metal             = "Métal"
	FullArt           = "Full Art"
	AR                = "AR"
	AlternateArt      = "Alternate Art"
	Gold              = "Gold"
	MegaHyperRare     = "Méga Hyper Rare"
)

// priority is the display order for owned versions of one card.
var priority = []string{
	Normale,
	ReverseHolo,
	ReversePokeball,
	ReverseMasterball,
	Holo,
	HoloEtoile,
	HoloCosmos,
	Tampon,
	Promo,
	EX,
	Metal,
	FullArt,
	AR,
	AlternateArt,
	Gold,
	MegaHyperRare,
}

var (
	rankByLabel = buildRanks()
	canonical   = buildCanonical()
)

// legacy spellings found in stored rows, keyed by folded form.
var aliases = map[string]string{
	"normal":              Normale,
	"reverse":             ReverseHolo,
	"reverse pokeball":    ReversePokeball,
	"reverse poke ball":   ReversePokeball,
	"reverse masterball":  ReverseMasterball,
	"reverse master ball": ReverseMasterball,
	"tampon":              Tampon,
	"stamp":               Tampon,
	"cosmos":              HoloCosmos,
	"alt art":             AlternateArt,
	"alternative":         AlternateArt,
	"metal":               Metal,
	"mhr":                 MegaHyperRare,
}

var initials = map[string]string{
	Normale:           "N",
	ReverseHolo:       "R",
	ReversePokeball:   "RP",
	ReverseMasterball: "RM",
	Holo:              "H",
	HoloEtoile:        "HE",
	HoloCosmos:        "HC",
	Tampon:            "T",
	Promo:             "P",
	EX:                "EX",
	Metal:             "M",
	FullArt:           "FA",
	AR:                "AR",
	AlternateArt:      "AA",
	Gold:              "G",
	MegaHyperRare:     "MHR",
}

func buildRanks() map[string]int {
	m := make(map[string]int, len(priority))
	for i, label := range priority {
		m[label] = i
	}
	return m
}

func buildCanonical() map[string]string {
	m := make(map[string]string, len(priority)+len(aliases))
	for _, label := range priority {
		m[tcg.Fold(label)] = label
	}
	for folded, label := range aliases {
		m[folded] = label
	}
	return m
}

// Priority returns a copy of the display order.
func Priority() []string {
	return append([]string(nil), priority...)
}

// Canonical maps a stored version string to its label. Blank means Normale;
// unknown strings are returned trimmed.
func Canonical(version string) string {
	folded := tcg.Fold(version)
	if folded == "" {
		return Normale
	}
	if label, ok := canonical[folded]; ok {
		return label
	}
	return trimSpace(version)
}

// Rank returns the display position of a label. Unknown labels rank after
// every known one.
func Rank(version string) int {
	if r, ok := rankByLabel[Canonical(version)]; ok {
		return r
	}
	return len(priority)
}

// Known reports whether version maps to a known label.
func Known(version string) bool {
	_, ok := rankByLabel[Canonical(version)]
	return ok
}

// Initials returns the badge initials of a label ("Holo Cosmos" -> "HC").
func Initials(version string) string {
	label := Canonical(version)
	if s, ok := initials[label]; ok {
		return s
	}
	for _, r := range label {
		return string(r)
	}
	return ""
}
