package collection

import "github.com/vaultestim/vaultestim/internal/tcg"

// conditionRanks orders conditions from worst (0) to best. French labels are
// what the app stores; English ones come from imports.
var conditionRanks = map[string]int{
	"endommage":        1,
	"damaged":          1,
	"mauvais etat":     2,
	"poor":             2,
	"acceptable":       2,
	"joue":             3,
	"played":           3,
	"moyennement joue": 3,
	"legerement joue":  4,
	"light played":     4,
	"lightly played":   4,
	"bon":              5,
	"good":             5,
	"excellent":        6,
	"proche du neuf":   7,
	"near mint":        7,
	"neuf":             8,
	"mint":             8,
}

// ConditionRank returns how good a condition is. Blank and unknown
// conditions rank 0, below every known one.
func ConditionRank(condition string) int {
	return conditionRanks[tcg.Fold(condition)]
}
