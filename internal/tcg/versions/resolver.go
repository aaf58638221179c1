// Package versions decides which cosmetic print variants a card may have.
//
// The rules are an ordered list evaluated first-match-wins. Order matters
// because the categories overlap lexically ("special illustration rare"
// contains "illustration rare").
package versions

import (
	"regexp"
	"slices"
	"strings"

	"github.com/vaultestim/vaultestim/internal/tcg"
)

var (
	defaultVersions = []string{Normale, ReverseHolo, Holo, HoloCosmos, Tampon}
	specialVersions = []string{Normale, ReverseHolo, ReversePokeball, ReverseMasterball, Holo, HoloCosmos, Tampon}

	// " ex" or "-ex" as a token: "Pikachu ex", "Dracaufeu-EX", not "Exeggutor".
	exToken = regexp.MustCompile(`[\s-]ex(?:$|[^\p{L}\p{N}])`)
)

// Exception pins the versions of one specific print that breaks the usual
// rarity mapping.
type Exception struct {
	// Names matched with a folded substring test; any one is enough.
	Names []string
	// Printed number, compared as a string ("057" != "57").
	Number string
	// Set ids or names, folded.
	Sets     []string
	Versions []string
}

// SpecialSet is a release whose common and uncommon cards also come in
// Poké Ball and Master Ball reverse patterns.
type SpecialSet struct {
	Name    string
	Aliases []string
}

// DefaultExceptions are the prints known to break the rarity mapping.
var DefaultExceptions = []Exception{
	{
		Names:    []string{"pikachu ex"},
		Number:   "057",
		Sets:     []string{"sv8", "Surging Sparks", "Étincelles Déferlantes"},
		Versions: []string{EX, Tampon},
	},
	{
		Names:    []string{"dracaufeu ex", "charizard ex"},
		Number:   "125",
		Sets:     []string{"sv3", "Obsidian Flames", "Flammes Obsidiennes"},
		Versions: []string{EX, Metal},
	},
}

// DefaultSpecialSets lists the three special releases with ball reverses.
var DefaultSpecialSets = []SpecialSet{
	{
		Name:    "151",
		Aliases: []string{"sv3pt5", "sv2a", "mew", "151", "Pokémon 151", "Scarlet & Violet 151", "Écarlate et Violet 151"},
	},
	{
		Name:    "Prismatic Evolutions",
		Aliases: []string{"sv8pt5", "sv8a", "pre", "Prismatic Evolutions", "Évolutions Prismatiques"},
	},
	{
		Name:    "Black Bolt / White Flare",
		Aliases: []string{"sv10pt5", "zsv10pt5", "rsv10pt5", "blk", "wht", "Black Bolt", "White Flare", "Foudre Noire", "Flamme Blanche"},
	},
}

// facts is a card pre-folded once so each rule works on cheap strings.
type facts struct {
	card    tcg.Card
	name    string
	rarity  string
	tokens  []string
	setID   string
	setName string
	number  string
}

func newFacts(card tcg.Card) facts {
	name := tcg.Fold(card.Name)
	return facts{
		card:    card,
		name:    name,
		rarity:  tcg.Fold(card.Rarity),
		tokens:  tcg.Tokens(name),
		setID:   tcg.Fold(card.Set.ID),
		setName: tcg.Fold(card.Set.Name),
		number:  strings.TrimSpace(card.Number),
	}
}

// rule is one entry of the ordered rule list.
type rule struct {
	Name  string
	Apply func(f facts) ([]string, bool)
}

// Resolver maps cards to their allowed versions. It is immutable once built
// and safe for concurrent use.
type Resolver struct {
	rules []rule
}

// Option customizes a Resolver.
type Option func(*settings)

type settings struct {
	exceptions  []Exception
	specialSets []SpecialSet
}

// WithExceptions replaces the named-print exceptions.
func WithExceptions(ex []Exception) Option {
	return func(s *settings) { s.exceptions = ex }
}

// WithSpecialSets replaces the special releases of the reverse rule.
func WithSpecialSets(sets []SpecialSet) Option {
	return func(s *settings) { s.specialSets = sets }
}

var defaultResolver = NewResolver()

// Default returns the resolver built with the default tables.
func Default() *Resolver {
	return defaultResolver
}

// NewResolver builds a resolver.
func NewResolver(opts ...Option) *Resolver {
	s := settings{
		exceptions:  DefaultExceptions,
		specialSets: DefaultSpecialSets,
	}
	for _, opt := range opts {
		opt(&s)
	}

	exceptions := foldExceptions(s.exceptions)
	special := foldSpecialSets(s.specialSets)

	return &Resolver{rules: []rule{
		{Name: "promo", Apply: func(f facts) ([]string, bool) {
			return []string{Promo}, strings.Contains(f.rarity, "promo")
		}},
		{Name: "named-exception", Apply: func(f facts) ([]string, bool) {
			for _, ex := range exceptions {
				if ex.matches(f) {
					return ex.versions, true
				}
			}
			return nil, false
		}},
		{Name: "mega-hyper-rare", Apply: func(f facts) ([]string, bool) {
			return []string{MegaHyperRare}, isMega(f.tokens) && strings.Contains(f.rarity, "hyper rare")
		}},
		{Name: "gold", Apply: func(f facts) ([]string, bool) {
			return []string{Gold}, containsAny(f.rarity, "hyper rare", "secret rare", "rainbow rare", "gold")
		}},
		{Name: "alternate-art", Apply: func(f facts) ([]string, bool) {
			return []string{AlternateArt}, containsAny(f.rarity, "special illustration rare", "alternate", "alt art", "alt-art")
		}},
		{Name: "illustration-rare", Apply: func(f facts) ([]string, bool) {
			ok := strings.Contains(f.rarity, "illustration rare") ||
				f.rarity == "rare illustration" || f.rarity == "illustration"
			return []string{AR}, ok
		}},
		{Name: "full-art", Apply: func(f facts) ([]string, bool) {
			ok := containsAny(f.rarity, "rare holo gx", "rare holo v", "full art") ||
				hasFullArtSuffix(f.tokens)
			return []string{FullArt}, ok
		}},
		{Name: "ex", Apply: func(f facts) ([]string, bool) {
			return []string{EX}, exToken.MatchString(f.name)
		}},
		{Name: "special-set-reverse", Apply: func(f facts) ([]string, bool) {
			if !isCommonOrUncommon(f.rarity) {
				return nil, false
			}
			return specialVersions, special.contains(f.setID) || special.contains(f.setName)
		}},
		{Name: "default", Apply: func(facts) ([]string, bool) {
			return defaultVersions, true
		}},
	}}
}

// Resolve returns the ordered versions a card may have. Never empty.
func (r *Resolver) Resolve(card tcg.Card) []string {
	_, versions := r.match(card)
	return versions
}

// MatchedRule returns the name of the rule that decided card's versions.
func (r *Resolver) MatchedRule(card tcg.Card) string {
	name, _ := r.match(card)
	return name
}

func (r *Resolver) match(card tcg.Card) (string, []string) {
	f := newFacts(card)
	for _, rule := range r.rules {
		if versions, ok := rule.Apply(f); ok && len(versions) > 0 {
			return rule.Name, slices.Clone(versions)
		}
	}
	return "default", slices.Clone(defaultVersions)
}

// Rules returns the rule names in evaluation order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// DefaultVersion returns the version preselected when adding card.
func (r *Resolver) DefaultVersion(card tcg.Card) string {
	if v := r.Resolve(card); len(v) > 0 {
		return v[0]
	}
	return Normale
}

// Allowed reports whether version is one of card's versions.
func (r *Resolver) Allowed(card tcg.Card, version string) bool {
	return slices.Contains(r.Resolve(card), Canonical(version))
}

// Resolve uses the default resolver.
func Resolve(card tcg.Card) []string {
	return defaultResolver.Resolve(card)
}

// DefaultVersion uses the default resolver.
func DefaultVersion(card tcg.Card) string {
	return defaultResolver.DefaultVersion(card)
}

type foldedException struct {
	names    []string
	number   string
	sets     []string
	versions []string
}

func (e foldedException) matches(f facts) bool {
	if f.number != e.number {
		return false
	}
	if !slices.ContainsFunc(e.names, func(n string) bool { return strings.Contains(f.name, n) }) {
		return false
	}
	return slices.Contains(e.sets, f.setID) || slices.Contains(e.sets, f.setName)
}

func foldExceptions(in []Exception) []foldedException {
	out := make([]foldedException, 0, len(in))
	for _, ex := range in {
		if len(ex.Versions) == 0 {
			continue
		}
		out = append(out, foldedException{
			names:    foldAll(ex.Names),
			number:   strings.TrimSpace(ex.Number),
			sets:     foldAll(ex.Sets),
			versions: slices.Clone(ex.Versions),
		})
	}
	return out
}

type specialIndex map[string]struct{}

func (s specialIndex) contains(v string) bool {
	if v == "" {
		return false
	}
	_, ok := s[v]
	return ok
}

func foldSpecialSets(sets []SpecialSet) specialIndex {
	idx := make(specialIndex)
	for _, s := range sets {
		for _, a := range s.Aliases {
			idx[tcg.Fold(a)] = struct{}{}
		}
	}
	return idx
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = tcg.Fold(s)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// isMega recognizes "Méga-Lucario ex" and the older "M Dracaufeu EX".
func isMega(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	return tokens[0] == "m" || slices.Contains(tokens, "mega")
}

// hasFullArtSuffix checks the last name token, so "V" only matches a whole
// token and never the VMAX/VSTAR tokens.
func hasFullArtSuffix(tokens []string) bool {
	if len(tokens) < 2 {
		return false
	}
	switch tokens[len(tokens)-1] {
	case "gx", "v", "vmax", "vstar":
		return true
	}
	return false
}

func isCommonOrUncommon(rarity string) bool {
	switch rarity {
	case "common", "uncommon", "commune", "peu commune":
		return true
	}
	return false
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
