package vault

import (
	"context"
	"sort"
	"sync"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/tcg"
)

type fakeCatalog struct {
	sets []tcg.Set
}

func (f *fakeCatalog) Sets(context.Context) ([]tcg.Set, error) { return f.sets, nil }

func (f *fakeCatalog) GetCardsBySet(_ context.Context, setID string) ([]tcg.Card, error) {
	for _, s := range f.sets {
		if s.ID == setID {
			return s.Cards, nil
		}
	}
	return nil, apperr.Errorf(apperr.NotFound, "fake", "set %s", setID)
}

func (f *fakeCatalog) FindCard(_ context.Context, cardID string) (tcg.Card, error) {
	for _, s := range f.sets {
		for _, c := range s.Cards {
			if c.ID == cardID {
				return c, nil
			}
		}
	}
	return tcg.Card{}, apperr.Errorf(apperr.NotFound, "fake", "card %s", cardID)
}

func (f *fakeCatalog) RefreshSet(context.Context, string) error { return nil }

func (f *fakeCatalog) Stats(context.Context) (cardcache.Stats, error) {
	return cardcache.Stats{CacheVersion: cardcache.CurrentVersion, SetCount: len(f.sets)}, nil
}

type memCollection struct {
	mu     sync.Mutex
	rows   map[string]collection.Entry
	merges int
}

func newMemCollection(rows ...collection.Entry) *memCollection {
	m := &memCollection{rows: map[string]collection.Entry{}}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memCollection) ListByUser(_ context.Context, userID string) ([]collection.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []collection.Entry{}
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCollection) Get(_ context.Context, userID, id string) (collection.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return collection.Entry{}, apperr.Errorf(apperr.NotFound, "fake", "entry %s", id)
	}
	return r, nil
}

func (m *memCollection) Insert(_ context.Context, e collection.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.ID] = e
	return nil
}

func (m *memCollection) Update(_ context.Context, e collection.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return apperr.Errorf(apperr.NotFound, "fake", "entry %s", e.ID)
	}
	m.rows[e.ID] = e
	return nil
}

func (m *memCollection) AdjustQuantity(_ context.Context, userID, id string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return 0, apperr.Errorf(apperr.NotFound, "fake", "entry %s", id)
	}
	r.Quantity += delta
	if r.Quantity <= 0 {
		delete(m.rows, id)
		return 0, nil
	}
	m.rows[id] = r
	return r.Quantity, nil
}

func (m *memCollection) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; !ok || r.UserID != userID {
		return apperr.Errorf(apperr.NotFound, "fake", "entry %s", id)
	}
	delete(m.rows, id)
	return nil
}

func (m *memCollection) ListUserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, r := range m.rows {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memCollection) ApplyMerge(_ context.Context, plan collection.MergePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merges++
	m.rows[plan.Keep.ID] = plan.Keep
	for _, id := range plan.Remove {
		delete(m.rows, id)
	}
	return nil
}

type fixedProvider struct{}

func (fixedProvider) Name() string     { return "fixed" }
func (fixedProvider) Currency() string { return "EUR" }

func (fixedProvider) Price(_ context.Context, card tcg.Card, version string) (prices.Price, error) {
	return prices.Price{CardID: card.ID, Version: version, Amount: 1.5, Currency: "EUR", Source: "fixed"}, nil
}

type memPrices struct {
	mu    sync.Mutex
	saved map[string]prices.Price
}

func (m *memPrices) SavePrice(_ context.Context, p prices.Price) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]prices.Price{}
	}
	m.saved[p.CardID+"|"+p.Version] = p
	return nil
}

func (m *memPrices) Latest(_ context.Context, cardID, version string) (prices.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.saved[cardID+"|"+version]
	if !ok {
		return prices.Price{}, apperr.Errorf(apperr.NotFound, "fake", "no price")
	}
	return p, nil
}

func testCatalog() *fakeCatalog {
	ref := tcg.SetRef{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023-03-31"}
	ref2 := tcg.SetRef{ID: "sv2", Name: "Paldea Evolved", ReleaseDate: "2023-06-09"}
	return &fakeCatalog{sets: []tcg.Set{
		{ID: "sv2", Name: ref2.Name, ReleaseDate: ref2.ReleaseDate, Cards: []tcg.Card{
			{ID: "sv2-1", Name: "Pichu", Number: "1", Rarity: "Common", Set: ref2},
		}},
		{ID: "sv1", Name: ref.Name, ReleaseDate: ref.ReleaseDate, Total: 2, Cards: []tcg.Card{
			{ID: "sv1-1", Name: "Sprigatito", Number: "1", Rarity: "Common", Set: ref},
			{ID: "sv1-2", Name: "Pikachu ex", Number: "2", Rarity: "Double Rare", Set: ref},
		}},
	}}
}
