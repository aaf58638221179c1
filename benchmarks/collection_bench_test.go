// Package benchmarks measures the pure collection and catalog engines on
// collection-sized inputs.
//
// To run:
//
//	go test -bench=. -benchmem ./benchmarks/...
//
// To compare two builds:
//
//	go install golang.org/x/perf/cmd/benchstat@latest
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > old.txt
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > new.txt
//	benchstat old.txt new.txt
package benchmarks

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/progress"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/tcg/gallery"
	"github.com/vaultestim/vaultestim/internal/tcg/versions"
)

var rarities = []string{"Common", "Uncommon", "Rare", "Double Rare", "Illustration Rare", "Special Illustration Rare"}

var rowVersions = []string{"Normale", "Reverse Holo", "Holo", "normale", " Reverse Holo"}

func makeCards(setID string, n int) []tcg.Card {
	cards := make([]tcg.Card, n)
	for i := range cards {
		cards[i] = tcg.Card{
			ID:     fmt.Sprintf("%s-%d", setID, i+1),
			Name:   fmt.Sprintf("Card %d", i+1),
			Number: fmt.Sprintf("%d", i+1),
			Rarity: rarities[i%len(rarities)],
			Set:    tcg.SetRef{ID: setID, Name: setID, ReleaseDate: "2023/03/31"},
		}
	}
	return cards
}

// makeRows builds n rows over cards, one in four repeating an earlier key.
func makeRows(cards []tcg.Card, n int) []collection.Entry {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]collection.Entry, n)
	for i := range rows {
		c := cards[(i*7)%len(cards)]
		rows[i] = collection.Entry{
			ID:        fmt.Sprintf("row-%d", i),
			UserID:    "bench",
			CardID:    c.ID,
			Version:   rowVersions[i%len(rowVersions)],
			Quantity:  1 + i%3,
			Condition: "Neuf",
			DateAdded: t0.Add(time.Duration(i) * time.Minute),
		}
	}
	return rows
}

func makeSets(n int) []tcg.Set {
	var sets []tcg.Set
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("swsh%d", i+1)
		sets = append(sets,
			tcg.Set{ID: id, Name: id, ReleaseDate: "2022/02/25", Cards: makeCards(id, 180)},
			tcg.Set{ID: id + "tg", Name: id + " Trainer Gallery", ReleaseDate: "2022/02/25", Cards: makeCards(id+"tg", 30)},
		)
	}
	return sets
}

func BenchmarkGroupForDisplay(b *testing.B) {
	rows := makeRows(makeCards("sv1", 250), 5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = collection.GroupForDisplay(rows)
	}
}

func BenchmarkFindDuplicates(b *testing.B) {
	rows := makeRows(makeCards("sv1", 250), 5000)
	for _, mode := range []collection.Mode{collection.ModeRows, collection.ModeQuantity} {
		b.Run(mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = collection.Groups(rows, mode)
			}
		})
	}
}

func BenchmarkPlanMerge(b *testing.B) {
	rows := makeRows(makeCards("sv1", 250), 5000)
	dups := collection.FindDuplicates(rows, collection.ModeRows)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, group := range dups {
			if _, err := collection.PlanMerge(group); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkProgressCompute(b *testing.B) {
	cards := makeCards("sv1", 250)
	rows := makeRows(cards, 5000)
	r := versions.Default()
	for _, mode := range []progress.Mode{progress.Base, progress.Masterset} {
		b.Run(mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = progress.Compute("sv1", rows, cards, mode, r)
			}
		})
	}
}

func BenchmarkGalleryMerge(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		sets := makeSets(40)
		b.StartTimer()
		_ = gallery.Merge(sets)
	}
}

// BenchmarkGalleryMerge_GC reports GC cycles for a full catalog merge.
func BenchmarkGalleryMerge_GC(b *testing.B) {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = gallery.Merge(makeSets(40))
	}

	b.StopTimer()
	runtime.ReadMemStats(&after)
	b.ReportMetric(float64(after.NumGC-before.NumGC)/float64(b.N), "gc/op")
}
