package services

import (
	"testing"

	"github.com/codyseavey/card-atlas/internal/models"
)

func TestMergeSnapshotsPreservesOrder(t *testing.T) {
	a := []models.PriceSnapshot{{Market: models.MarketplaceTCGPlayer}}
	b := []models.PriceSnapshot{{Market: models.MarketplaceCardmarket}}

	merged := mergeSnapshots(a, b)
	if len(merged) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(merged))
	}
	if merged[0].Market != models.MarketplaceTCGPlayer || merged[1].Market != models.MarketplaceCardmarket {
		t.Error("merge must preserve append order")
	}

	if got := mergeSnapshots(nil, nil); len(got) != 0 {
		t.Errorf("merging empty groups should be empty, got %d", len(got))
	}
}

func TestResolvePrimaryPrice(t *testing.T) {
	mid := 4.5
	trend := 5.05
	low := 1.49

	tests := []struct {
		name       string
		snapshots  []models.PriceSnapshot
		expected   *float64
		wantSource models.MarketSource
	}{
		{
			name:      "no snapshots",
			snapshots: nil,
			expected:  nil,
		},
		{
			name: "mid preferred over trend",
			snapshots: []models.PriceSnapshot{
				{Source: models.MarketSourcePokemonTCG, Mid: &mid, Trend: &trend},
			},
			expected:   &mid,
			wantSource: models.MarketSourcePokemonTCG,
		},
		{
			name: "falls through field order within one snapshot",
			snapshots: []models.PriceSnapshot{
				{Source: models.MarketSourceTCGdex, Low: &low},
			},
			expected:   &low,
			wantSource: models.MarketSourceTCGdex,
		},
		{
			name: "first snapshot with any value wins over a later richer one",
			snapshots: []models.PriceSnapshot{
				{Source: models.MarketSourcePokemonTCG, Low: &low},
				{Source: models.MarketSourceTCGdex, Mid: &mid, Trend: &trend},
			},
			expected:   &low,
			wantSource: models.MarketSourcePokemonTCG,
		},
		{
			name: "empty first snapshot is skipped",
			snapshots: []models.PriceSnapshot{
				{Source: models.MarketSourcePokemonTCG},
				{Source: models.MarketSourceTCGdex, Trend: &trend},
			},
			expected:   &trend,
			wantSource: models.MarketSourceTCGdex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, source := resolvePrimaryPrice(tt.snapshots)
			if !floatPtrEqual(price, tt.expected) {
				t.Errorf("price = %v, want %v", fmtFloatPtr(price), fmtFloatPtr(tt.expected))
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
		})
	}
}

// The resolved price must always be a value present verbatim inside one of
// the snapshots.
func TestResolvePrimaryPriceInvariant(t *testing.T) {
	mid := 3.38
	trend := 3.21
	avg := 3.1
	snaps := []models.PriceSnapshot{
		{Source: models.MarketSourcePokemonTCG, Mid: &mid},
		{Source: models.MarketSourcePokemonTCG, Trend: &trend, AverageSell: &avg},
	}

	price, _ := resolvePrimaryPrice(snaps)
	if price == nil {
		t.Fatal("expected a resolved price")
	}
	found := false
	for _, s := range snaps {
		for _, f := range []*float64{s.Low, s.Mid, s.High, s.Trend, s.AverageSell} {
			if f != nil && *f == *price {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("resolved price %v is not present in any snapshot", *price)
	}
}

func TestFinalizePrices(t *testing.T) {
	mid := 2.2
	d := models.CardDetail{ID: "x-1"}
	finalizePrices(&d,
		[]models.PriceSnapshot{{Market: models.MarketplaceTCGPlayer, Source: models.MarketSourceTCGdex, Mid: &mid}},
		nil,
	)
	if len(d.PriceSnapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(d.PriceSnapshots))
	}
	if d.MarketPrice == nil || *d.MarketPrice != mid {
		t.Errorf("market price = %v, want %v", fmtFloatPtr(d.MarketPrice), mid)
	}
	if d.MarketSource != models.MarketSourceTCGdex {
		t.Errorf("market source = %s, want %s", d.MarketSource, models.MarketSourceTCGdex)
	}
}

func TestFlatSnapshot(t *testing.T) {
	synonyms := map[string][]string{
		"low":         {"lowPrice"},
		"mid":         {"averageSellPrice", "avg30", "trendPrice"},
		"high":        {"suggestedPrice"},
		"trend":       {"trendPrice"},
		"averageSell": {"averageSellPrice"},
	}

	t.Run("synonym order", func(t *testing.T) {
		prices := map[string]float64{
			"avg30":      2.0,
			"trendPrice": 3.0,
		}
		snap := flatSnapshot(prices, models.MarketplaceCardmarket, models.MarketSourcePokemonTCG, synonyms)
		if snap == nil {
			t.Fatal("expected a snapshot")
		}
		if snap.Mid == nil || *snap.Mid != 2.0 {
			t.Errorf("mid should come from avg30 (first present synonym), got %v", fmtFloatPtr(snap.Mid))
		}
		if snap.Trend == nil || *snap.Trend != 3.0 {
			t.Errorf("trend = %v, want 3.0", fmtFloatPtr(snap.Trend))
		}
		if snap.Low != nil || snap.High != nil {
			t.Error("fields without source data must stay nil")
		}
	})

	t.Run("nothing resolves", func(t *testing.T) {
		prices := map[string]float64{"lowPrice": 0, "unrelated": 9.9}
		if snap := flatSnapshot(prices, models.MarketplaceCardmarket, models.MarketSourcePokemonTCG, synonyms); snap != nil {
			t.Errorf("expected nil snapshot, got %+v", snap)
		}
	})

	t.Run("empty map", func(t *testing.T) {
		if snap := flatSnapshot(nil, models.MarketplaceCardmarket, models.MarketSourcePokemonTCG, synonyms); snap != nil {
			t.Error("expected nil snapshot for empty prices")
		}
	})
}
