package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codyseavey/card-atlas/internal/models"
)

func newTestTCGdex(srv *httptest.Server) *TCGdexService {
	s := NewTCGdexService()
	s.baseURL = srv.URL
	s.client = srv.Client()
	return s
}

const tcgdexSetsFixture = `[
	{"id": "base1", "name": "Base Set", "logo": "https://assets.tcgdex.net/en/base/base1/logo", "cardCount": {"total": 102, "official": 102}},
	{"id": "swsh1", "name": "Sword & Shield", "cardCount": {"total": 216, "official": 202}},
	{"id": "swsh12.5", "name": "Crown Zenith", "cardCount": {"total": 160, "official": 159}}
]`

const tcgdexCardListFixture = `[
	{"id": "base1-4", "localId": "4", "name": "Charizard", "image": "https://assets.tcgdex.net/en/base/base1/4"},
	{"id": "swsh12.5-1", "localId": "1", "name": "Venusaur V", "image": "https://assets.tcgdex.net/en/swsh/swsh12.5/1"},
	{"id": "swsh1-65", "localId": "65", "name": "Lapras VMAX"},
	{"id": "", "name": "corrupt row"},
	{"id": "xy1-1", "name": "Fire Energy"}
]`

func tcgdexListServer(t *testing.T, failSets bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sets":
			if failSets {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(tcgdexSetsFixture))
		case "/cards":
			if r.URL.Query().Get("pagination:page") == "1" {
				w.Write([]byte(tcgdexCardListFixture))
				return
			}
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestTCGdexBulkIndex(t *testing.T) {
	srv := tcgdexListServer(t, false)
	defer srv.Close()

	svc := newTestTCGdex(srv)
	entries, err := svc.BulkIndex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The empty-id row is dropped.
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	byID := map[string]models.CatalogIndexEntry{}
	for _, e := range entries {
		byID[e.ID] = e
	}

	if e := byID["base1-4"]; e.SetName != "Base Set" || e.Number != "4" {
		t.Errorf("base1-4 set merge wrong: %+v", e)
	}
	// Longest-prefix match: a swsh12.5 card must not be claimed by swsh1.
	if e := byID["swsh12.5-1"]; e.SetName != "Crown Zenith" {
		t.Errorf("swsh12.5-1 matched the wrong set: %q", e.SetName)
	}
	if e := byID["swsh1-65"]; e.SetName != "Sword & Shield" {
		t.Errorf("swsh1-65 set merge wrong: %q", e.SetName)
	}
	// No known set prefix: the placeholder stays.
	if e := byID["xy1-1"]; e.SetName != "Unknown Set" {
		t.Errorf("xy1-1 should keep the placeholder set, got %q", e.SetName)
	}
	// Card images get the quality segment appended.
	if e := byID["base1-4"]; e.ImageSmall != "https://assets.tcgdex.net/en/base/base1/4/low.webp" {
		t.Errorf("image small = %q", e.ImageSmall)
	}
}

func TestTCGdexListOnlyIndex(t *testing.T) {
	srv := tcgdexListServer(t, true)
	defer srv.Close()

	svc := newTestTCGdex(srv)

	// The set list is down, so the two-phase mode fails.
	if _, err := svc.BulkIndex(context.Background()); err == nil {
		t.Fatal("BulkIndex should fail when the set list is down")
	}

	// List-only mode still answers, with inferred supertypes and no sets.
	entries, err := svc.ListOnlyIndex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	byID := map[string]models.CatalogIndexEntry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	if e := byID["xy1-1"]; e.Supertype != models.SupertypeEnergy {
		t.Errorf("Fire Energy should infer Energy, got %s", e.Supertype)
	}
	if e := byID["base1-4"]; e.Supertype != models.SupertypePokemon || e.SetName != "Unknown Set" {
		t.Errorf("list-only entry wrong: %+v", e)
	}
	if e := byID["base1-4"]; e.MarketPrice != nil {
		t.Error("list-only mode carries no price data")
	}
}

const tcgdexDetailFixture = `{
	"id": "swsh1-65",
	"localId": "65",
	"name": "Lapras VMAX",
	"image": "https://assets.tcgdex.net/en/swsh/swsh1/65",
	"category": "Pokemon",
	"illustrator": "aky CG Works",
	"rarity": "Rare Holo VMAX",
	"hp": 320,
	"types": ["Water"],
	"evolveFrom": "Lapras V",
	"stage": "VMAX",
	"dexId": [131],
	"effect": "VMAX rule text",
	"attacks": [
		{"cost": ["Water", "Water", "Colorless"], "name": "G-Max Pump", "effect": "...", "damage": "90+"},
		{"cost": ["Water"], "name": "Splash", "damage": 20}
	],
	"weaknesses": [{"type": "Metal", "value": "x2"}],
	"retreat": 3,
	"regulationMark": "D",
	"legal": {"standard": false, "expanded": true},
	"set": {"id": "swsh1", "name": "Sword & Shield", "cardCount": {"total": 216, "official": 202}},
	"pricing": {
		"tcgplayer": {
			"updated": "2024-11-02",
			"unit": "USD",
			"normal": {"lowPrice": 2.0, "midPrice": 3.38, "highPrice": 14.99, "marketPrice": 3.47}
		},
		"cardmarket": {"avg": 3.1, "low": 1.75, "trend": 3.21}
	}
}`

func TestTCGdexFetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/cards/swsh1-65":
			w.Write([]byte(tcgdexDetailFixture))
		case "/sets/swsh1":
			w.Write([]byte(`{"id": "swsh1", "name": "Sword & Shield", "releaseDate": "2020-02-07", "serie": {"id": "swsh", "name": "Sword & Shield"}, "cardCount": {"total": 216, "official": 202}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc := newTestTCGdex(srv)
	card, err := svc.FetchDetail(context.Background(), "swsh1-65")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card == nil {
		t.Fatal("expected a card")
	}

	if card.Supertype != models.SupertypePokemon {
		t.Errorf("supertype = %s", card.Supertype)
	}
	if card.HP == nil || *card.HP != 320 {
		t.Errorf("hp = %v, want 320 from a numeric field", fmtIntPtr(card.HP))
	}
	if len(card.RetreatCost) != 3 || card.ConvertedRetreatCost == nil || *card.ConvertedRetreatCost != 3 {
		t.Errorf("retreat cost expansion wrong: %v / %v", card.RetreatCost, fmtIntPtr(card.ConvertedRetreatCost))
	}
	if card.LegalityStandard != models.LegalityNotLegal || card.LegalityExpanded != models.LegalityLegal {
		t.Errorf("legalities = %s/%s", card.LegalityStandard, card.LegalityExpanded)
	}
	if card.LegalityUnlimited != models.LegalityUnknown {
		t.Errorf("unlimited legality should stay unknown, got %s", card.LegalityUnlimited)
	}
	if len(card.Rules) != 1 || card.Rules[0] != "VMAX rule text" {
		t.Errorf("rules = %v", card.Rules)
	}
	if len(card.Attacks) != 2 {
		t.Fatalf("expected 2 attacks, got %d", len(card.Attacks))
	}
	if card.Attacks[0].Damage != "90+" || card.Attacks[1].Damage != "20" {
		t.Errorf("damage normalization wrong: %q / %q", card.Attacks[0].Damage, card.Attacks[1].Damage)
	}
	if card.Attacks[0].ConvertedEnergyCost == nil || *card.Attacks[0].ConvertedEnergyCost != 3 {
		t.Errorf("converted energy cost should derive from the cost list")
	}

	// Best-effort set enrichment.
	if card.SetReleaseDate != "2020-02-07" || card.SetSeries != "Sword & Shield" {
		t.Errorf("set enrichment wrong: %q / %q", card.SetReleaseDate, card.SetSeries)
	}

	// Pricing: normal variant (only one present) plus the cardmarket object.
	if len(card.PriceSnapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(card.PriceSnapshots))
	}
	tcg := card.PriceSnapshots[0]
	if tcg.Mid == nil || *tcg.Mid != 3.38 || tcg.Trend == nil || *tcg.Trend != 3.47 {
		t.Errorf("tcgplayer snapshot wrong: %+v", tcg)
	}
	cm := card.PriceSnapshots[1]
	if cm.Mid == nil || *cm.Mid != 3.1 {
		t.Errorf("cardmarket mid should resolve from avg, got %v", fmtFloatPtr(cm.Mid))
	}
	if card.MarketPrice == nil || *card.MarketPrice != 3.38 {
		t.Errorf("market price = %v, want the first snapshot's mid", fmtFloatPtr(card.MarketPrice))
	}
	if card.MarketSource != models.MarketSourceTCGdex {
		t.Errorf("market source = %s", card.MarketSource)
	}
}

func TestTCGdexFetchDetailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := newTestTCGdex(srv)
	card, err := svc.FetchDetail(context.Background(), "missing-1")
	if err != nil {
		t.Fatalf("a 404 is a miss, not an error, got: %v", err)
	}
	if card != nil {
		t.Errorf("expected nil card, got %+v", card)
	}
}

func TestTCGdexFetchTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/types" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["Colorless", "Fire", "Water"]`))
	}))
	defer srv.Close()

	svc := newTestTCGdex(srv)
	types, err := svc.FetchTypes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 3 || types[1] != "Fire" {
		t.Errorf("types = %v", types)
	}
}

func TestTCGdexFetchIDsByType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("types") != "Water" {
			t.Errorf("missing types filter: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pagination:page") == "1" {
			w.Write([]byte(`[{"id": "swsh1-65", "name": "Lapras VMAX"}, {"id": "base1-102", "name": "Water Energy"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	svc := newTestTCGdex(srv)
	ids, err := svc.FetchIDsByType(context.Background(), "Water")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "swsh1-65" {
		t.Errorf("ids = %v", ids)
	}
}

func TestSetIDsLongestFirst(t *testing.T) {
	sets := map[string]models.SetMetadata{
		"swsh1":    {},
		"swsh12.5": {},
		"base1":    {},
	}
	ids := setIDsLongestFirst(sets)
	if ids[0] != "swsh12.5" {
		t.Errorf("longest id must come first, got %v", ids)
	}
}

func TestMatchSetPrefix(t *testing.T) {
	prefixes := []string{"swsh12.5", "base1", "swsh1"}
	tests := []struct {
		cardID   string
		expected string
	}{
		{"swsh12.5-1", "swsh12.5"},
		{"swsh1-65", "swsh1"},
		{"base1-4", "base1"},
		{"swsh12-99", ""},   // no such set
		{"base10-1", ""},    // "base1" must not claim "base10-"
		{"unknown-1", ""},
	}
	for _, tt := range tests {
		if got := matchSetPrefix(tt.cardID, prefixes); got != tt.expected {
			t.Errorf("matchSetPrefix(%q) = %q, want %q", tt.cardID, got, tt.expected)
		}
	}
}

func TestDamageString(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{"30+", "30+"},
		{float64(20), "20"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := damageString(tt.input); got != tt.expected {
			t.Errorf("damageString(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
