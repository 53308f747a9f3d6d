package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/codyseavey/card-atlas/internal/models"
)

const tcgdexBaseURL = "https://api.tcgdex.net/v2/en"

const (
	tcgdexPageSize = 500
	tcgdexPageCap  = 40
	// tcgdexFilterPageCap bounds filtered listings, which are only used to
	// answer "which ids carry this type" and do not need the full catalog.
	tcgdexFilterPageCap = 10
)

// TCGdexService is the secondary provider adapter. The upstream schema is
// split: sets, a flat field-poor card list and per-card detail live behind
// separate endpoints, so catalog construction is two-phase.
type TCGdexService struct {
	client  *http.Client
	baseURL string
}

func NewTCGdexService() *TCGdexService {
	return &TCGdexService{
		client:  newProviderHTTPClient(),
		baseURL: tcgdexBaseURL,
	}
}

func (s *TCGdexService) Name() string { return "tcgdex" }

type tcgdexCardCount struct {
	Total    int `json:"total"`
	Official int `json:"official"`
}

type tcgdexSetBrief struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Logo      string          `json:"logo"`
	Symbol    string          `json:"symbol"`
	CardCount tcgdexCardCount `json:"cardCount"`
}

type tcgdexSetDetail struct {
	tcgdexSetBrief
	ReleaseDate string            `json:"releaseDate"`
	Serie       tcgdexSerie       `json:"serie"`
	Cards       []tcgdexCardBrief `json:"cards"`
}

type tcgdexSerie struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tcgdexCardBrief struct {
	ID      string `json:"id"`
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Image   string `json:"image"`
}

type tcgdexCardDetail struct {
	ID             string             `json:"id"`
	LocalID        string             `json:"localId"`
	Name           string             `json:"name"`
	Image          string             `json:"image"`
	Category       string             `json:"category"`
	Illustrator    string             `json:"illustrator"`
	Rarity         string             `json:"rarity"`
	HP             any                `json:"hp"`
	Types          []string           `json:"types"`
	EvolveFrom     string             `json:"evolveFrom"`
	Stage          string             `json:"stage"`
	Suffix         string             `json:"suffix"`
	DexIDs         []int              `json:"dexId"`
	Description    string             `json:"description"`
	Effect         string             `json:"effect"`
	Attacks        []tcgdexAttack     `json:"attacks"`
	Abilities      []tcgdexAbility    `json:"abilities"`
	Weaknesses     []tcgdexTypeValue  `json:"weaknesses"`
	Resistances    []tcgdexTypeValue  `json:"resistances"`
	Retreat        int                `json:"retreat"`
	RegulationMark string             `json:"regulationMark"`
	Legal          tcgdexLegal        `json:"legal"`
	Set            tcgdexSetBrief     `json:"set"`
	Pricing        *tcgdexCardPricing `json:"pricing"`
}

type tcgdexAttack struct {
	Cost   []string `json:"cost"`
	Name   string   `json:"name"`
	Effect string   `json:"effect"`
	Damage any      `json:"damage"` // printed as a number or as "30+"
}

type tcgdexAbility struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Effect string `json:"effect"`
}

type tcgdexTypeValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type tcgdexLegal struct {
	Standard bool `json:"standard"`
	Expanded bool `json:"expanded"`
}

type tcgdexCardPricing struct {
	TCGPlayer  *tcgdexTCGPlayerPricing `json:"tcgplayer"`
	Cardmarket map[string]float64      `json:"cardmarket"`
}

type tcgdexTCGPlayerPricing struct {
	Updated  string              `json:"updated"`
	Unit     string              `json:"unit"`
	Normal   *tcgdexPriceVariant `json:"normal"`
	Holofoil *tcgdexPriceVariant `json:"holofoil"`
	Reverse  *tcgdexPriceVariant `json:"reverse-holofoil"`
}

type tcgdexPriceVariant struct {
	LowPrice       float64 `json:"lowPrice"`
	MidPrice       float64 `json:"midPrice"`
	HighPrice      float64 `json:"highPrice"`
	MarketPrice    float64 `json:"marketPrice"`
	DirectLowPrice float64 `json:"directLowPrice"`
}

// tcgdexCardmarketSynonyms is this provider's ordered synonym table for its
// cardmarket rolling-average object.
var tcgdexCardmarketSynonyms = map[string][]string{
	"low":         {"low", "low-holo"},
	"mid":         {"avg", "avg30", "avg7", "avg1", "avg-holo", "trend"},
	"trend":       {"trend", "trend-holo"},
	"averageSell": {"avg", "avg7", "avg30"},
}

// FetchSets retrieves the full set list once, keyed by set id. The brief set
// listing carries no release date; that is filled in by per-set lookups
// where a caller needs it.
func (s *TCGdexService) FetchSets(ctx context.Context) (map[string]models.SetMetadata, error) {
	var briefs []tcgdexSetBrief
	if err := getJSON(ctx, s.client, s.Name(), "/sets", s.baseURL+"/sets", nil, &briefs); err != nil {
		return nil, err
	}

	sets := make(map[string]models.SetMetadata, len(briefs))
	for _, b := range briefs {
		sets[b.ID] = mapTCGdexSetBrief(b)
	}
	return sets, nil
}

// FetchSet retrieves one set's full metadata, including release date and
// series name.
func (s *TCGdexService) FetchSet(ctx context.Context, id string) (*models.SetMetadata, error) {
	var detail tcgdexSetDetail
	err := getJSON(ctx, s.client, s.Name(), "/sets/{id}", s.baseURL+"/sets/"+url.PathEscape(id), nil, &detail)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	meta := mapTCGdexSetBrief(detail.tcgdexSetBrief)
	meta.ReleaseDate = toISODate(detail.ReleaseDate)
	meta.Series = detail.Serie.Name
	return &meta, nil
}

func mapTCGdexSetBrief(b tcgdexSetBrief) models.SetMetadata {
	meta := models.SetMetadata{
		ID:        b.ID,
		Name:      b.Name,
		LogoURL:   validURL(tcgdexAssetURL(b.Logo, "png")),
		SymbolURL: validURL(tcgdexAssetURL(b.Symbol, "png")),
	}
	if b.CardCount.Official > 0 {
		printed := b.CardCount.Official
		meta.PrintedTotal = &printed
	}
	if b.CardCount.Total > 0 {
		total := b.CardCount.Total
		meta.Total = &total
	}
	return meta
}

// fetchCardPage returns one page of the flat card list. Rows carry only
// id, name, local number and image.
func (s *TCGdexService) fetchCardPage(ctx context.Context, page, pageSize int) ([]tcgdexCardBrief, error) {
	params := url.Values{}
	params.Set("pagination:page", fmt.Sprint(page))
	params.Set("pagination:itemsPerPage", fmt.Sprint(pageSize))

	var briefs []tcgdexCardBrief
	if err := getJSON(ctx, s.client, s.Name(), "/cards", fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode()), nil, &briefs); err != nil {
		return nil, err
	}
	return briefs, nil
}

// BulkIndex builds the catalog index in two phases: one set-list fetch, then
// the flat card list pulled as parallel pages. The unfiltered listing is
// stable and page-independent, so pages run concurrently and the merge is
// keyed by id. Each row's set is recovered by longest-prefix match of the
// card id against the known set ids.
func (s *TCGdexService) BulkIndex(ctx context.Context) ([]models.CatalogIndexEntry, error) {
	sets, err := s.FetchSets(ctx)
	if err != nil {
		return nil, err
	}

	briefs, err := fetchPagedParallel(ctx, s.fetchCardPage,
		func(b tcgdexCardBrief) string { return b.ID },
		pagedConfig{pageSize: tcgdexPageSize, pageCap: tcgdexPageCap, allowPartial: true},
	)
	if err != nil {
		return nil, err
	}

	prefixes := setIDsLongestFirst(sets)
	entries := make([]models.CatalogIndexEntry, 0, len(briefs))
	for _, b := range briefs {
		if b.ID == "" || b.Name == "" {
			continue
		}
		entry := s.mapBrief(b)
		if setID := matchSetPrefix(b.ID, prefixes); setID != "" {
			meta := sets[setID]
			entry.SetName = meta.Name
			entry.SetSeries = meta.Series
			entry.SetReleaseDate = meta.ReleaseDate
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListOnlyIndex is the degraded mode used when the set list itself is down
// but the flat card list still answers: no set metadata, no prices, and the
// supertype inferred from the display name.
func (s *TCGdexService) ListOnlyIndex(ctx context.Context) ([]models.CatalogIndexEntry, error) {
	briefs, err := fetchPagedParallel(ctx, s.fetchCardPage,
		func(b tcgdexCardBrief) string { return b.ID },
		pagedConfig{pageSize: tcgdexPageSize, pageCap: tcgdexPageCap, allowPartial: true},
	)
	if err != nil {
		return nil, err
	}

	entries := make([]models.CatalogIndexEntry, 0, len(briefs))
	for _, b := range briefs {
		if b.ID == "" || b.Name == "" {
			continue
		}
		entries = append(entries, s.mapBrief(b))
	}
	return entries, nil
}

// mapBrief fabricates an index entry from a field-poor list row.
func (s *TCGdexService) mapBrief(b tcgdexCardBrief) models.CatalogIndexEntry {
	number := b.LocalID
	if number == "" {
		if _, local, ok := strings.Cut(b.ID, "-"); ok {
			number = local
		}
	}
	return models.CatalogIndexEntry{
		ID:          b.ID,
		Name:        b.Name,
		DisplayName: normalizeText(b.Name),
		Supertype:   inferSupertype(b.Name),
		SetName:     "Unknown Set",
		Number:      number,
		ImageSmall:  validURL(tcgdexImageURL(b.Image, "low")),
		ImageLarge:  validURL(tcgdexImageURL(b.Image, "high")),
	}
}

// BulkDetails fetches full detail records restricted to the most recent
// maxSets sets. The set list is returned in release order, so the tail holds
// the newest sets. Individual card failures only remove that card.
func (s *TCGdexService) BulkDetails(ctx context.Context, maxSets int) ([]models.CardDetail, error) {
	var briefs []tcgdexSetBrief
	if err := getJSON(ctx, s.client, s.Name(), "/sets", s.baseURL+"/sets", nil, &briefs); err != nil {
		return nil, err
	}
	if maxSets > 0 && len(briefs) > maxSets {
		briefs = briefs[len(briefs)-maxSets:]
	}

	var details []models.CardDetail
	for _, sb := range briefs {
		var setDetail tcgdexSetDetail
		if err := getJSON(ctx, s.client, s.Name(), "/sets/{id}", s.baseURL+"/sets/"+url.PathEscape(sb.ID), nil, &setDetail); err != nil {
			continue
		}
		for _, cb := range setDetail.Cards {
			detail, err := s.FetchDetail(ctx, cb.ID)
			if err != nil || detail == nil {
				continue
			}
			details = append(details, *detail)
		}
	}
	if len(details) == 0 {
		return nil, &ProviderError{Provider: s.Name(), Endpoint: "/sets/{id}", Err: fmt.Errorf("no detail records could be fetched from %d sets", len(briefs))}
	}
	return details, nil
}

// FetchIndexPage adapts the flat list to the shared provider contract.
func (s *TCGdexService) FetchIndexPage(ctx context.Context, page, pageSize int) ([]models.CatalogIndexEntry, error) {
	briefs, err := s.fetchCardPage(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	entries := make([]models.CatalogIndexEntry, 0, len(briefs))
	for _, b := range briefs {
		if b.ID == "" || b.Name == "" {
			continue
		}
		entries = append(entries, s.mapBrief(b))
	}
	return entries, nil
}

// FetchDetail returns a single card with full battle data and pricing, or
// (nil, nil) when the id is unknown upstream. Set metadata is enriched with
// a best-effort per-set lookup; its failure never fails the card.
func (s *TCGdexService) FetchDetail(ctx context.Context, id string) (*models.CardDetail, error) {
	var raw tcgdexCardDetail
	err := getJSON(ctx, s.client, s.Name(), "/cards/{id}", s.baseURL+"/cards/"+url.PathEscape(id), nil, &raw)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	detail := s.mapDetail(raw)
	if raw.Set.ID != "" {
		if meta, err := s.FetchSet(ctx, raw.Set.ID); err == nil && meta != nil {
			detail.SetSeries = meta.Series
			detail.SetReleaseDate = meta.ReleaseDate
		}
	}
	return &detail, nil
}

// FetchTypes returns the provider's type facet list.
func (s *TCGdexService) FetchTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := getJSON(ctx, s.client, s.Name(), "/types", s.baseURL+"/types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// FetchIDsByType returns the ids of cards carrying the given type, through
// the filtered flat listing under a bounded page cap.
func (s *TCGdexService) FetchIDsByType(ctx context.Context, cardType string) ([]string, error) {
	fetch := func(ctx context.Context, page, pageSize int) ([]tcgdexCardBrief, error) {
		params := url.Values{}
		params.Set("types", cardType)
		params.Set("pagination:page", fmt.Sprint(page))
		params.Set("pagination:itemsPerPage", fmt.Sprint(pageSize))

		var briefs []tcgdexCardBrief
		if err := getJSON(ctx, s.client, s.Name(), "/cards", fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode()), nil, &briefs); err != nil {
			return nil, err
		}
		return briefs, nil
	}

	briefs, err := fetchPaged(ctx, fetch,
		func(b tcgdexCardBrief) string { return b.ID },
		nil,
		pagedConfig{pageSize: tcgdexPageSize, pageCap: tcgdexFilterPageCap},
	)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(briefs))
	for _, b := range briefs {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (s *TCGdexService) mapDetail(raw tcgdexCardDetail) models.CardDetail {
	d := models.CardDetail{
		ID:                 raw.ID,
		Name:               raw.Name,
		DisplayName:        normalizeText(raw.Name),
		Supertype:          mapPTCGSupertype(raw.Category),
		Subtypes:           tcgdexSubtypes(raw.Stage, raw.Suffix),
		HP:                 toNullableNumber(raw.HP),
		Types:              raw.Types,
		SetName:            raw.Set.Name,
		Rarity:             raw.Rarity,
		Artist:             raw.Illustrator,
		NationalDexNumbers: raw.DexIDs,
		ImageSmall:         validURL(tcgdexImageURL(raw.Image, "low")),
		ImageLarge:         validURL(tcgdexImageURL(raw.Image, "high")),
		Number:             raw.LocalID,
		RegulationMark:     raw.RegulationMark,
		Stage:              raw.Stage,
		EvolvesFrom:        raw.EvolveFrom,
		FlavorText:         raw.Description,
		RetreatCost:        toRetreatCost(raw.Retreat),
		LegalityStandard:   toLegality(raw.Legal.Standard),
		LegalityExpanded:   toLegality(raw.Legal.Expanded),
		LegalityUnlimited:  models.LegalityUnknown,
		SetLogoURL:         validURL(tcgdexAssetURL(raw.Set.Logo, "png")),
		SetSymbolURL:       validURL(tcgdexAssetURL(raw.Set.Symbol, "png")),
	}

	if raw.Effect != "" {
		d.Rules = []string{raw.Effect}
	}
	if raw.Retreat > 0 {
		crc := len(d.RetreatCost)
		d.ConvertedRetreatCost = &crc
	}
	if raw.Set.CardCount.Official > 0 {
		printed := raw.Set.CardCount.Official
		d.SetPrintedTotal = &printed
	}
	if raw.Set.CardCount.Total > 0 {
		total := raw.Set.CardCount.Total
		d.SetTotal = &total
	}

	for _, a := range raw.Abilities {
		d.Abilities = append(d.Abilities, models.AbilityEntry{Name: a.Name, Type: a.Type, Text: a.Effect})
	}
	for _, a := range raw.Attacks {
		entry := models.AttackEntry{Name: a.Name, Cost: a.Cost, Damage: damageString(a.Damage), Text: a.Effect}
		if len(a.Cost) > 0 {
			cec := len(a.Cost)
			entry.ConvertedEnergyCost = &cec
		}
		d.Attacks = append(d.Attacks, entry)
	}
	for _, w := range raw.Weaknesses {
		d.Weaknesses = append(d.Weaknesses, models.TypeValue{Type: w.Type, Value: w.Value})
	}
	for _, r := range raw.Resistances {
		d.Resistances = append(d.Resistances, models.TypeValue{Type: r.Type, Value: r.Value})
	}

	var tcgplayerSnaps, cardmarketSnaps []models.PriceSnapshot
	if raw.Pricing != nil {
		if tp := raw.Pricing.TCGPlayer; tp != nil {
			d.MarketLastUpdatedAt = toISODate(tp.Updated)
			if snap := tcgdexVariantSnapshot(tp); snap != nil {
				tcgplayerSnaps = append(tcgplayerSnaps, *snap)
			}
		}
		if snap := flatSnapshot(raw.Pricing.Cardmarket, models.MarketplaceCardmarket, models.MarketSourceTCGdex, tcgdexCardmarketSynonyms); snap != nil {
			cardmarketSnaps = append(cardmarketSnaps, *snap)
		}
	}
	finalizePrices(&d, tcgplayerSnaps, cardmarketSnaps)

	return d
}

// tcgdexVariantSnapshot selects one treatment by fixed priority, holofoil
// first, and maps its fields into a snapshot.
func tcgdexVariantSnapshot(tp *tcgdexTCGPlayerPricing) *models.PriceSnapshot {
	var variant *tcgdexPriceVariant
	for _, v := range []*tcgdexPriceVariant{tp.Holofoil, tp.Normal, tp.Reverse} {
		if v != nil {
			variant = v
			break
		}
	}
	if variant == nil {
		return nil
	}

	snap := models.PriceSnapshot{
		Market:      models.MarketplaceTCGPlayer,
		Source:      models.MarketSourceTCGdex,
		Low:         toMarketNumber(variant.LowPrice),
		Mid:         toMarketNumber(variant.MidPrice),
		High:        toMarketNumber(variant.HighPrice),
		Trend:       toMarketNumber(variant.MarketPrice),
		AverageSell: toMarketNumber(variant.DirectLowPrice),
	}
	if snap.Low == nil && snap.Mid == nil && snap.High == nil && snap.Trend == nil && snap.AverageSell == nil {
		return nil
	}
	return &snap
}

func tcgdexSubtypes(stage, suffix string) []string {
	var subtypes []string
	if stage != "" {
		subtypes = append(subtypes, stage)
	}
	if suffix != "" {
		subtypes = append(subtypes, suffix)
	}
	return subtypes
}

// damageString normalizes tcgdex attack damage, which is printed either as a
// bare number or as a modifier string like "30+".
func damageString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	}
	return ""
}

// tcgdexAssetURL appends the extension the provider expects on its bare
// logo/symbol URLs.
func tcgdexAssetURL(base, ext string) string {
	if base == "" {
		return ""
	}
	return base + "." + ext
}

// tcgdexImageURL appends the quality segment the provider expects on its
// bare card image URLs.
func tcgdexImageURL(base, quality string) string {
	if base == "" {
		return ""
	}
	return base + "/" + quality + ".webp"
}

// setIDsLongestFirst returns the known set ids sorted longest first so that
// prefix matching never stops at an ambiguous short prefix ("swsh1" must not
// claim a "swsh12.5" card).
func setIDsLongestFirst(sets map[string]models.SetMetadata) []string {
	ids := make([]string, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// matchSetPrefix recovers a card's set id by longest-prefix match of the
// card id against the known set ids.
func matchSetPrefix(cardID string, idsLongestFirst []string) string {
	for _, setID := range idsLongestFirst {
		if strings.HasPrefix(cardID, setID+"-") {
			return setID
		}
	}
	return ""
}
