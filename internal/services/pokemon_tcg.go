package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/codyseavey/card-atlas/internal/models"
)

const pokemonTCGBaseURL = "https://api.pokemontcg.io/v2"

// indexSelectFields is the minimal projection requested for index pages.
// Everything the index entry derives from must be present; the heavy text
// fields (flavor text, weaknesses, legalities) are left out to save
// bandwidth on bulk listing.
const indexSelectFields = "id,name,supertype,subtypes,hp,types,evolvesFrom,rules,abilities,attacks,set,number,artist,rarity,nationalPokedexNumbers,regulationMark,images,tcgplayer,cardmarket"

// PokemonTCGService is the primary provider adapter. The upstream schema is
// rich: one record carries full battle data plus nested TCGplayer price
// variants and a flat cardmarket price object.
type PokemonTCGService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewPokemonTCGService builds the adapter. A missing API key degrades to the
// unauthenticated rate limits, it is not an error.
func NewPokemonTCGService(apiKey string) *PokemonTCGService {
	limit := rate.NewLimiter(rate.Limit(2), 4)
	if apiKey != "" {
		limit = rate.NewLimiter(rate.Limit(10), 20)
	}
	return &PokemonTCGService{
		client:  newProviderHTTPClient(),
		baseURL: pokemonTCGBaseURL,
		apiKey:  apiKey,
		limiter: limit,
	}
}

func (s *PokemonTCGService) Name() string { return "pokemontcg" }

type ptcgPagedResponse struct {
	Data       []ptcgCard `json:"data"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	Count      int        `json:"count"`
	TotalCount int        `json:"totalCount"`
}

type ptcgCard struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Supertype              string          `json:"supertype"`
	Subtypes               []string        `json:"subtypes"`
	HP                     string          `json:"hp"`
	Types                  []string        `json:"types"`
	EvolvesFrom            string          `json:"evolvesFrom"`
	Rules                  []string        `json:"rules"`
	Abilities              []ptcgAbility   `json:"abilities"`
	Attacks                []ptcgAttack    `json:"attacks"`
	Weaknesses             []ptcgTypeValue `json:"weaknesses"`
	Resistances            []ptcgTypeValue `json:"resistances"`
	RetreatCost            []string        `json:"retreatCost"`
	ConvertedRetreatCost   int             `json:"convertedRetreatCost"`
	Set                    ptcgSet         `json:"set"`
	Number                 string          `json:"number"`
	Artist                 string          `json:"artist"`
	Rarity                 string          `json:"rarity"`
	FlavorText             string          `json:"flavorText"`
	NationalPokedexNumbers []int           `json:"nationalPokedexNumbers"`
	Legalities             ptcgLegalities  `json:"legalities"`
	RegulationMark         string          `json:"regulationMark"`
	Images                 ptcgImages      `json:"images"`
	TCGPlayer              *ptcgTCGPlayer  `json:"tcgplayer"`
	Cardmarket             *ptcgCardmarket `json:"cardmarket"`
}

type ptcgAbility struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type ptcgAttack struct {
	Name                string   `json:"name"`
	Cost                []string `json:"cost"`
	ConvertedEnergyCost int      `json:"convertedEnergyCost"`
	Damage              string   `json:"damage"`
	Text                string   `json:"text"`
}

type ptcgTypeValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ptcgSet struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Series       string         `json:"series"`
	PrintedTotal int            `json:"printedTotal"`
	Total        int            `json:"total"`
	ReleaseDate  string         `json:"releaseDate"`
	Images       ptcgSetImages  `json:"images"`
}

type ptcgSetImages struct {
	Symbol string `json:"symbol"`
	Logo   string `json:"logo"`
}

type ptcgLegalities struct {
	Standard  string `json:"standard"`
	Expanded  string `json:"expanded"`
	Unlimited string `json:"unlimited"`
}

type ptcgImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type ptcgTCGPlayer struct {
	URL       string                   `json:"url"`
	UpdatedAt string                   `json:"updatedAt"`
	Prices    map[string]ptcgPriceTier `json:"prices"`
}

type ptcgPriceTier struct {
	Low       float64 `json:"low"`
	Mid       float64 `json:"mid"`
	High      float64 `json:"high"`
	Market    float64 `json:"market"`
	DirectLow float64 `json:"directLow"`
}

type ptcgCardmarket struct {
	URL       string             `json:"url"`
	UpdatedAt string             `json:"updatedAt"`
	Prices    map[string]float64 `json:"prices"`
}

func (s *PokemonTCGService) get(ctx context.Context, endpoint, rawURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &ProviderError{Provider: s.Name(), Endpoint: endpoint, Err: err}
	}
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("X-Api-Key", s.apiKey)
	}
	return getJSON(ctx, s.client, s.Name(), endpoint, rawURL, header, out)
}

// FetchIndexPage returns one field-projected page of the catalog listing.
func (s *PokemonTCGService) FetchIndexPage(ctx context.Context, page, pageSize int) ([]models.CatalogIndexEntry, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprint(page))
	params.Set("pageSize", fmt.Sprint(pageSize))
	params.Set("orderBy", "-set.releaseDate")
	params.Set("select", indexSelectFields)

	var resp ptcgPagedResponse
	if err := s.get(ctx, "/cards", fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode()), &resp); err != nil {
		return nil, err
	}

	entries := make([]models.CatalogIndexEntry, 0, len(resp.Data))
	for _, raw := range resp.Data {
		detail := s.mapCard(raw)
		entries = append(entries, detail.ProjectToIndex())
	}
	return entries, nil
}

// FetchDetailPage returns one page of full detail records, used by the
// richer browsing catalog.
func (s *PokemonTCGService) FetchDetailPage(ctx context.Context, page, pageSize int) ([]models.CardDetail, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprint(page))
	params.Set("pageSize", fmt.Sprint(pageSize))
	params.Set("orderBy", "-set.releaseDate")

	var resp ptcgPagedResponse
	if err := s.get(ctx, "/cards", fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode()), &resp); err != nil {
		return nil, err
	}

	details := make([]models.CardDetail, 0, len(resp.Data))
	for _, raw := range resp.Data {
		details = append(details, s.mapCard(raw))
	}
	return details, nil
}

// FetchDetail returns a single card, or (nil, nil) when the id is unknown
// upstream.
func (s *PokemonTCGService) FetchDetail(ctx context.Context, id string) (*models.CardDetail, error) {
	var resp struct {
		Data ptcgCard `json:"data"`
	}
	err := s.get(ctx, "/cards/{id}", fmt.Sprintf("%s/cards/%s", s.baseURL, url.PathEscape(id)), &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	detail := s.mapCard(resp.Data)
	return &detail, nil
}

// mapCard normalizes one raw record into the canonical detail shape. Index
// entries are always derived from this same mapping via ProjectToIndex, so
// the two can never diverge. Malformed optional fields degrade to nil/empty,
// they never fail the mapping.
func (s *PokemonTCGService) mapCard(raw ptcgCard) models.CardDetail {
	d := models.CardDetail{
		ID:                 raw.ID,
		Name:               raw.Name,
		DisplayName:        normalizeText(raw.Name),
		Supertype:          mapPTCGSupertype(raw.Supertype),
		Subtypes:           raw.Subtypes,
		HP:                 toNullableNumber(raw.HP),
		Types:              raw.Types,
		SetName:            raw.Set.Name,
		SetSeries:          raw.Set.Series,
		SetReleaseDate:     toISODate(raw.Set.ReleaseDate),
		Rarity:             raw.Rarity,
		Artist:             raw.Artist,
		NationalDexNumbers: raw.NationalPokedexNumbers,
		ImageSmall:         validURL(raw.Images.Small),
		ImageLarge:         validURL(raw.Images.Large),
		Number:             raw.Number,
		RegulationMark:     raw.RegulationMark,
		Stage:              stageFromSubtypes(raw.Subtypes),
		EvolvesFrom:        raw.EvolvesFrom,
		FlavorText:         raw.FlavorText,
		Rules:              raw.Rules,
		RetreatCost:        raw.RetreatCost,
		LegalityStandard:   toLegality(raw.Legalities.Standard),
		LegalityExpanded:   toLegality(raw.Legalities.Expanded),
		LegalityUnlimited:  toLegality(raw.Legalities.Unlimited),
		SetLogoURL:         validURL(raw.Set.Images.Logo),
		SetSymbolURL:       validURL(raw.Set.Images.Symbol),
	}

	if raw.Set.PrintedTotal > 0 {
		printed := raw.Set.PrintedTotal
		d.SetPrintedTotal = &printed
	}
	if raw.Set.Total > 0 {
		total := raw.Set.Total
		d.SetTotal = &total
	}
	if raw.ConvertedRetreatCost > 0 || len(raw.RetreatCost) > 0 {
		crc := raw.ConvertedRetreatCost
		d.ConvertedRetreatCost = &crc
	}

	for _, a := range raw.Abilities {
		d.Abilities = append(d.Abilities, models.AbilityEntry{Name: a.Name, Type: a.Type, Text: a.Text})
	}
	for _, a := range raw.Attacks {
		entry := models.AttackEntry{Name: a.Name, Cost: a.Cost, Damage: a.Damage, Text: a.Text}
		if a.ConvertedEnergyCost > 0 || len(a.Cost) > 0 {
			cec := a.ConvertedEnergyCost
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
	if raw.TCGPlayer != nil {
		d.TCGPlayerURL = validURL(raw.TCGPlayer.URL)
		d.MarketLastUpdatedAt = toISODate(raw.TCGPlayer.UpdatedAt)
		if snap := tcgplayerSnapshot(raw.TCGPlayer.Prices, models.MarketSourcePokemonTCG); snap != nil {
			tcgplayerSnaps = append(tcgplayerSnaps, *snap)
		}
	}
	if raw.Cardmarket != nil {
		d.CardmarketURL = validURL(raw.Cardmarket.URL)
		if d.MarketLastUpdatedAt == "" {
			d.MarketLastUpdatedAt = toISODate(raw.Cardmarket.UpdatedAt)
		}
		if snap := flatSnapshot(raw.Cardmarket.Prices, models.MarketplaceCardmarket, models.MarketSourcePokemonTCG, cardmarketFieldSynonyms); snap != nil {
			cardmarketSnaps = append(cardmarketSnaps, *snap)
		}
	}
	finalizePrices(&d, tcgplayerSnaps, cardmarketSnaps)

	return d
}

// tcgplayerVariantPriority is the fixed order in which one price-tier
// variant is selected out of the nested variant map.
var tcgplayerVariantPriority = []string{
	"holofoil",
	"normal",
	"reverseHolofoil",
	"1stEditionHolofoil",
	"1stEditionNormal",
	"unlimitedHolofoil",
	"unlimited",
}

// tcgplayerSnapshot picks one variant by priority order and maps its
// sub-fields into a snapshot. Unknown variant keys are a last resort, tried
// in sorted order for determinism.
func tcgplayerSnapshot(prices map[string]ptcgPriceTier, source models.MarketSource) *models.PriceSnapshot {
	if len(prices) == 0 {
		return nil
	}

	tier, ok := ptcgPriceTier{}, false
	for _, variant := range tcgplayerVariantPriority {
		if t, present := prices[variant]; present {
			tier, ok = t, true
			break
		}
	}
	if !ok {
		known := make(map[string]bool, len(tcgplayerVariantPriority))
		for _, v := range tcgplayerVariantPriority {
			known[v] = true
		}
		var remaining []string
		for k := range prices {
			if !known[k] {
				remaining = append(remaining, k)
			}
		}
		if len(remaining) == 0 {
			return nil
		}
		sort.Strings(remaining)
		tier = prices[remaining[0]]
	}

	snap := models.PriceSnapshot{
		Market:      models.MarketplaceTCGPlayer,
		Source:      source,
		Low:         toMarketNumber(tier.Low),
		Mid:         toMarketNumber(tier.Mid),
		High:        toMarketNumber(tier.High),
		Trend:       toMarketNumber(tier.Market),
		AverageSell: toMarketNumber(tier.DirectLow),
	}
	if snap.Low == nil && snap.Mid == nil && snap.High == nil && snap.Trend == nil && snap.AverageSell == nil {
		return nil
	}
	return &snap
}

// cardmarketFieldSynonyms maps each canonical snapshot field to the ordered
// provider field names that may carry it in this provider's cardmarket
// payload. The priority order is data, not buried control flow.
var cardmarketFieldSynonyms = map[string][]string{
	"low":         {"lowPrice", "lowPriceExPlus", "reverseHoloLow"},
	"mid":         {"averageSellPrice", "avg30", "avg7", "avg1", "reverseHoloAvg30", "reverseHoloAvg7", "trendPrice"},
	"high":        {"suggestedPrice", "germanProLow"},
	"trend":       {"trendPrice", "reverseHoloTrend"},
	"averageSell": {"averageSellPrice", "avg7", "avg30"},
}

func mapPTCGSupertype(raw string) models.Supertype {
	switch normalizeText(raw) {
	case "Pokemon":
		return models.SupertypePokemon
	case "Trainer":
		return models.SupertypeTrainer
	case "Energy":
		return models.SupertypeEnergy
	}
	return models.SupertypePokemon
}

// stageFromSubtypes extracts the evolution stage subtype when present.
func stageFromSubtypes(subtypes []string) string {
	for _, st := range subtypes {
		if st == "Basic" || strings.HasPrefix(st, "Stage ") {
			return st
		}
	}
	return ""
}

// toISODate converts the provider's slash-separated dates ("2022/07/01")
// into ISO form. Already-ISO or empty input passes through.
func toISODate(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
}
