package models

// Supertype is the coarse taxonomy every provider is normalized into.
type Supertype string

const (
	SupertypePokemon Supertype = "Pokemon"
	SupertypeTrainer Supertype = "Trainer"
	SupertypeEnergy  Supertype = "Energy"
)

// Legality is a three-valued flag because providers report format legality
// as booleans, free text, or not at all.
type Legality string

const (
	LegalityLegal    Legality = "legal"
	LegalityNotLegal Legality = "not-legal"
	LegalityUnknown  Legality = "unknown"
)

// Marketplace identifies which marketplace a price snapshot was quoted on.
type Marketplace string

const (
	MarketplaceTCGPlayer  Marketplace = "tcgplayer"
	MarketplaceCardmarket Marketplace = "cardmarket"
)

// MarketSource identifies which upstream provider supplied a price.
type MarketSource string

const (
	MarketSourcePokemonTCG MarketSource = "pokemontcg"
	MarketSourceTCGdex     MarketSource = "tcgdex"
)

// PriceSnapshot is one marketplace's quote for a card, normalized to a fixed
// set of numeric fields. Fields are nil when the marketplace did not report
// them; non-nil values are finite and strictly positive.
type PriceSnapshot struct {
	Market      Marketplace  `json:"market"`
	Source      MarketSource `json:"source"`
	Low         *float64     `json:"low"`
	Mid         *float64     `json:"mid"`
	High        *float64     `json:"high"`
	Trend       *float64     `json:"trend"`
	AverageSell *float64     `json:"average_sell"`
}

// SetMetadata is produced by a side lookup against the set list and merged
// into card records by set id.
type SetMetadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Series       string `json:"series"`
	ReleaseDate  string `json:"release_date"`
	LogoURL      string `json:"logo_url"`
	SymbolURL    string `json:"symbol_url"`
	PrintedTotal *int   `json:"printed_total"`
	Total        *int   `json:"total"`
}

// AbilityEntry is one ability printed on a card.
type AbilityEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// AttackEntry is one attack printed on a card. Damage stays a string because
// printed damage values include modifiers like "30+" and "x20".
type AttackEntry struct {
	Name                string   `json:"name"`
	Cost                []string `json:"cost"`
	Damage              string   `json:"damage"`
	Text                string   `json:"text"`
	ConvertedEnergyCost *int     `json:"converted_energy_cost"`
}

// TypeValue is a weakness or resistance pairing.
type TypeValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CatalogIndexEntry is the lightweight record used for listing and browsing.
// It is always derivable from a CardDetail via ProjectToIndex.
type CatalogIndexEntry struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	DisplayName        string       `json:"display_name"`
	Supertype          Supertype    `json:"supertype"`
	Subtypes           []string     `json:"subtypes"`
	HP                 *int         `json:"hp"`
	Types              []string     `json:"types"`
	SetName            string       `json:"set_name"`
	SetSeries          string       `json:"set_series"`
	SetReleaseDate     string       `json:"set_release_date"`
	Rarity             string       `json:"rarity"`
	Artist             string       `json:"artist"`
	NationalDexNumbers []int        `json:"national_dex_numbers"`
	ImageSmall         string       `json:"image_small"`
	ImageLarge         string       `json:"image_large"`
	Number             string       `json:"number"`
	RegulationMark     string       `json:"regulation_mark"`
	Stage              string       `json:"stage"`
	EvolvesFrom        string       `json:"evolves_from"`
	AttackCount        int          `json:"attack_count"`
	AbilityCount       int          `json:"ability_count"`
	RuleCount          int          `json:"rule_count"`
	MarketPrice        *float64     `json:"market_price"`
	MarketSource       MarketSource `json:"market_source,omitempty"`
}

// CardDetail is the full card record. It is an immutable value created by a
// provider adapter from one raw payload and never mutated afterwards.
type CardDetail struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DisplayName        string    `json:"display_name"`
	Supertype          Supertype `json:"supertype"`
	Subtypes           []string  `json:"subtypes"`
	HP                 *int      `json:"hp"`
	Types              []string  `json:"types"`
	SetName            string    `json:"set_name"`
	SetSeries          string    `json:"set_series"`
	SetReleaseDate     string    `json:"set_release_date"`
	Rarity             string    `json:"rarity"`
	Artist             string    `json:"artist"`
	NationalDexNumbers []int     `json:"national_dex_numbers"`
	ImageSmall         string    `json:"image_small"`
	ImageLarge         string    `json:"image_large"`
	Number             string    `json:"number"`
	RegulationMark     string    `json:"regulation_mark"`
	Stage              string    `json:"stage"`
	EvolvesFrom        string    `json:"evolves_from"`

	FlavorText           string         `json:"flavor_text"`
	Rules                []string       `json:"rules"`
	Abilities            []AbilityEntry `json:"abilities"`
	Attacks              []AttackEntry  `json:"attacks"`
	Weaknesses           []TypeValue    `json:"weaknesses"`
	Resistances          []TypeValue    `json:"resistances"`
	RetreatCost          []string       `json:"retreat_cost"`
	ConvertedRetreatCost *int           `json:"converted_retreat_cost"`

	LegalityStandard  Legality `json:"legality_standard"`
	LegalityExpanded  Legality `json:"legality_expanded"`
	LegalityUnlimited Legality `json:"legality_unlimited"`

	SetPrintedTotal *int   `json:"set_printed_total"`
	SetTotal        *int   `json:"set_total"`
	SetLogoURL      string `json:"set_logo_url"`
	SetSymbolURL    string `json:"set_symbol_url"`

	TCGPlayerURL        string          `json:"tcgplayer_url"`
	CardmarketURL       string          `json:"cardmarket_url"`
	PriceSnapshots      []PriceSnapshot `json:"price_snapshots"`
	MarketLastUpdatedAt string          `json:"market_last_updated_at"`
	MarketPrice         *float64        `json:"market_price"`
	MarketSource        MarketSource    `json:"market_source,omitempty"`
}

// ProjectToIndex derives the index entry for a card. Every field on the index
// comes from the detail record, so index and detail mapping can never diverge.
func (d *CardDetail) ProjectToIndex() CatalogIndexEntry {
	return CatalogIndexEntry{
		ID:                 d.ID,
		Name:               d.Name,
		DisplayName:        d.DisplayName,
		Supertype:          d.Supertype,
		Subtypes:           d.Subtypes,
		HP:                 d.HP,
		Types:              d.Types,
		SetName:            d.SetName,
		SetSeries:          d.SetSeries,
		SetReleaseDate:     d.SetReleaseDate,
		Rarity:             d.Rarity,
		Artist:             d.Artist,
		NationalDexNumbers: d.NationalDexNumbers,
		ImageSmall:         d.ImageSmall,
		ImageLarge:         d.ImageLarge,
		Number:             d.Number,
		RegulationMark:     d.RegulationMark,
		Stage:              d.Stage,
		EvolvesFrom:        d.EvolvesFrom,
		AttackCount:        len(d.Attacks),
		AbilityCount:       len(d.Abilities),
		RuleCount:          len(d.Rules),
		MarketPrice:        d.MarketPrice,
		MarketSource:       d.MarketSource,
	}
}
