package services

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/codyseavey/card-atlas/internal/models"
)

// stripMarks decomposes characters, drops the combining marks and recomposes,
// so "Pokémon" and "Pokemon" normalize to the same text.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText strips diacritics, collapses runs of whitespace and trims.
// It is idempotent: normalizing already-normalized text is a no-op.
func normalizeText(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

// toNullableNumber coerces a raw provider value into an integer. Strings are
// stripped down to their digits first ("110 HP" -> 110). Returns nil when no
// digits remain or the value is not representable.
func toNullableNumber(raw any) *int {
	switch v := raw.(type) {
	case nil:
		return nil
	case int:
		return &v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n := int(v)
		return &n
	case string:
		var b strings.Builder
		for _, r := range v {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			return nil
		}
		n, err := strconv.Atoi(b.String())
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// toMarketNumber coerces a raw value into a price. Only strictly positive,
// finite results are kept; everything else degrades to nil.
func toMarketNumber(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case nil:
		return nil
	case int:
		f = float64(v)
	case float64:
		f = v
	case string:
		var b strings.Builder
		for _, r := range v {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		parsed, err := strconv.ParseFloat(b.String(), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	return &f
}

// pickFirst returns the first candidate that normalizes to a market number.
// Used to resolve synonym price fields across provider payloads.
func pickFirst(candidates ...any) *float64 {
	for _, c := range candidates {
		if p := toMarketNumber(c); p != nil {
			return p
		}
	}
	return nil
}

// toLegality maps a boolean or free-text legality flag onto the three-valued
// legality enum.
func toLegality(flag any) models.Legality {
	switch v := flag.(type) {
	case bool:
		if v {
			return models.LegalityLegal
		}
		return models.LegalityNotLegal
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "legal":
			return models.LegalityLegal
		case "banned", "illegal", "not legal", "not-legal":
			return models.LegalityNotLegal
		}
	}
	return models.LegalityUnknown
}

// toRetreatCost expands an integer retreat cost into generic cost tokens,
// clamped to the printable range of 0..6.
func toRetreatCost(n int) []string {
	if n < 0 {
		n = 0
	}
	if n > 6 {
		n = 6
	}
	cost := make([]string, n)
	for i := range cost {
		cost[i] = "Colorless"
	}
	return cost
}

var trainerKeywords = []string{
	"professor", "trainer", "ball", "potion", "switch", "rod",
	"stadium", "supporter", "tool", "machine", "belt", "candy",
}

// inferSupertype guesses the supertype from a display name. Only used by the
// degraded list-only mode where the bulk endpoint omits the supertype field.
func inferSupertype(name string) models.Supertype {
	lower := strings.ToLower(normalizeText(name))
	if lower == "energy" || strings.HasSuffix(lower, " energy") {
		return models.SupertypeEnergy
	}
	for _, kw := range trainerKeywords {
		if strings.Contains(lower, kw) {
			return models.SupertypeTrainer
		}
	}
	return models.SupertypePokemon
}

// validURL returns the input when it is an absolute http(s) URL, else "".
func validURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return s
}
