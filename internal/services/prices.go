package services

import (
	"github.com/codyseavey/card-atlas/internal/models"
)

// primaryPriceFields is the ordered list of snapshot fields tried when
// resolving the canonical market price. The order is data, not control flow,
// so the bias is explicit: mid-range quotes beat trend, trend beats averages
// and the low/high bounds are a last resort.
var primaryPriceFields = []func(models.PriceSnapshot) *float64{
	func(s models.PriceSnapshot) *float64 { return s.Mid },
	func(s models.PriceSnapshot) *float64 { return s.Trend },
	func(s models.PriceSnapshot) *float64 { return s.AverageSell },
	func(s models.PriceSnapshot) *float64 { return s.Low },
	func(s models.PriceSnapshot) *float64 { return s.High },
}

// mergeSnapshots concatenates the snapshots each marketplace produced,
// preserving append order. At most one snapshot exists per marketplace.
func mergeSnapshots(groups ...[]models.PriceSnapshot) []models.PriceSnapshot {
	var out []models.PriceSnapshot
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// resolvePrimaryPrice walks the snapshots in append order and picks the first
// non-nil value following primaryPriceFields. This biases toward whichever
// marketplace has the most complete record rather than always preferring one
// marketplace, since provider payloads are frequently partial. The returned
// price is always a value present verbatim inside one of the snapshots.
func resolvePrimaryPrice(snapshots []models.PriceSnapshot) (*float64, models.MarketSource) {
	for _, snap := range snapshots {
		for _, field := range primaryPriceFields {
			if p := field(snap); p != nil {
				return p, snap.Source
			}
		}
	}
	return nil, ""
}

// finalizePrices stamps the merged snapshots and the resolved canonical price
// onto a freshly mapped detail record.
func finalizePrices(d *models.CardDetail, groups ...[]models.PriceSnapshot) {
	d.PriceSnapshots = mergeSnapshots(groups...)
	d.MarketPrice, d.MarketSource = resolvePrimaryPrice(d.PriceSnapshots)
}

// flatSnapshot builds one snapshot from a flat provider price object using an
// ordered synonym table: for each canonical field, the first provider field
// that resolves to a market number wins. Returns nil when nothing resolves.
func flatSnapshot(prices map[string]float64, market models.Marketplace, source models.MarketSource, synonyms map[string][]string) *models.PriceSnapshot {
	if len(prices) == 0 {
		return nil
	}
	resolve := func(field string) *float64 {
		var candidates []any
		for _, key := range synonyms[field] {
			if v, ok := prices[key]; ok {
				candidates = append(candidates, v)
			}
		}
		return pickFirst(candidates...)
	}

	snap := models.PriceSnapshot{
		Market:      market,
		Source:      source,
		Low:         resolve("low"),
		Mid:         resolve("mid"),
		High:        resolve("high"),
		Trend:       resolve("trend"),
		AverageSell: resolve("averageSell"),
	}
	if snap.Low == nil && snap.Mid == nil && snap.High == nil && snap.Trend == nil && snap.AverageSell == nil {
		return nil
	}
	return &snap
}
