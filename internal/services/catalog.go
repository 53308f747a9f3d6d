package services

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codyseavey/card-atlas/internal/metrics"
	"github.com/codyseavey/card-atlas/internal/models"
)

const (
	// minCatalogCount is the quality floor for every bulk cascade step: a
	// provider response below it is treated as a degraded upstream and the
	// cascade falls through to the next step.
	minCatalogCount = 16

	// Paged accumulation bounds for the primary adapter's index fallback.
	indexPageSize      = 250
	indexPageCap       = 8
	catalogTargetCount = 500
	minPricedCount     = 32

	// Bounds for the bulk detail operation.
	detailPageSize    = 100
	detailPageCap     = 5
	detailTargetCount = 250
	minPricedDetails  = 32

	// How many of the newest sets the secondary adapter walks when the
	// primary's bulk detail pages fail.
	recentSetsForDetails = 3

	detailCacheSize = 2048
)

// builtinTypes is the fixed facet list served when the type endpoint is down.
var builtinTypes = []string{
	"Colorless", "Darkness", "Dragon", "Fairy", "Fighting",
	"Fire", "Grass", "Lightning", "Metal", "Psychic", "Water",
}

// CatalogService aggregates the upstream providers behind the five public
// read operations. Each operation is a fallback cascade; ordering reflects
// which provider is cheapest for that shape of query. The secondary provider
// leads the bulk index cascade because its full listing is one cheap sweep,
// while the primary leads single-item detail because its per-card schema is
// richer.
type CatalogService struct {
	primary   CatalogProvider
	secondary CatalogProvider
	cache     *CatalogCache
	details   *expirable.LRU[string, *models.CardDetail]
	static    *StaticDataset
}

func NewCatalogService(primary, secondary CatalogProvider, cache *CatalogCache, static *StaticDataset) *CatalogService {
	return &CatalogService{
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		details:   expirable.NewLRU[string, *models.CardDetail](detailCacheSize, nil, DefaultCatalogTTL),
		static:    static,
	}
}

// ListCatalogIndex returns the aggregated catalog index, cached with a fixed
// TTL. Concurrent callers during a rebuild share one build.
func (s *CatalogService) ListCatalogIndex(ctx context.Context) ([]models.CatalogIndexEntry, error) {
	return s.cache.Get(ctx, s.buildIndex)
}

func (s *CatalogService) buildIndex(ctx context.Context) ([]models.CatalogIndexEntry, error) {
	clearsFloor := func(entries []models.CatalogIndexEntry) bool {
		return len(entries) >= minCatalogCount
	}

	var steps []fallbackStep[[]models.CatalogIndexEntry]
	if bulk, ok := s.secondary.(bulkIndexer); ok {
		steps = append(steps, fallbackStep[[]models.CatalogIndexEntry]{
			name:   s.secondary.Name() + "_bulk",
			run:    bulk.BulkIndex,
			accept: clearsFloor,
		})
	}
	steps = append(steps, fallbackStep[[]models.CatalogIndexEntry]{
		name: s.primary.Name() + "_paged",
		run: func(ctx context.Context) ([]models.CatalogIndexEntry, error) {
			return fetchPaged(ctx, s.primary.FetchIndexPage,
				func(e models.CatalogIndexEntry) string { return e.ID },
				func(e models.CatalogIndexEntry) bool { return e.MarketPrice != nil },
				pagedConfig{
					pageSize:     indexPageSize,
					pageCap:      indexPageCap,
					target:       catalogTargetCount,
					minQuality:   minPricedCount,
					allowPartial: true,
				})
		},
		accept: clearsFloor,
	})
	if bulk, ok := s.secondary.(bulkIndexer); ok {
		steps = append(steps, fallbackStep[[]models.CatalogIndexEntry]{
			name:   s.secondary.Name() + "_list_only",
			run:    bulk.ListOnlyIndex,
			accept: clearsFloor,
		})
	}
	steps = append(steps, fallbackStep[[]models.CatalogIndexEntry]{
		name: "static_dataset",
		run: func(context.Context) ([]models.CatalogIndexEntry, error) {
			return s.static.IndexEntries()
		},
	})

	entries, err := runFallback(ctx, "catalog_index", steps)
	if err != nil {
		return nil, err
	}
	sortIndexEntries(entries)
	return entries, nil
}

// GetCardDetail resolves one card by id. Returns *NotFoundError when the id
// is absent from both providers, the static dataset and the live catalog;
// when a provider failed along the way, that concrete error is returned
// instead so callers can tell an outage from a miss.
func (s *CatalogService) GetCardDetail(ctx context.Context, id string) (*models.CardDetail, error) {
	if d, ok := s.details.Get(id); ok {
		metrics.DetailCacheHits.Inc()
		return d, nil
	}
	metrics.DetailCacheMisses.Inc()

	found := func(d *models.CardDetail) bool { return d != nil }
	steps := []fallbackStep[*models.CardDetail]{
		{
			name: s.primary.Name(),
			run: func(ctx context.Context) (*models.CardDetail, error) {
				return s.primary.FetchDetail(ctx, id)
			},
			accept: found,
		},
		{
			name: s.secondary.Name(),
			run: func(ctx context.Context) (*models.CardDetail, error) {
				return s.secondary.FetchDetail(ctx, id)
			},
			accept: found,
		},
		{
			name: "static_dataset",
			run: func(context.Context) (*models.CardDetail, error) {
				return s.static.DetailByID(id)
			},
			accept: found,
		},
		{
			name: "catalog_scan",
			run: func(ctx context.Context) (*models.CardDetail, error) {
				return s.scanCatalog(ctx, id)
			},
			accept: found,
		},
	}

	d, err := runFallback(ctx, "card_detail", steps)
	if err != nil {
		if errors.Is(err, errCascadeExhausted) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	s.details.Add(id, d)
	return d, nil
}

// scanCatalog looks the id up inside the aggregated index and widens the row
// into a detail record. Battle text and price snapshots are not
// reconstructible from an index row, so the synthesized detail carries the
// presentational fields only.
func (s *CatalogService) scanCatalog(ctx context.Context, id string) (*models.CardDetail, error) {
	entries, err := s.cache.Get(ctx, s.buildIndex)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return detailFromIndex(e), nil
		}
	}
	return nil, nil
}

func detailFromIndex(e models.CatalogIndexEntry) *models.CardDetail {
	return &models.CardDetail{
		ID:                 e.ID,
		Name:               e.Name,
		DisplayName:        e.DisplayName,
		Supertype:          e.Supertype,
		Subtypes:           e.Subtypes,
		HP:                 e.HP,
		Types:              e.Types,
		SetName:            e.SetName,
		SetSeries:          e.SetSeries,
		SetReleaseDate:     e.SetReleaseDate,
		Rarity:             e.Rarity,
		Artist:             e.Artist,
		NationalDexNumbers: e.NationalDexNumbers,
		ImageSmall:         e.ImageSmall,
		ImageLarge:         e.ImageLarge,
		Number:             e.Number,
		RegulationMark:     e.RegulationMark,
		Stage:              e.Stage,
		EvolvesFrom:        e.EvolvesFrom,
		LegalityStandard:   models.LegalityUnknown,
		LegalityExpanded:   models.LegalityUnknown,
		LegalityUnlimited:  models.LegalityUnknown,
	}
}

// ListCatalogDetails returns full detail records for richer browsing. More
// expensive than the index and not cached; callers are expected to prefer
// ListCatalogIndex for plain listings.
func (s *CatalogService) ListCatalogDetails(ctx context.Context) ([]models.CardDetail, error) {
	clearsFloor := func(details []models.CardDetail) bool {
		return len(details) >= minCatalogCount
	}

	var steps []fallbackStep[[]models.CardDetail]
	if pager, ok := s.primary.(detailPager); ok {
		steps = append(steps, fallbackStep[[]models.CardDetail]{
			name: s.primary.Name() + "_paged",
			run: func(ctx context.Context) ([]models.CardDetail, error) {
				return fetchPaged(ctx, pager.FetchDetailPage,
					func(d models.CardDetail) string { return d.ID },
					func(d models.CardDetail) bool { return d.MarketPrice != nil },
					pagedConfig{
						pageSize:     detailPageSize,
						pageCap:      detailPageCap,
						target:       detailTargetCount,
						minQuality:   minPricedDetails,
						allowPartial: true,
					})
			},
			accept: clearsFloor,
		})
	}
	if bulk, ok := s.secondary.(bulkIndexer); ok {
		steps = append(steps, fallbackStep[[]models.CardDetail]{
			name: s.secondary.Name() + "_recent_sets",
			run: func(ctx context.Context) ([]models.CardDetail, error) {
				return bulk.BulkDetails(ctx, recentSetsForDetails)
			},
			accept: clearsFloor,
		})
	}
	steps = append(steps, fallbackStep[[]models.CardDetail]{
		name: "static_dataset",
		run: func(context.Context) ([]models.CardDetail, error) {
			return s.static.Details()
		},
	})

	details, err := runFallback(ctx, "catalog_details", steps)
	if err != nil {
		return nil, err
	}
	sortDetails(details)
	return details, nil
}

// ListCardTypes returns the type facet list, degrading to a fixed built-in
// list when the facet endpoint is unavailable.
func (s *CatalogService) ListCardTypes(ctx context.Context) ([]string, error) {
	var steps []fallbackStep[[]string]
	if tl, ok := s.secondary.(typeLister); ok {
		steps = append(steps, fallbackStep[[]string]{
			name:   s.secondary.Name() + "_types",
			run:    tl.FetchTypes,
			accept: func(types []string) bool { return len(types) > 0 },
		})
	}
	steps = append(steps, fallbackStep[[]string]{
		name: "builtin",
		run: func(context.Context) ([]string, error) {
			return append([]string(nil), builtinTypes...), nil
		},
	})
	return runFallback(ctx, "card_types", steps)
}

// ListCardIDsByType returns the ids of cards carrying the given type. An
// empty result means the filter could not be served, not that nothing
// matches; callers must treat it as "unfilterable".
func (s *CatalogService) ListCardIDsByType(ctx context.Context, cardType string) ([]string, error) {
	var steps []fallbackStep[[]string]
	if tl, ok := s.secondary.(typeLister); ok {
		steps = append(steps, fallbackStep[[]string]{
			name: s.secondary.Name() + "_filter",
			run: func(ctx context.Context) ([]string, error) {
				return tl.FetchIDsByType(ctx, cardType)
			},
		})
	}
	steps = append(steps, fallbackStep[[]string]{
		name: "empty",
		run: func(context.Context) ([]string, error) {
			return []string{}, nil
		},
	})
	return runFallback(ctx, "cards_by_type", steps)
}

// InvalidateCatalog drops the cached index so the next listing rebuilds.
func (s *CatalogService) InvalidateCatalog() {
	s.cache.Invalidate()
}

// Canonical browse order: newest sets first (undated last), then set name,
// then numeric-aware card number so "2" sorts before "10".

func sortIndexEntries(entries []models.CatalogIndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return catalogLess(
			entries[i].SetReleaseDate, entries[i].SetName, entries[i].Number,
			entries[j].SetReleaseDate, entries[j].SetName, entries[j].Number,
		)
	})
}

func sortDetails(details []models.CardDetail) {
	sort.SliceStable(details, func(i, j int) bool {
		return catalogLess(
			details[i].SetReleaseDate, details[i].SetName, details[i].Number,
			details[j].SetReleaseDate, details[j].SetName, details[j].Number,
		)
	})
}

func catalogLess(aDate, aSet, aNum, bDate, bSet, bNum string) bool {
	if aDate != bDate {
		if aDate == "" {
			return false
		}
		if bDate == "" {
			return true
		}
		return aDate > bDate
	}
	if aSet != bSet {
		return aSet < bSet
	}
	an, aRest := cardNumberKey(aNum)
	bn, bRest := cardNumberKey(bNum)
	if an != bn {
		return an < bn
	}
	return aRest < bRest
}

// cardNumberKey splits a printed card number into its leading integer and the
// remaining suffix. Fully non-numeric numbers sort after numeric ones.
func cardNumberKey(num string) (int, string) {
	i := 0
	for i < len(num) && num[i] >= '0' && num[i] <= '9' {
		i++
	}
	if i == 0 {
		return 1 << 30, num
	}
	n, err := strconv.Atoi(num[:i])
	if err != nil {
		return 1 << 30, num
	}
	return n, num[i:]
}
