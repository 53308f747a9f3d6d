package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codyseavey/card-atlas/internal/models"
)

//go:embed data/cards.json
var staticCardsJSON []byte

// StaticDataset is the bundled last-resort catalog used when every live
// provider is down. It is small and stale on purpose: serving a handful of
// well-known cards beats serving an empty catalog.
type StaticDataset struct {
	once    sync.Once
	loadErr error
	details []models.CardDetail
	byID    map[string]int
}

func NewStaticDataset() *StaticDataset {
	return &StaticDataset{}
}

func (s *StaticDataset) load() {
	s.once.Do(func() {
		var details []models.CardDetail
		if err := json.Unmarshal(staticCardsJSON, &details); err != nil {
			s.loadErr = fmt.Errorf("parsing embedded card data: %w", err)
			return
		}
		byID := make(map[string]int, len(details))
		for i := range details {
			// Recompute the canonical price instead of trusting the file,
			// so embedded records obey the same resolution rules as live ones.
			details[i].MarketPrice, details[i].MarketSource = resolvePrimaryPrice(details[i].PriceSnapshots)
			byID[details[i].ID] = i
		}
		s.details = details
		s.byID = byID
	})
}

// Details returns every embedded card record.
func (s *StaticDataset) Details() ([]models.CardDetail, error) {
	s.load()
	return s.details, s.loadErr
}

// IndexEntries projects the embedded records into index form.
func (s *StaticDataset) IndexEntries() ([]models.CatalogIndexEntry, error) {
	s.load()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	entries := make([]models.CatalogIndexEntry, 0, len(s.details))
	for i := range s.details {
		entries = append(entries, s.details[i].ProjectToIndex())
	}
	return entries, nil
}

// DetailByID returns one embedded card, or (nil, nil) when the id is unknown.
func (s *StaticDataset) DetailByID(id string) (*models.CardDetail, error) {
	s.load()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	d := s.details[i]
	return &d, nil
}
