package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/codyseavey/card-atlas/internal/metrics"
	"github.com/codyseavey/card-atlas/internal/models"
)

// CatalogProvider is the capability every upstream adapter must offer. The
// orchestrator only depends on this interface (plus the optional capability
// interfaces below), so adding a provider means adding one adapter.
type CatalogProvider interface {
	Name() string
	// FetchIndexPage returns one page of lightweight index entries.
	FetchIndexPage(ctx context.Context, page, pageSize int) ([]models.CatalogIndexEntry, error)
	// FetchDetail returns a single card, or (nil, nil) when the provider
	// does not know the id.
	FetchDetail(ctx context.Context, id string) (*models.CardDetail, error)
}

// detailPager is offered by providers whose list endpoint can return full
// detail records per page.
type detailPager interface {
	FetchDetailPage(ctx context.Context, page, pageSize int) ([]models.CardDetail, error)
}

// bulkIndexer is offered by providers with a cheap full-catalog listing.
type bulkIndexer interface {
	BulkIndex(ctx context.Context) ([]models.CatalogIndexEntry, error)
	ListOnlyIndex(ctx context.Context) ([]models.CatalogIndexEntry, error)
	BulkDetails(ctx context.Context, maxSets int) ([]models.CardDetail, error)
}

// typeLister is offered by providers with a type facet endpoint.
type typeLister interface {
	FetchTypes(ctx context.Context) ([]string, error)
	FetchIDsByType(ctx context.Context, cardType string) ([]string, error)
}

// ErrProviderTimeout marks a request that failed because its fixed per-call
// deadline elapsed, as opposed to a non-2xx response.
var ErrProviderTimeout = errors.New("provider request timed out")

// ProviderError is a transport or HTTP failure from one upstream endpoint.
type ProviderError struct {
	Provider string
	Endpoint string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFoundError is raised by GetCardDetail once every fallback, including the
// static dataset and the live catalog scan, has been exhausted.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("card %q not found", e.ID)
}

// errCascadeExhausted signals that every step ran without a concrete error
// but none produced an acceptable result.
var errCascadeExhausted = errors.New("all fallback steps exhausted")

// fallbackStep is one alternative data-acquisition strategy in a cascade.
// accept is the quality floor: a step's result is used only when it passes.
type fallbackStep[T any] struct {
	name   string
	run    func(ctx context.Context) (T, error)
	accept func(T) bool
}

// runFallback evaluates the steps in order and returns the first result that
// both succeeds and clears its quality floor. Step failures are swallowed and
// logged; when every step fails, the first concrete error encountered is
// returned so callers can distinguish "not found" from an upstream outage.
func runFallback[T any](ctx context.Context, op string, steps []fallbackStep[T]) (T, error) {
	var zero T
	var firstErr error

	for _, step := range steps {
		result, err := step.run(ctx)
		if err != nil {
			metrics.CascadeStepsTotal.WithLabelValues(op, step.name, "error").Inc()
			log.Printf("%s: step %s failed: %v", op, step.name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if step.accept != nil && !step.accept(result) {
			metrics.CascadeStepsTotal.WithLabelValues(op, step.name, "rejected").Inc()
			log.Printf("%s: step %s result below quality floor", op, step.name)
			continue
		}
		metrics.CascadeStepsTotal.WithLabelValues(op, step.name, "accepted").Inc()
		return result, nil
	}

	if firstErr != nil {
		return zero, firstErr
	}
	return zero, errCascadeExhausted
}
