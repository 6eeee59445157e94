// Package scrape holds the per-site nutrition parsers and the registry that
// routes a search result to exactly one of them.
package scrape

import (
	"context"

	"github.com/healco/foodresolver/internal/models"
)

// Handler parses one search result into zero or more nutrition records.
// Implementations absorb their own transport and parse failures: an error
// return is logged by the caller and contributes nothing to the batch.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string
	// Match reports whether this handler owns the given URL.
	Match(url string) bool
	// Parse resolves the search item into records, applying the requested
	// portion. An empty slice with a nil error means "nothing found".
	Parse(ctx context.Context, item models.SearchItem, grams, milliliters *float64) ([]models.NutritionRecord, error)
}

// NutritionLookup is the slice of the structured nutrition provider the
// scrapers use to upgrade heuristic drafts. A (nil, nil) return means the
// provider is unavailable or found nothing; both are treated as "no match".
type NutritionLookup interface {
	LookupByName(ctx context.Context, name string, grams, milliliters *float64) (*models.NutritionRecord, error)
	LookupByFoodID(ctx context.Context, foodID string, grams, milliliters *float64) (*models.NutritionRecord, error)
}

// Registry resolves a URL to the single handler owning it. Handlers are
// consulted in registration order; adding a site means registering a new
// handler, not editing the dispatch.
type Registry struct {
	handlers []Handler
}

// NewRegistry creates a registry with the given handlers, in priority order.
func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{handlers: handlers}
}

// Register appends a handler.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Route returns the first handler matching the URL, or nil when no handler
// owns it.
func (r *Registry) Route(url string) Handler {
	for _, h := range r.handlers {
		if h.Match(url) {
			return h
		}
	}
	return nil
}
