package service

import (
	"context"

	"github.com/healco/foodresolver/internal/models"
)

// NutritionProvider is the structured nutrition database consulted first
// during resolution. A (nil, nil) return means "not found or unavailable";
// callers treat both identically and fall through to the next tier.
type NutritionProvider interface {
	// Available reports whether credentials are configured.
	Available() bool
	// ResolveBarcode looks a barcode up and normalizes the hit.
	ResolveBarcode(ctx context.Context, barcode string, grams, milliliters *float64) (*models.NutritionRecord, error)
	// ResolveQuery searches by text, picks the best match and normalizes it.
	ResolveQuery(ctx context.Context, query string, grams, milliliters *float64) (*models.NutritionRecord, error)
}

// WebSearcher issues domain-scoped and general web searches. Missing
// credentials yield empty results, never an error.
type WebSearcher interface {
	SearchBranded(ctx context.Context, query string, num int) ([]models.SearchItem, error)
	SearchGeneral(ctx context.Context, query string, num int) ([]models.SearchItem, error)
	// SearchImage returns the single best image link for a query, or "".
	SearchImage(ctx context.Context, query string) (string, error)
}

// OCRExtractor recovers nutrition text from product images.
type OCRExtractor interface {
	Available() bool
	ExtractRecord(ctx context.Context, imageURL, refererURL, title string, grams, milliliters *float64) (*models.NutritionRecord, error)
}
