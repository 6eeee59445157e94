package scrape

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/healco/foodresolver/internal/models"
)

// RetailScraper handles retail product listings (ozon, wildberries). The
// snippet is parsed heuristically into a draft record, which is then upgraded
// by re-searching the structured provider for the product name: a structured
// hit replaces the draft, otherwise the draft is kept.
type RetailScraper struct {
	lookup NutritionLookup
	logger *zap.Logger
}

func NewRetailScraper(lookup NutritionLookup, logger *zap.Logger) *RetailScraper {
	return &RetailScraper{lookup: lookup, logger: logger}
}

func (s *RetailScraper) Name() string { return "retail" }

func (s *RetailScraper) Match(url string) bool {
	return strings.Contains(url, "ozon") || strings.Contains(url, "wildberries")
}

func (s *RetailScraper) Parse(ctx context.Context, item models.SearchItem, grams, milliliters *float64) ([]models.NutritionRecord, error) {
	source := "ozon"
	if strings.Contains(item.Link, "wildberries") {
		source = "wildberries"
	}

	draft := ParseText(item.Link, item.Title, item.Snippet, source)
	if draft == nil || draft.Kcal100g == nil {
		return nil, nil
	}

	// A structured-provider match by name is trusted over the heuristic
	// numbers, even though it may describe a different product.
	upgraded, err := s.lookup.LookupByName(ctx, draft.Name, grams, milliliters)
	if err != nil {
		s.logger.Warn("structured lookup for retail item failed",
			zap.String("name", draft.Name), zap.Error(err))
	}
	if upgraded != nil && upgraded.Kcal100g != nil {
		upgraded.SourceURL = models.String(item.Link)
		return []models.NutritionRecord{*upgraded}, nil
	}

	draft.ApplyPortion(grams, milliliters)
	return []models.NutritionRecord{*draft}, nil
}
