package scrape

import (
	"context"
	"regexp"
	"strings"

	"github.com/healco/foodresolver/internal/models"
)

var foodIDRe = regexp.MustCompile(`(?:foodid|food_id)=(\d+)`)

// FatSecretItemHandler resolves fatsecret.com/fatsecret.ru item URLs found by
// web search: the food id is lifted from the URL and the record is fetched
// through the structured provider itself rather than scraped.
type FatSecretItemHandler struct {
	lookup NutritionLookup
}

func NewFatSecretItemHandler(lookup NutritionLookup) *FatSecretItemHandler {
	return &FatSecretItemHandler{lookup: lookup}
}

func (h *FatSecretItemHandler) Name() string { return "fatsecret-item" }

func (h *FatSecretItemHandler) Match(url string) bool {
	return strings.Contains(url, "fatsecret") &&
		(strings.Contains(url, "ru") || strings.Contains(url, "com"))
}

func (h *FatSecretItemHandler) Parse(ctx context.Context, item models.SearchItem, grams, milliliters *float64) ([]models.NutritionRecord, error) {
	m := foodIDRe.FindStringSubmatch(item.Link)
	if m == nil {
		return nil, nil
	}

	rec, err := h.lookup.LookupByFoodID(ctx, m[1], grams, milliliters)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Kcal100g == nil {
		return nil, nil
	}
	rec.SourceURL = models.String(item.Link)
	return []models.NutritionRecord{*rec}, nil
}
