package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/healco/foodresolver/internal/cache"
	"github.com/healco/foodresolver/internal/models"
)

const avSourceTag = "av.ru"

var (
	initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;`)

	avKcalRe    = regexp.MustCompile(`ккал[^\d]{0,5}(\d+[.,]?\d*)`)
	avProteinRe = regexp.MustCompile(`бел(?:ок|ки)[^\d]{0,5}(\d+[.,]?\d*)`)
	avFatRe     = regexp.MustCompile(`жир(?:ы)?[^\d]{0,5}(\d+[.,]?\d*)`)
	avCarbRe    = regexp.MustCompile(`углевод(?:ы)?[^\d]{0,5}(\d+[.,]?\d*)`)
	avBarcodeRe = regexp.MustCompile(`\b(\d{8,14})\b`)
)

// AvRuScraper parses av.ru product pages. It is the one scrape target under a
// shared request-per-interval limit, and every fetched page is cached by its
// literal URL since product pages change rarely.
type AvRuScraper struct {
	client  *http.Client
	limiter *rate.Limiter
	pages   cache.Store
	pageTTL time.Duration
	ua      string
	logger  *zap.Logger
}

// NewAvRuScraper creates the scraper. The limiter is shared across all
// callers: one fetch per interval, no matter how many resolutions run.
func NewAvRuScraper(limiter *rate.Limiter, pages cache.Store, pageTTL time.Duration, userAgent string, logger *zap.Logger) *AvRuScraper {
	return &AvRuScraper{
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		pages:   pages,
		pageTTL: pageTTL,
		ua:      userAgent,
		logger:  logger,
	}
}

func (s *AvRuScraper) Name() string { return "avru" }

func (s *AvRuScraper) Match(url string) bool {
	return strings.Contains(url, "://av.ru/")
}

func (s *AvRuScraper) Parse(ctx context.Context, item models.SearchItem, grams, milliliters *float64) ([]models.NutritionRecord, error) {
	rec, err := s.fetch(ctx, item.Link)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.SourceURL = models.String(item.Link)
	rec.ApplyPortion(grams, milliliters)
	return []models.NutritionRecord{*rec}, nil
}

func (s *AvRuScraper) fetch(ctx context.Context, url string) (*models.NutritionRecord, error) {
	key := "avru:" + url

	var cached models.NutritionRecord
	if err := cache.GetJSON(ctx, s.pages, key, &cached); err == nil {
		return &cached, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept-Language", "ru,ru-RU;q=0.9,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("av.ru fetch returned non-200", zap.Int("status", resp.StatusCode), zap.String("url", url))
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	rec := ParseAvRuDocument(doc)
	if rec == nil {
		return nil, nil
	}

	if err := cache.PutJSON(ctx, s.pages, key, rec, s.pageTTL); err != nil {
		s.logger.Warn("failed to cache av.ru page", zap.String("url", url), zap.Error(err))
	}
	return rec, nil
}

// ParseAvRuDocument extracts a nutrition record from a product page,
// escalating through three tiers: JSON-LD blocks, the embedded client-state
// blob, and finally regex over visible text. Each tier short-circuits on the
// first hit.
func ParseAvRuDocument(doc *goquery.Document) *models.NutritionRecord {
	if rec := avFromJSONLD(doc); rec != nil {
		return rec
	}

	html, err := doc.Html()
	if err == nil {
		if rec := avFromInitialState(html); rec != nil {
			return rec
		}
	}

	return avFromVisibleText(doc)
}

func avFromJSONLD(doc *goquery.Document) *models.NutritionRecord {
	var found *models.NutritionRecord
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var raw interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &raw); err != nil {
			return true
		}

		switch data := raw.(type) {
		case []interface{}:
			for _, item := range data {
				if obj, ok := item.(map[string]interface{}); ok {
					if rec := RecordFromJSONLD(obj); rec != nil {
						found = rec
						return false
					}
				}
			}
		case map[string]interface{}:
			if rec := RecordFromJSONLD(data); rec != nil {
				found = rec
				return false
			}
		}
		return true
	})
	return found
}

// RecordFromJSONLD builds a record from one JSON-LD object carrying a
// nutrition block. Returns nil when no macro value is present.
func RecordFromJSONLD(data map[string]interface{}) *models.NutritionRecord {
	name := strField(data, "name")
	if name == "" {
		name = strField(data, "headline")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "—"
	}

	var brand *string
	switch b := data["brand"].(type) {
	case string:
		brand = models.String(b)
	case map[string]interface{}:
		brand = models.String(strField(b, "name"))
	}

	nut, _ := data["nutrition"].(map[string]interface{})

	kcal := UnwrapValue(nut["calories"])
	if kcal == nil {
		kcal = UnwrapValue(nut["energy"])
	}
	if kcal == nil {
		kcal = UnwrapValue(nut["caloriesContent"])
	}

	rec := &models.NutritionRecord{
		Name:        name,
		Brand:       brand,
		Kcal100g:    kcal,
		Protein100g: UnwrapValue(nut["proteinContent"]),
		Fat100g:     UnwrapValue(nut["fatContent"]),
		Carbs100g:   UnwrapValue(nut["carbohydrateContent"]),
		Source:      avSourceTag,
	}
	if !rec.Valid() {
		return nil
	}
	return rec
}

func avFromInitialState(html string) *models.NutritionRecord {
	m := initialStateRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	state := m[1]
	if !gjson.Valid(state) {
		return nil
	}

	product := gjson.Get(state, "product.item")
	if !product.Exists() {
		product = gjson.Get(state, "goods.item")
	}
	if !product.Exists() {
		return nil
	}

	nut := product.Get("nutrition")
	if !nut.Exists() || len(nut.Map()) == 0 {
		return nil
	}

	name := product.Get("title").String()
	if name == "" {
		name = product.Get("name").String()
	}
	if name == "" {
		name = "—"
	}

	barcode := product.Get("barcode").String()
	if barcode == "" {
		barcode = product.Get("ean").String()
	}

	rec := &models.NutritionRecord{
		Name:        name,
		Brand:       models.String(product.Get("brand").String()),
		Kcal100g:    ParseFloat(nut.Get("calories").String()),
		Protein100g: ParseFloat(nut.Get("protein").String()),
		Fat100g:     ParseFloat(nut.Get("fat").String()),
		Carbs100g:   ParseFloat(nut.Get("carbohydrates").String()),
		Source:      avSourceTag,
		Barcode:     models.String(barcode),
	}
	if !rec.Valid() {
		return nil
	}
	return rec
}

func avFromVisibleText(doc *goquery.Document) *models.NutritionRecord {
	text := strings.ToLower(strings.Join(strings.Fields(doc.Text()), " "))

	rec := &models.NutritionRecord{Source: avSourceTag}
	if m := avKcalRe.FindStringSubmatch(text); m != nil {
		rec.Kcal100g = ParseFloat(m[1])
	}
	if m := avProteinRe.FindStringSubmatch(text); m != nil {
		rec.Protein100g = ParseFloat(m[1])
	}
	if m := avFatRe.FindStringSubmatch(text); m != nil {
		rec.Fat100g = ParseFloat(m[1])
	}
	if m := avCarbRe.FindStringSubmatch(text); m != nil {
		rec.Carbs100g = ParseFloat(m[1])
	}
	if !rec.Valid() {
		return nil
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	if title == "" {
		title = "—"
	}
	rec.Name = title

	if m := avBarcodeRe.FindStringSubmatch(text); m != nil {
		rec.Barcode = models.String(m[1])
	}
	return rec
}

func strField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
