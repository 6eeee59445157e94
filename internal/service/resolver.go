package service

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/cache"
	"github.com/healco/foodresolver/internal/models"
	"github.com/healco/foodresolver/internal/query"
	"github.com/healco/foodresolver/internal/scrape"
)

const (
	brandedResultCount = 8
	generalResultCount = 10
)

var snippetImageRe = regexp.MustCompile(`https?://[^\s]+?\.(?:jpe?g|png|gif|bmp)`)

// ResolveRequest carries one food query and its portion/locale hints.
type ResolveRequest struct {
	QueryText   string
	Grams       *float64
	Milliliters *float64
	Lang        string
	Country     string
	UserID      int64
}

// Resolver coordinates the resolution cascade: structured provider first,
// then web search, then the concurrent scrape/OCR fan-out. Results are
// normalized, ranked and cached under the full query identity.
type Resolver struct {
	provider NutritionProvider
	search   WebSearcher
	ocr      OCRExtractor
	registry *scrape.Registry
	store    cache.Store

	schema      string
	searchTTL   time.Duration
	maxQueryLen int
	logger      *zap.Logger
}

// NewResolver wires the cascade together. All dependencies are constructed at
// startup and shared across concurrent resolutions; only the cache store and
// the scrapers' rate limiter hold cross-request state.
func NewResolver(cfg *config.Config, provider NutritionProvider, search WebSearcher, ocr OCRExtractor, registry *scrape.Registry, store cache.Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		provider:    provider,
		search:      search,
		ocr:         ocr,
		registry:    registry,
		store:       store,
		schema:      cfg.CacheSchema,
		searchTTL:   cfg.SearchCacheTTL,
		maxQueryLen: cfg.MaxQueryLen,
		logger:      logger,
	}
}

// Resolve runs the full cascade for one query. Provider failures degrade to
// fallthrough; the worst-case outcome is an empty list, never an error.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) []models.NutritionRecord {
	raw := strings.TrimSpace(req.QueryText)
	clean := query.Normalize(raw)

	grams := req.Grams
	milliliters := req.Milliliters
	if grams == nil && milliliters == nil {
		grams = query.ExtractGrams(raw)
		milliliters = query.ExtractMilliliters(raw)
	}
	lang := req.Lang
	if lang == "" {
		lang = query.ExtractLang(raw)
	}
	country := req.Country
	if country == "" {
		country = query.ExtractCountry(raw)
	}

	log := r.logger.With(
		zap.String("resolution_id", uuid.NewString()),
		zap.String("query", clean),
		zap.Int64("user_id", req.UserID),
	)
	log.Debug("resolving query", zap.String("category", query.GuessCategory(raw)))

	searchKey := r.searchKey(clean, grams, milliliters, lang, country)
	if cached, ok := r.cachedList(ctx, searchKey); ok {
		log.Debug("resolved from search cache")
		return cached
	}

	// Tier 0 must complete before any fan-out begins.
	if records := r.resolveStructured(ctx, log, raw, clean, grams, milliliters); records != nil {
		return records
	}

	// Quantity tokens are kept in the cache identity but stripped from the
	// web-search text, where they only add noise.
	searchText := query.StripQuantities(raw)
	if searchText == "" {
		searchText = clean
	}

	items := r.resolveSearch(ctx, log, searchText)
	candidates := r.fanOut(ctx, log, searchText, items, grams, milliliters)

	sortRecords(candidates)

	// An empty list is cached too: repeated misses stay cheap until the TTL
	// lapses. A failed write must not cost the caller its results.
	if err := cache.PutJSON(ctx, r.store, searchKey, candidates, r.searchTTL); err != nil {
		log.Error("failed to cache search results", zap.Error(err))
	}

	log.Info("resolution finished", zap.Int("candidates", len(candidates)))
	return candidates
}

// resolveStructured is Tier 0: barcode path, then text path, against the
// structured provider. A valid hit short-circuits the whole resolution.
func (r *Resolver) resolveStructured(ctx context.Context, log *zap.Logger, raw, clean string, grams, milliliters *float64) []models.NutritionRecord {
	if !r.provider.Available() {
		return nil
	}

	if barcode := query.ExtractBarcode(raw); barcode != "" {
		key := r.scopedKey("fs:bar", barcode, grams, milliliters)
		if cached, ok := r.cachedList(ctx, key); ok {
			log.Debug("barcode resolved from cache", zap.String("barcode", barcode))
			return cached
		}

		rec, err := r.provider.ResolveBarcode(ctx, barcode, grams, milliliters)
		if err != nil {
			log.Warn("barcode lookup failed", zap.String("barcode", barcode), zap.Error(err))
		}
		if rec != nil && rec.Kcal100g != nil {
			records := []models.NutritionRecord{*rec}
			if err := cache.PutJSON(ctx, r.store, key, records, r.searchTTL); err != nil {
				log.Error("failed to cache barcode result", zap.Error(err))
			}
			log.Info("resolved via barcode", zap.String("barcode", barcode))
			return records
		}
	}

	key := r.scopedKey("fs:q", clean, grams, milliliters)
	if cached, ok := r.cachedList(ctx, key); ok {
		log.Debug("text query resolved from provider cache")
		return cached
	}

	rec, err := r.provider.ResolveQuery(ctx, clean, grams, milliliters)
	if err != nil {
		log.Warn("structured text search failed", zap.Error(err))
	}
	if rec != nil && rec.Kcal100g != nil {
		records := []models.NutritionRecord{*rec}
		if err := cache.PutJSON(ctx, r.store, key, records, r.searchTTL); err != nil {
			log.Error("failed to cache provider result", zap.Error(err))
		}
		log.Info("resolved via structured provider", zap.String("name", rec.Name))
		return records
	}

	return nil
}

// resolveSearch is Tier 1: branded domain-scoped search first, then a general
// search for short enough queries.
func (r *Resolver) resolveSearch(ctx context.Context, log *zap.Logger, clean string) []models.SearchItem {
	items, err := r.search.SearchBranded(ctx, clean, brandedResultCount)
	if err != nil {
		log.Warn("branded search failed", zap.Error(err))
	}
	if len(items) == 0 && utf8.RuneCountInString(clean) <= r.maxQueryLen {
		items, err = r.search.SearchGeneral(ctx, clean, generalResultCount)
		if err != nil {
			log.Warn("general search failed", zap.Error(err))
		}
	}
	return items
}

// fanOut is Tier 2: every search item is routed to exactly one handler and
// all handlers run concurrently. A handler failure is isolated; it
// contributes nothing and never cancels its siblings.
func (r *Resolver) fanOut(ctx context.Context, log *zap.Logger, clean string, items []models.SearchItem, grams, milliliters *float64) []models.NutritionRecord {
	var (
		mu         sync.Mutex
		candidates []models.NutritionRecord
	)
	g := new(errgroup.Group)

	for _, item := range items {
		item := item
		g.Go(func() error {
			records := r.handleItem(ctx, log, clean, item, grams, milliliters)
			if len(records) == 0 {
				return nil
			}
			mu.Lock()
			candidates = append(candidates, records...)
			mu.Unlock()
			return nil
		})
	}

	// Handlers never return errors; Wait only joins the batch.
	_ = g.Wait()
	return candidates
}

func (r *Resolver) handleItem(ctx context.Context, log *zap.Logger, clean string, item models.SearchItem, grams, milliliters *float64) []models.NutritionRecord {
	if h := r.registry.Route(item.Link); h != nil {
		records, err := h.Parse(ctx, item, grams, milliliters)
		if err != nil {
			log.Warn("scrape handler failed",
				zap.String("handler", h.Name()), zap.String("url", item.Link), zap.Error(err))
			return nil
		}
		return validOnly(records)
	}

	// Unmatched links get cheaper treatment first: a recipe-style snippet
	// parse, then OCR over a product image.
	if rec := scrape.ParseRecipeSnippet(item.Link, item.Title, item.Snippet); rec != nil {
		rec.ApplyPortion(grams, milliliters)
		return validOnly([]models.NutritionRecord{*rec})
	}

	if !r.ocr.Available() {
		return nil
	}

	imageURL := snippetImageRe.FindString(item.Snippet)
	if imageURL == "" {
		var err error
		imageURL, err = r.search.SearchImage(ctx, clean+" nutrition facts")
		if err != nil || imageURL == "" {
			return nil
		}
	}

	rec, err := r.ocr.ExtractRecord(ctx, imageURL, item.Link, item.Title, grams, milliliters)
	if err != nil {
		log.Warn("OCR fallback failed", zap.String("image", imageURL), zap.Error(err))
		return nil
	}
	if rec == nil {
		return nil
	}
	return validOnly([]models.NutritionRecord{*rec})
}

// cachedList reads a cached record list, tolerating a single record stored
// bare instead of as a one-element list. Undecodable payloads count as a
// miss so a poisoned entry gets recomputed rather than served.
func (r *Resolver) cachedList(ctx context.Context, key string) ([]models.NutritionRecord, bool) {
	payload, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var records []models.NutritionRecord
	if err := json.Unmarshal(payload, &records); err == nil {
		return records, true
	}

	var single models.NutritionRecord
	if err := json.Unmarshal(payload, &single); err == nil {
		return []models.NutritionRecord{single}, true
	}
	return nil, false
}

func (r *Resolver) searchKey(clean string, grams, milliliters *float64, lang, country string) string {
	return strings.Join([]string{
		"search", r.schema, clean, fmtAmount(grams), fmtAmount(milliliters), lang, country,
	}, ":")
}

func (r *Resolver) scopedKey(ns, ident string, grams, milliliters *float64) string {
	return strings.Join([]string{ns, r.schema, ident, fmtAmount(grams), fmtAmount(milliliters)}, ":")
}

func fmtAmount(v *float64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// sortRecords orders candidates deterministically: records with a known
// kcal_100g first, then alphabetically by name.
func sortRecords(records []models.NutritionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		iHas := records[i].Kcal100g != nil
		jHas := records[j].Kcal100g != nil
		if iHas != jHas {
			return iHas
		}
		return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
	})
}

func validOnly(records []models.NutritionRecord) []models.NutritionRecord {
	out := records[:0]
	for _, rec := range records {
		if rec.Valid() {
			out = append(out, rec)
		}
	}
	return out
}
