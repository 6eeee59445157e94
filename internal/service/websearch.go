package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/models"
)

// brandedDomains is the allowlist for the branded search pass.
const brandedDomains = "fatsecret.com,fatsecret.ru,ozon.ru,wildberries.ru,av.ru"

// brandedSuffix is appended to branded queries to bias results toward
// nutrition-fact pages on the allowlisted sites.
const brandedSuffix = " калорийность белки жиры углеводы" +
	" site:av.ru OR site:fatsecret.ru OR site:fatsecret.com OR site:ozon.ru OR site:wildberries.ru" +
	" OR site:perekrestok.ru OR site:lenta.ru"

// CSEClient issues Google Custom Search queries. Missing credentials yield
// empty results, never an error.
type CSEClient struct {
	key     string
	cx      string
	baseURL string
	ua      string
	client  *http.Client
	logger  *zap.Logger
}

func NewCSEClient(cfg *config.Config, logger *zap.Logger) *CSEClient {
	return &CSEClient{
		key:     cfg.GoogleCSEKey,
		cx:      cfg.GoogleCSEID,
		baseURL: "https://www.googleapis.com/customsearch/v1",
		ua:      cfg.UserAgent,
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  logger,
	}
}

type searchOptions struct {
	num          int
	imageSearch  bool
	domainFilter string
	restrict     bool // true = restrict to filter domains, false = exclude them
}

func (c *CSEClient) search(ctx context.Context, query string, opts searchOptions) ([]models.SearchItem, error) {
	if c.key == "" || c.cx == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("key", c.key)
	params.Set("cx", c.cx)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(opts.num))
	if opts.imageSearch {
		params.Set("searchType", "image")
	}
	if opts.domainFilter != "" {
		params.Set("siteSearch", opts.domainFilter)
		if opts.restrict {
			params.Set("siteSearchFilter", "i")
		} else {
			params.Set("siteSearchFilter", "e")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("web search request failed", zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("web search returned non-200", zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var body struct {
		Items []models.SearchItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("failed to decode search response", zap.Error(err))
		return nil, nil
	}

	items := make([]models.SearchItem, 0, len(body.Items))
	for _, it := range body.Items {
		if it.Link != "" {
			items = append(items, it)
		}
	}
	return items, nil
}

// SearchBranded restricts the search to the branded-domain allowlist and
// appends the macro-keyword suffix.
func (c *CSEClient) SearchBranded(ctx context.Context, query string, num int) ([]models.SearchItem, error) {
	return c.search(ctx, query+brandedSuffix, searchOptions{
		num:          num,
		domainFilter: brandedDomains,
		restrict:     true,
	})
}

// SearchGeneral issues an unrestricted web search.
func (c *CSEClient) SearchGeneral(ctx context.Context, query string, num int) ([]models.SearchItem, error) {
	return c.search(ctx, query, searchOptions{num: num})
}

// SearchImage returns the single best image link for the query, or "".
func (c *CSEClient) SearchImage(ctx context.Context, query string) (string, error) {
	items, err := c.search(ctx, query, searchOptions{num: 1, imageSearch: true})
	if err != nil || len(items) == 0 {
		return "", err
	}
	return items[0].Link, nil
}
