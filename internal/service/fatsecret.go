package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/models"
	"github.com/healco/foodresolver/internal/scrape"
)

const (
	fatSecretSource  = "fatsecret"
	gramsPerOunce    = 28.3495
	gramsPerPound    = 453.592
	maxSearchResults = 10
)

// Food is a structured-provider food record.
type Food struct {
	ID       string
	Name     string
	Brand    string
	Servings []Serving
}

// Serving is one provider-declared quantity/unit pairing with per-serving
// macro values.
type Serving struct {
	MetricAmount string
	MetricUnit   string
	Amount       string
	Unit         string
	Calories     string
	Protein      string
	Fat          string
	Carbohydrate string
}

// FatSecretClient is the authenticated structured nutrition provider client.
// Every operation degrades to (nil, nil) on missing credentials, transport
// failures or malformed bodies; resolution falls through to the next tier.
type FatSecretClient struct {
	key     string
	secret  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewFatSecretClient creates the client. Credentials may be empty, in which
// case the provider reports unavailable and every call returns none.
func NewFatSecretClient(cfg *config.Config, logger *zap.Logger) *FatSecretClient {
	return &FatSecretClient{
		key:     cfg.FatSecretKey,
		secret:  cfg.FatSecretSecret,
		baseURL: "https://platform.fatsecret.com/rest/server.api",
		client:  &http.Client{Timeout: 25 * time.Second},
		logger:  logger,
	}
}

// Available reports whether a key/secret pair is configured.
func (c *FatSecretClient) Available() bool {
	return c.key != "" && c.secret != ""
}

// request performs one signed REST call. Soft failures return an empty
// result with a nil error so callers fall through uniformly.
func (c *FatSecretClient) request(ctx context.Context, method string, params map[string]string) (gjson.Result, bool) {
	if !c.Available() {
		c.logger.Debug("fatsecret credentials not set, skipping call", zap.String("method", method))
		return gjson.Result{}, false
	}

	query := map[string]string{
		"method": method,
		"format": "json",
	}
	for k, v := range params {
		query[k] = v
	}

	signed, err := c.signQuery(http.MethodGet, c.baseURL, query)
	if err != nil {
		c.logger.Warn("failed to sign fatsecret request", zap.Error(err))
		return gjson.Result{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+signed, nil)
	if err != nil {
		c.logger.Warn("failed to create fatsecret request", zap.Error(err))
		return gjson.Result{}, false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("fatsecret request failed", zap.String("method", method), zap.Error(err))
		return gjson.Result{}, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn("failed to read fatsecret response", zap.Error(err))
		return gjson.Result{}, false
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.logger.Error("fatsecret rejected credentials; check key, secret and IP allowlist",
				zap.Int("status", resp.StatusCode))
		} else {
			c.logger.Warn("fatsecret returned non-200",
				zap.String("method", method), zap.Int("status", resp.StatusCode))
		}
		return gjson.Result{}, false
	}

	if !gjson.ValidBytes(body) {
		c.logger.Warn("fatsecret returned malformed JSON", zap.String("method", method))
		return gjson.Result{}, false
	}

	parsed := gjson.ParseBytes(body)
	if errNode := parsed.Get("error"); errNode.Exists() {
		c.logger.Warn("fatsecret API error",
			zap.String("method", method),
			zap.String("message", errNode.Get("message").String()))
		return gjson.Result{}, false
	}

	return parsed, true
}

// FindIDByBarcode resolves a barcode to a provider food id, or "".
func (c *FatSecretClient) FindIDByBarcode(ctx context.Context, barcode string) string {
	res, ok := c.request(ctx, "food.find_id_for_barcode", map[string]string{"barcode": barcode})
	if !ok {
		return ""
	}

	id := res.Get("food_id.value")
	if !id.Exists() {
		id = res.Get("food_id")
	}
	if !id.Exists() {
		id = res.Get("id")
	}
	if id.String() == "" || id.String() == "0" {
		return ""
	}
	return id.String()
}

// GetFood fetches the full detail record for a food id.
func (c *FatSecretClient) GetFood(ctx context.Context, foodID string) *Food {
	res, ok := c.request(ctx, "food.get.v2", map[string]string{"food_id": foodID})
	if !ok {
		return nil
	}

	node := res.Get("food")
	if !node.Exists() {
		node = res
	}
	return foodFromJSON(node)
}

// SearchBest issues a bounded text search, scores the candidates (brand
// present +2, id present +1), and fetches full detail for the winner.
func (c *FatSecretClient) SearchBest(ctx context.Context, query string) *Food {
	res, ok := c.request(ctx, "foods.search", map[string]string{
		"search_expression": query,
		"max_results":       fmt.Sprint(maxSearchResults),
	})
	if !ok {
		return nil
	}

	node := res.Get("foods.food")
	if !node.Exists() {
		node = res.Get("food")
	}
	if !node.Exists() {
		c.logger.Debug("fatsecret search found nothing", zap.String("query", query))
		return nil
	}

	candidates := node.Array()
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	bestScore := -1
	for _, fd := range candidates {
		score := 0
		if fd.Get("brand_name").String() != "" {
			score += 2
		}
		if fd.Get("food_id").String() != "" {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = fd
		}
	}

	foodID := best.Get("food_id").String()
	if foodID == "" {
		c.logger.Warn("fatsecret best match has no food_id", zap.String("query", query))
		return nil
	}
	return c.GetFood(ctx, foodID)
}

// NormalizeServing converts a provider food record to the canonical per-100
// basis using its best metric serving, then applies the requested portion.
// Returns nil when no serving yields a usable macro value.
func NormalizeServing(food *Food, grams, milliliters *float64) *models.NutritionRecord {
	if food == nil || len(food.Servings) == 0 {
		return nil
	}

	best := food.Servings[0]
	bestScore := -1
	for _, sv := range food.Servings {
		unit := strings.ToLower(sv.MetricUnit)
		if unit == "" {
			unit = strings.ToLower(sv.Unit)
		}
		score := 0
		if unit == "g" || unit == "ml" {
			score += 3
		}
		if sv.MetricAmount != "" {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = sv
		}
	}

	amount := scrape.ParseFloat(best.MetricAmount)
	if amount == nil {
		amount = scrape.ParseFloat(best.Amount)
	}
	unit := strings.ToLower(best.MetricUnit)
	if unit == "" {
		unit = strings.ToLower(best.Unit)
	}

	var portionMass float64
	if amount != nil {
		switch unit {
		case "g", "ml":
			portionMass = *amount
		case "oz":
			portionMass = *amount * gramsPerOunce
		case "lb":
			portionMass = *amount * gramsPerPound
		}
	}

	rec := &models.NutritionRecord{
		Name:   food.Name,
		Brand:  models.String(food.Brand),
		Source: fatSecretSource,
	}
	if rec.Name == "" {
		rec.Name = "—"
	}

	if portionMass > 0 {
		k := 100.0 / portionMass
		rec.Kcal100g = scaleBy(scrape.ParseFloat(best.Calories), k)
		rec.Protein100g = scaleBy(scrape.ParseFloat(best.Protein), k)
		rec.Fat100g = scaleBy(scrape.ParseFloat(best.Fat), k)
		rec.Carbs100g = scaleBy(scrape.ParseFloat(best.Carbohydrate), k)
	}

	if !rec.Valid() {
		return nil
	}
	rec.ApplyPortion(grams, milliliters)
	return rec
}

// ResolveBarcode implements NutritionProvider.
func (c *FatSecretClient) ResolveBarcode(ctx context.Context, barcode string, grams, milliliters *float64) (*models.NutritionRecord, error) {
	foodID := c.FindIDByBarcode(ctx, barcode)
	if foodID == "" {
		return nil, nil
	}
	rec := NormalizeServing(c.GetFood(ctx, foodID), grams, milliliters)
	if rec != nil {
		rec.Barcode = models.String(barcode)
	}
	return rec, nil
}

// ResolveQuery implements NutritionProvider.
func (c *FatSecretClient) ResolveQuery(ctx context.Context, query string, grams, milliliters *float64) (*models.NutritionRecord, error) {
	return NormalizeServing(c.SearchBest(ctx, query), grams, milliliters), nil
}

// LookupByName implements scrape.NutritionLookup.
func (c *FatSecretClient) LookupByName(ctx context.Context, name string, grams, milliliters *float64) (*models.NutritionRecord, error) {
	return c.ResolveQuery(ctx, name, grams, milliliters)
}

// LookupByFoodID implements scrape.NutritionLookup.
func (c *FatSecretClient) LookupByFoodID(ctx context.Context, foodID string, grams, milliliters *float64) (*models.NutritionRecord, error) {
	return NormalizeServing(c.GetFood(ctx, foodID), grams, milliliters), nil
}

// signQuery produces the OAuth1 HMAC-SHA1 signed query string. The provider
// requires every parameter, the method name included, in the signed payload
// and the signature itself passed as query parameters.
func (c *FatSecretClient) signQuery(httpMethod, baseURL string, params map[string]string) (string, error) {
	nonce, err := makeNonce()
	if err != nil {
		return "", err
	}

	all := map[string]string{
		"oauth_consumer_key":     c.key,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprint(time.Now().Unix()),
		"oauth_version":          "1.0",
	}
	for k, v := range params {
		all[k] = v
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(all[k]))
	}
	paramString := strings.Join(pairs, "&")

	base := strings.ToUpper(httpMethod) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)

	// No token secret: the signing key ends with a bare ampersand.
	mac := hmac.New(sha1.New, []byte(percentEncode(c.secret)+"&"))
	mac.Write([]byte(base))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return paramString + "&oauth_signature=" + percentEncode(signature), nil
}

// percentEncode implements RFC 3986 encoding as OAuth1 requires (spaces as
// %20, uppercase hex), which url.QueryEscape does not produce.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9',
			ch == '-', ch == '.', ch == '_', ch == '~':
			b.WriteByte(ch)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", ch))
		}
	}
	return b.String()
}

func makeNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func foodFromJSON(node gjson.Result) *Food {
	if !node.Exists() || !node.IsObject() {
		return nil
	}

	food := &Food{
		ID:    node.Get("food_id").String(),
		Name:  strings.TrimSpace(node.Get("food_name").String()),
		Brand: node.Get("brand_name").String(),
	}

	servings := node.Get("servings.serving")
	appendServing := func(sv gjson.Result) {
		food.Servings = append(food.Servings, Serving{
			MetricAmount: sv.Get("metric_serving_amount").String(),
			MetricUnit:   sv.Get("metric_serving_unit").String(),
			Amount:       sv.Get("serving_amount").String(),
			Unit:         sv.Get("serving_unit").String(),
			Calories:     sv.Get("calories").String(),
			Protein:      sv.Get("protein").String(),
			Fat:          sv.Get("fat").String(),
			Carbohydrate: sv.Get("carbohydrate").String(),
		})
	}
	if servings.IsArray() {
		for _, sv := range servings.Array() {
			appendServing(sv)
		}
	} else if servings.Exists() {
		appendServing(servings)
	}

	return food
}

func scaleBy(v *float64, k float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * k
	return &out
}
