package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healco/foodresolver/internal/models"
)

func newFatSecretTestClient(serverURL string) *FatSecretClient {
	return &FatSecretClient{
		key:     "test-key",
		secret:  "test-secret",
		baseURL: serverURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  zap.NewNop(),
	}
}

const foodDetailBody = `{
	"food": {
		"food_id": "33691",
		"food_name": "Greek Yogurt",
		"brand_name": "Fage",
		"servings": {
			"serving": [
				{
					"metric_serving_amount": "150.000",
					"metric_serving_unit": "g",
					"calories": "300",
					"protein": "15.00",
					"fat": "9.00",
					"carbohydrate": "36.00"
				},
				{
					"serving_amount": "1.000",
					"serving_unit": "cup",
					"calories": "290"
				}
			]
		}
	}
}`

func TestFatSecretClient(t *testing.T) {
	t.Run("unavailable without credentials", func(t *testing.T) {
		c := newFatSecretTestClient("http://127.0.0.1:0")
		c.key = ""

		assert.False(t, c.Available())

		rec, err := c.ResolveQuery(context.Background(), "yogurt", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("signed query carries oauth parameters", func(t *testing.T) {
		var seen map[string][]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Query()
			fmt.Fprint(w, `{"food_id":{"value":"0"}}`)
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		c.FindIDByBarcode(context.Background(), "4601234567890")

		require.NotNil(t, seen)
		assert.Equal(t, "test-key", seen["oauth_consumer_key"][0])
		assert.Equal(t, "HMAC-SHA1", seen["oauth_signature_method"][0])
		assert.NotEmpty(t, seen["oauth_nonce"][0])
		assert.NotEmpty(t, seen["oauth_signature"][0])
		assert.Equal(t, "food.find_id_for_barcode", seen["method"][0])
		assert.Equal(t, "json", seen["format"][0])
	})

	t.Run("barcode id zero means no match", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"food_id":{"value":"0"}}`)
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		assert.Empty(t, c.FindIDByBarcode(context.Background(), "4601234567890"))
	})

	t.Run("resolve barcode attaches barcode", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("method") {
			case "food.find_id_for_barcode":
				fmt.Fprint(w, `{"food_id":{"value":"33691"}}`)
			case "food.get.v2":
				fmt.Fprint(w, foodDetailBody)
			default:
				t.Errorf("unexpected method %q", r.URL.Query().Get("method"))
			}
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		rec, err := c.ResolveBarcode(context.Background(), "4601234567890", nil, nil)

		require.NoError(t, err)
		require.NotNil(t, rec)
		require.NotNil(t, rec.Barcode)
		assert.Equal(t, "4601234567890", *rec.Barcode)
		assert.Equal(t, "Greek Yogurt", rec.Name)
	})

	t.Run("search prefers branded candidates", func(t *testing.T) {
		var fetched string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("method") {
			case "foods.search":
				fmt.Fprint(w, `{"foods":{"food":[
					{"food_id":"1","food_name":"yogurt, plain"},
					{"food_id":"2","food_name":"Greek Yogurt","brand_name":"Fage"}
				]}}`)
			case "food.get.v2":
				fetched = r.URL.Query().Get("food_id")
				fmt.Fprint(w, foodDetailBody)
			}
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		food := c.SearchBest(context.Background(), "yogurt")

		require.NotNil(t, food)
		assert.Equal(t, "2", fetched)
	})

	t.Run("search handles single object shape", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("method") {
			case "foods.search":
				fmt.Fprint(w, `{"foods":{"food":{"food_id":"7","food_name":"Kefir"}}}`)
			case "food.get.v2":
				fmt.Fprint(w, `{"food":{"food_id":"7","food_name":"Kefir","servings":{"serving":{
					"metric_serving_amount":"100.000","metric_serving_unit":"g","calories":"41"}}}}`)
			}
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		food := c.SearchBest(context.Background(), "kefir")

		require.NotNil(t, food)
		assert.Equal(t, "Kefir", food.Name)
		require.Len(t, food.Servings, 1)
	})

	t.Run("api error payload yields none", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"error":{"code":106,"message":"Invalid ID"}}`)
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		assert.Nil(t, c.GetFood(context.Background(), "999"))
	})

	t.Run("server error yields none", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newFatSecretTestClient(srv.URL)
		rec, err := c.ResolveQuery(context.Background(), "yogurt", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestNormalizeServing(t *testing.T) {
	t.Run("metric serving scaled to per-100", func(t *testing.T) {
		food := &Food{
			Name:  "Greek Yogurt",
			Brand: "Fage",
			Servings: []Serving{
				{MetricAmount: "150.000", MetricUnit: "g", Calories: "300", Protein: "15.00", Fat: "9.00", Carbohydrate: "36.00"},
			},
		}

		rec := NormalizeServing(food, models.Float(150), nil)

		require.NotNil(t, rec)
		assert.InDelta(t, 200, *rec.Kcal100g, 0.01)
		assert.InDelta(t, 10, *rec.Protein100g, 0.01)
		assert.InDelta(t, 6, *rec.Fat100g, 0.01)
		assert.InDelta(t, 24, *rec.Carbs100g, 0.01)
		assert.InDelta(t, 300, *rec.KcalPortion, 0.01)
		require.NotNil(t, rec.Brand)
		assert.Equal(t, "Fage", *rec.Brand)
		assert.Equal(t, "fatsecret", rec.Source)
	})

	t.Run("gram serving preferred over household unit", func(t *testing.T) {
		food := &Food{
			Name: "Oats",
			Servings: []Serving{
				{Amount: "1.000", Unit: "cup", Calories: "307"},
				{MetricAmount: "100.000", MetricUnit: "g", Calories: "379"},
			},
		}

		rec := NormalizeServing(food, nil, nil)

		require.NotNil(t, rec)
		assert.InDelta(t, 379, *rec.Kcal100g, 0.01)
	})

	t.Run("ounce serving converted to grams", func(t *testing.T) {
		food := &Food{
			Name: "Cheddar",
			Servings: []Serving{
				{Amount: "1.000", Unit: "oz", Calories: "113"},
			},
		}

		rec := NormalizeServing(food, nil, nil)

		require.NotNil(t, rec)
		assert.InDelta(t, 113*100/28.3495, *rec.Kcal100g, 0.01)
	})

	t.Run("nameless food gets the dash placeholder", func(t *testing.T) {
		food := &Food{
			Servings: []Serving{
				{MetricAmount: "100.000", MetricUnit: "g", Calories: "41"},
			},
		}

		rec := NormalizeServing(food, nil, nil)

		require.NotNil(t, rec)
		assert.Equal(t, "—", rec.Name)
	})

	t.Run("unusable servings yield nil", func(t *testing.T) {
		food := &Food{
			Name: "Mystery",
			Servings: []Serving{
				{Amount: "1.000", Unit: "cup", Calories: "290"},
			},
		}

		assert.Nil(t, NormalizeServing(food, nil, nil))
		assert.Nil(t, NormalizeServing(nil, nil, nil))
		assert.Nil(t, NormalizeServing(&Food{Name: "Empty"}, nil, nil))
	})
}
