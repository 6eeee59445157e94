package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healco/foodresolver/internal/models"
)

type fakeLookup struct {
	byName   *models.NutritionRecord
	byFoodID *models.NutritionRecord
	err      error

	nameQueries []string
	idQueries   []string
}

func (l *fakeLookup) LookupByName(_ context.Context, name string, _, _ *float64) (*models.NutritionRecord, error) {
	l.nameQueries = append(l.nameQueries, name)
	return l.byName, l.err
}

func (l *fakeLookup) LookupByFoodID(_ context.Context, foodID string, _, _ *float64) (*models.NutritionRecord, error) {
	l.idQueries = append(l.idQueries, foodID)
	return l.byFoodID, l.err
}

func TestRetailScraper(t *testing.T) {
	item := models.SearchItem{
		Link:    "https://www.ozon.ru/product/batonchik-123/",
		Title:   "Snack Bar",
		Snippet: "412 kcal Protein: 8.5 Fat: 14 Carb: 62",
	}

	t.Run("match", func(t *testing.T) {
		s := NewRetailScraper(&fakeLookup{}, zap.NewNop())
		assert.True(t, s.Match("https://www.ozon.ru/product/x"))
		assert.True(t, s.Match("https://www.wildberries.ru/catalog/1"))
		assert.False(t, s.Match("https://av.ru/i/1/"))
	})

	t.Run("structured upgrade wins over draft", func(t *testing.T) {
		upgrade := models.NutritionRecord{
			Name:     "Snack Bar (verified)",
			Kcal100g: models.Float(405),
			Source:   "fatsecret",
		}
		lookup := &fakeLookup{byName: &upgrade}
		s := NewRetailScraper(lookup, zap.NewNop())

		records, err := s.Parse(context.Background(), item, nil, nil)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Snack Bar (verified)", records[0].Name)
		assert.InDelta(t, 405, *records[0].Kcal100g, 0.001)
		require.NotNil(t, records[0].SourceURL)
		assert.Equal(t, item.Link, *records[0].SourceURL)
		assert.Equal(t, []string{"Snack Bar"}, lookup.nameQueries)
	})

	t.Run("draft kept when no structured match", func(t *testing.T) {
		s := NewRetailScraper(&fakeLookup{}, zap.NewNop())

		records, err := s.Parse(context.Background(), item, models.Float(40), nil)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Snack Bar", records[0].Name)
		assert.Equal(t, "ozon", records[0].Source)
		assert.InDelta(t, 412, *records[0].Kcal100g, 0.001)
		assert.InDelta(t, 164.8, *records[0].KcalPortion, 0.001)
	})

	t.Run("draft kept when lookup errors", func(t *testing.T) {
		s := NewRetailScraper(&fakeLookup{err: errors.New("timeout")}, zap.NewNop())

		records, err := s.Parse(context.Background(), item, nil, nil)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Snack Bar", records[0].Name)
	})

	t.Run("wildberries source tag", func(t *testing.T) {
		wb := item
		wb.Link = "https://www.wildberries.ru/catalog/987/detail.aspx"
		s := NewRetailScraper(&fakeLookup{}, zap.NewNop())

		records, err := s.Parse(context.Background(), wb, nil, nil)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "wildberries", records[0].Source)
	})

	t.Run("snippet without calories yields nothing", func(t *testing.T) {
		bare := item
		bare.Snippet = "buy now, fast delivery"
		lookup := &fakeLookup{}
		s := NewRetailScraper(lookup, zap.NewNop())

		records, err := s.Parse(context.Background(), bare, nil, nil)

		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, lookup.nameQueries)
	})
}

func TestFatSecretItemHandler(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		h := NewFatSecretItemHandler(&fakeLookup{})
		assert.True(t, h.Match("https://www.fatsecret.ru/калории-питание/generic/food?foodid=123"))
		assert.True(t, h.Match("https://www.fatsecret.com/calories-nutrition/generic/rice?food_id=456"))
		assert.False(t, h.Match("https://av.ru/i/1/"))
	})

	t.Run("food id lifted from url", func(t *testing.T) {
		rec := models.NutritionRecord{Name: "Rice", Kcal100g: models.Float(130), Source: "fatsecret"}
		lookup := &fakeLookup{byFoodID: &rec}
		h := NewFatSecretItemHandler(lookup)

		item := models.SearchItem{Link: "https://www.fatsecret.ru/food?foodid=3092"}
		records, err := h.Parse(context.Background(), item, nil, nil)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, []string{"3092"}, lookup.idQueries)
		require.NotNil(t, records[0].SourceURL)
		assert.Equal(t, item.Link, *records[0].SourceURL)
	})

	t.Run("url without food id yields nothing", func(t *testing.T) {
		lookup := &fakeLookup{}
		h := NewFatSecretItemHandler(lookup)

		records, err := h.Parse(context.Background(), models.SearchItem{Link: "https://www.fatsecret.ru/diary"}, nil, nil)

		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, lookup.idQueries)
	})

	t.Run("record without calories is dropped", func(t *testing.T) {
		rec := models.NutritionRecord{Name: "Rice", Protein100g: models.Float(2.7), Source: "fatsecret"}
		h := NewFatSecretItemHandler(&fakeLookup{byFoodID: &rec})

		records, err := h.Parse(context.Background(), models.SearchItem{Link: "https://www.fatsecret.ru/food?foodid=3092"}, nil, nil)

		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestRegistryRoute(t *testing.T) {
	av := newTestAvRuScraper(1, newFakePageStore())
	retail := NewRetailScraper(&fakeLookup{}, zap.NewNop())
	fs := NewFatSecretItemHandler(&fakeLookup{})
	reg := NewRegistry(fs, av, retail)

	assert.Equal(t, "avru", reg.Route("https://av.ru/i/12345/").Name())
	assert.Equal(t, "retail", reg.Route("https://www.ozon.ru/product/x").Name())
	assert.Equal(t, "fatsecret-item", reg.Route("https://www.fatsecret.ru/food?foodid=1").Name())
	assert.Nil(t, reg.Route("https://blog.example/post"))
}
