package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{"plain", "12.5", floatPtr(12.5)},
		{"comma decimal", "12,5", floatPtr(12.5)},
		{"with unit noise", "150.000 g", floatPtr(150)},
		{"kcal suffix", "379 ккал", floatPtr(379)},
		{"empty", "", nil},
		{"no digits", "n/a", nil},
		{"garbage separators", "..,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestUnwrapValue(t *testing.T) {
	assert.Nil(t, UnwrapValue(nil))

	got := UnwrapValue(42.5)
	require.NotNil(t, got)
	assert.Equal(t, 42.5, *got)

	got = UnwrapValue("42,5 g")
	require.NotNil(t, got)
	assert.Equal(t, 42.5, *got)

	got = UnwrapValue(map[string]interface{}{"@value": "250 kcal"})
	require.NotNil(t, got)
	assert.Equal(t, 250.0, *got)

	got = UnwrapValue(map[string]interface{}{"value": 88.0})
	require.NotNil(t, got)
	assert.Equal(t, 88.0, *got)

	assert.Nil(t, UnwrapValue(map[string]interface{}{"other": 1.0}))
	assert.Nil(t, UnwrapValue([]interface{}{1.0}))
}

func TestParseText(t *testing.T) {
	t.Run("extracts macros from snippet", func(t *testing.T) {
		rec := ParseText("https://shop.example/1", "Granola Bar",
			"Energy 412 kcal. Protein: 8.5 Fat: 14 Carb: 62", "ozon")

		require.NotNil(t, rec)
		assert.Equal(t, "Granola Bar", rec.Name)
		assert.Equal(t, "ozon", rec.Source)
		assert.InDelta(t, 412, *rec.Kcal100g, 0.001)
		assert.InDelta(t, 8.5, *rec.Protein100g, 0.001)
		assert.InDelta(t, 14, *rec.Fat100g, 0.001)
		assert.InDelta(t, 62, *rec.Carbs100g, 0.001)
	})

	t.Run("no macros means nil", func(t *testing.T) {
		assert.Nil(t, ParseText("https://shop.example/1", "Granola Bar", "great taste, buy now", "ozon"))
	})

	t.Run("missing title gets the dash placeholder", func(t *testing.T) {
		rec := ParseText("https://shop.example/1", "", "around 200 kcal", "ozon")
		require.NotNil(t, rec)
		assert.Equal(t, "—", rec.Name)
	})

	t.Run("partial macros are kept", func(t *testing.T) {
		rec := ParseText("https://shop.example/1", "Bar", "around 200 kcal per serving", "ozon")
		require.NotNil(t, rec)
		assert.InDelta(t, 200, *rec.Kcal100g, 0.001)
		assert.Nil(t, rec.Protein100g)
	})
}

func TestParseRecipeSnippet(t *testing.T) {
	t.Run("requires calorie figure", func(t *testing.T) {
		assert.Nil(t, ParseRecipeSnippet("https://recipes.example/1", "Борщ", "белки: 3 г жиры: 4 г углеводы: 7 г"))
	})

	t.Run("calories with macro triple", func(t *testing.T) {
		rec := ParseRecipeSnippet("https://recipes.example/1", "Борщ",
			"93 kcal. белки: 3.2 г жиры: 4.1 г углеводы: 7.0 г")

		require.NotNil(t, rec)
		assert.Equal(t, "generic-recipe", rec.Source)
		assert.InDelta(t, 93, *rec.Kcal100g, 0.001)
		assert.InDelta(t, 3.2, *rec.Protein100g, 0.001)
		assert.InDelta(t, 4.1, *rec.Fat100g, 0.001)
		assert.InDelta(t, 7.0, *rec.Carbs100g, 0.001)
	})

	t.Run("calories alone", func(t *testing.T) {
		rec := ParseRecipeSnippet("https://recipes.example/1", "Борщ", "roughly 93 kcal per 100 g")
		require.NotNil(t, rec)
		assert.Nil(t, rec.Protein100g)
	})
}

func floatPtr(v float64) *float64 { return &v }
