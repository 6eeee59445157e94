package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/healco/foodresolver/internal/models"
)

var (
	noiseRe = regexp.MustCompile(`[^\d,.\-]`)

	kcalRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:kcal|cal)\b`)
	proteinRe = regexp.MustCompile(`(?i)protein[:\s]+([\d.]+)`)
	fatRe     = regexp.MustCompile(`(?i)fat[:\s]+([\d.]+)`)
	carbRe    = regexp.MustCompile(`(?i)carb[:\s]+([\d.]+)`)

	recipeMacrosRe = regexp.MustCompile(`(?i)(?:protein|белки)[:\s]+([\d.]+)\s*г.*?(?:fat|жиры)[:\s]+([\d.]+)\s*г.*?(?:carbs|углеводы)[:\s]+([\d.]+)\s*г`)
)

// ParseFloat converts a provider-supplied value to a float, tolerating comma
// decimal separators and surrounding noise. Returns nil when nothing numeric
// remains.
func ParseFloat(v string) *float64 {
	s := noiseRe.ReplaceAllString(v, "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// UnwrapValue reduces nested value-object representations such as
// {"@value": x} or {"value": x} down to a plain float.
func UnwrapValue(v interface{}) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case string:
		return ParseFloat(t)
	case map[string]interface{}:
		if inner, ok := t["@value"]; ok {
			return UnwrapValue(inner)
		}
		if inner, ok := t["value"]; ok {
			return UnwrapValue(inner)
		}
		return nil
	default:
		return nil
	}
}

// ParseText is the generic heuristic parser: it extracts calorie and macro
// keyword-number pairs from free text (search snippets, OCR output). Returns
// nil when no macro at all is found.
func ParseText(url, title, text, source string) *models.NutritionRecord {
	full := title + " " + text

	rec := &models.NutritionRecord{
		Name:      strings.TrimSpace(title),
		Source:    source,
		SourceURL: models.String(url),
	}
	if rec.Name == "" {
		rec.Name = "—"
	}

	if m := kcalRe.FindStringSubmatch(full); m != nil {
		rec.Kcal100g = ParseFloat(m[1])
	}
	if m := proteinRe.FindStringSubmatch(full); m != nil {
		rec.Protein100g = ParseFloat(m[1])
	}
	if m := fatRe.FindStringSubmatch(full); m != nil {
		rec.Fat100g = ParseFloat(m[1])
	}
	if m := carbRe.FindStringSubmatch(full); m != nil {
		rec.Carbs100g = ParseFloat(m[1])
	}

	if !rec.Valid() {
		return nil
	}
	return rec
}

// ParseRecipeSnippet extracts recipe-style nutrition from a search snippet:
// a calorie figure plus an optional protein/fat/carbs triple. Unlike
// ParseText it requires the calorie figure.
func ParseRecipeSnippet(url, title, snippet string) *models.NutritionRecord {
	m := kcalRe.FindStringSubmatch(snippet)
	if m == nil {
		return nil
	}

	rec := &models.NutritionRecord{
		Name:      strings.TrimSpace(title),
		Source:    "generic-recipe",
		SourceURL: models.String(url),
		Kcal100g:  ParseFloat(m[1]),
	}
	if rec.Name == "" {
		rec.Name = "—"
	}

	if mm := recipeMacrosRe.FindStringSubmatch(snippet); mm != nil {
		rec.Protein100g = ParseFloat(mm[1])
		rec.Fat100g = ParseFloat(mm[2])
		rec.Carbs100g = ParseFloat(mm[3])
	}
	return rec
}
