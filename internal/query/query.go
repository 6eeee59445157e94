// Package query holds the free-form food query text helpers: normalization,
// barcode detection, and portion/language/country hints parsed out of the
// raw text.
package query

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	punctRe   = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	spaceRe   = regexp.MustCompile(`\s+`)
	barcodeRe = regexp.MustCompile(`\b(\d{8,14})\b`)
	// RE2 word boundaries are ASCII-only, so the Cyrillic unit alternatives
	// must not rely on \b.
	gramsRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:g\b|грамм\p{L}*|гр)`)
	milliliterRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:ml\b|мл)`)
	quantityRe   = regexp.MustCompile(`(?i)\b\d+[.,]?\d*\s*(?:kg\b|g\b|ml\b|l\b|литр\p{L}*|мл|гр|л)`)
	trailingInRe = regexp.MustCompile(`in\s+([a-zA-Z]+)$`)
)

// Normalize lowercases the text, strips punctuation (keeping hyphens) and
// collapses whitespace.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = punctRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// ExtractBarcode returns the first 8-14 digit token, or "".
func ExtractBarcode(text string) string {
	m := barcodeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractGrams returns a gram quantity mentioned in the text, or nil.
func ExtractGrams(text string) *float64 {
	return matchQuantity(gramsRe, text)
}

// ExtractMilliliters returns a milliliter quantity mentioned in the text, or nil.
func ExtractMilliliters(text string) *float64 {
	return matchQuantity(milliliterRe, text)
}

func matchQuantity(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// StripQuantities removes simple quantity expressions from a normalized query.
func StripQuantities(text string) string {
	clean := quantityRe.ReplaceAllString(Normalize(text), "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(clean, " "))
}

// GuessCountry guesses a country code from keywords in the query.
func GuessCountry(text string) string {
	ql := strings.ToLower(text)
	switch {
	case containsAny(ql, "россия", "рф", "москва"):
		return "ru"
	case containsAny(ql, "украина", "україна"):
		return "ua"
	case containsAny(ql, "беларусь", "белоруссия"):
		return "by"
	case strings.Contains(ql, "казахстан"):
		return "kz"
	}
	return "us"
}

// GuessLang guesses a language code from keywords in the query.
func GuessLang(text string) string {
	ql := strings.ToLower(text)
	if containsAny(ql, "апельсин", "банан", "яблоко", "молоко") {
		return "ru"
	}
	return "en"
}

// ExtractCountry honors a trailing "in <country>" clause before falling back
// to keyword guessing.
func ExtractCountry(text string) string {
	if m := trailingInRe.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return GuessCountry(text)
}

var langNames = map[string]string{
	"french":  "fr",
	"german":  "de",
	"spanish": "es",
	"russian": "ru",
}

// ExtractLang honors a trailing "in <language>" clause before falling back to
// keyword guessing.
func ExtractLang(text string) string {
	if m := trailingInRe.FindStringSubmatch(text); m != nil {
		if code, ok := langNames[strings.ToLower(m[1])]; ok {
			return code
		}
	}
	return GuessLang(text)
}

var categories = []struct {
	name  string
	words []string
}{
	{"Fruits", []string{"apple", "pear", "banana", "orange", "grape", "strawberry", "fruit"}},
	{"Vegetables", []string{"carrot", "broccoli", "spinach", "potato", "tomato", "vegetable"}},
	{"Meat & Poultry", []string{"chicken", "beef", "pork", "fish", "meat", "egg"}},
	{"Dairy", []string{"milk", "cheese", "yogurt", "butter"}},
	{"Grains & Pasta", []string{"bread", "rice", "pasta", "cereal", "flour", "oats"}},
	{"Oils & Fats", []string{"oil", "sugar", "salt", "spice", "sauce", "dressing"}},
	{"Beverages", []string{"water", "juice", "tea", "coffee", "soda", "drink"}},
}

// GuessCategory classifies the query into a coarse food category. The result
// is informational only and never gates resolution.
func GuessCategory(text string) string {
	ql := strings.ToLower(text)
	for _, cat := range categories {
		if containsAny(ql, cat.words...) {
			return cat.name
		}
	}
	return "Unknown"
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
