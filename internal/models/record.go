package models

// NutritionRecord is the canonical per-100 g/ml macro representation every
// provider result is normalized into. Records are immutable once produced.
type NutritionRecord struct {
	Name  string  `json:"name"`
	Brand *string `json:"brand"`

	Kcal100g    *float64 `json:"kcal_100g"`
	Protein100g *float64 `json:"protein_100g"`
	Fat100g     *float64 `json:"fat_100g"`
	Carbs100g   *float64 `json:"carbs_100g"`

	Source    string  `json:"source"`
	SourceURL *string `json:"source_url"`
	Barcode   *string `json:"barcode,omitempty"`

	PortionG  *float64 `json:"portion_g"`
	PortionML *float64 `json:"portion_ml"`

	KcalPortion    *float64 `json:"kcal_portion"`
	ProteinPortion *float64 `json:"protein_portion"`
	FatPortion     *float64 `json:"fat_portion"`
	CarbsPortion   *float64 `json:"carbs_portion"`
}

// Valid reports whether the record carries at least one usable macro value.
// Records failing this check are discarded, never returned to callers.
func (r *NutritionRecord) Valid() bool {
	return r.Kcal100g != nil || r.Protein100g != nil || r.Fat100g != nil || r.Carbs100g != nil
}

// ApplyPortion echoes the requested portion through the record and derives
// portion-absolute values from the per-100 fields. Grams take precedence over
// milliliters when both are given.
func (r *NutritionRecord) ApplyPortion(grams, milliliters *float64) {
	r.PortionG = grams
	r.PortionML = milliliters

	var amount *float64
	if grams != nil {
		amount = grams
	} else if milliliters != nil {
		amount = milliliters
	}
	if amount == nil {
		return
	}

	factor := *amount / 100.0
	r.KcalPortion = scale(r.Kcal100g, factor)
	r.ProteinPortion = scale(r.Protein100g, factor)
	r.FatPortion = scale(r.Fat100g, factor)
	r.CarbsPortion = scale(r.Carbs100g, factor)
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

// Float returns a pointer to v, for literal record construction.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SearchItem is one web-search result candidate routed to a scrape handler.
type SearchItem struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
