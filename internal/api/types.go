package api

import "github.com/healco/foodresolver/internal/models"

// ResolveRequest is the body of POST /api/v1/resolve. Portion and locale
// fields are optional; when absent they are recovered from the query text.
type ResolveRequest struct {
	Query       string   `json:"query" binding:"required"`
	Grams       *float64 `json:"grams"`
	Milliliters *float64 `json:"milliliters"`
	Lang        string   `json:"lang"`
	Country     string   `json:"country"`
	UserID      int64    `json:"user_id"`
}

// ResolveResponse carries the ranked candidate records for one query.
type ResolveResponse struct {
	Query   string                   `json:"query"`
	Records []models.NutritionRecord `json:"records"`
	Count   int                      `json:"count"`
}
