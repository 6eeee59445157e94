package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healco/foodresolver/internal/models"
	"github.com/healco/foodresolver/internal/service"
)

// ResolveHandler exposes the resolution pipeline over HTTP.
type ResolveHandler struct {
	resolver *service.Resolver
	logger   *zap.Logger
}

func NewResolveHandler(resolver *service.Resolver, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{resolver: resolver, logger: logger}
}

// RegisterRoutes registers the resolve endpoints
func (h *ResolveHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/resolve", h.Resolve)
	v1.GET("/resolve", h.ResolveQuery)
	v1.GET("/health", h.Health)
}

// Resolve runs the full resolution cascade for one food query. The response
// is always 200 with a (possibly empty) candidate list; only malformed
// requests fail.
func (h *ResolveHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		_ = c.Error(err)
		return
	}

	h.respond(c, req)
}

func (h *ResolveHandler) respond(c *gin.Context, req ResolveRequest) {
	records := h.resolver.Resolve(c.Request.Context(), service.ResolveRequest{
		QueryText:   req.Query,
		Grams:       req.Grams,
		Milliliters: req.Milliliters,
		Lang:        req.Lang,
		Country:     req.Country,
		UserID:      req.UserID,
	})
	if records == nil {
		records = []models.NutritionRecord{}
	}

	c.JSON(http.StatusOK, ResolveResponse{
		Query:   req.Query,
		Records: records,
		Count:   len(records),
	})
}

// ResolveQuery is the GET form of Resolve, taking the query and portion
// hints as URL parameters.
func (h *ResolveHandler) ResolveQuery(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.Status(http.StatusBadRequest)
		_ = c.Error(errors.New("query parameter q is required"))
		return
	}

	req := ResolveRequest{
		Query:   query,
		Lang:    c.Query("lang"),
		Country: c.Query("country"),
	}
	if v, err := strconv.ParseFloat(c.Query("grams"), 64); err == nil {
		req.Grams = &v
	}
	if v, err := strconv.ParseFloat(c.Query("ml"), 64); err == nil {
		req.Milliliters = &v
	}
	if v, err := strconv.ParseInt(c.Query("user_id"), 10, 64); err == nil {
		req.UserID = v
	}

	h.respond(c, req)
}

// Health reports service liveness
func (h *ResolveHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
