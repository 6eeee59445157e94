package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healco/foodresolver/internal/service"
)

func SetupAPI(router *gin.Engine, resolver *service.Resolver, logger *zap.Logger) {
	v1 := router.Group("/api/v1")
	{
		handler := NewResolveHandler(resolver, logger)
		handler.RegisterRoutes(v1)
	}
}
