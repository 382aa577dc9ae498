package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adventai/backend/internal/health"
	"adventai/backend/internal/middleware"
	"adventai/backend/internal/monitoring"
	"adventai/backend/internal/ratelimit"
	"adventai/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	ContactService *service.ContactService
	Limiter        *ratelimit.Limiter
	Metrics        *monitoring.Metrics
	Health         *health.Checker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 只有 POST /api/contact 经过限流；health 和列表端点是只读的，
// 既不限流也不校验。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// CORS：API 面向静态营销站点，允许所有来源
	router.Use(gincors.New(gincors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	handler := NewContactHandler(deps.ContactService)

	router.GET("/health", handler.Health)

	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint()))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint()))
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		api.POST("/contact",
			middleware.RateLimit(deps.Limiter, deps.Metrics, deps.Logger),
			handler.Submit,
		)
		api.GET("/contacts", handler.List)
	}

	return router
}
