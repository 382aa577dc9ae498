package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adventai/backend/internal/monitoring"
	"adventai/backend/internal/ratelimit"
)

// RateLimit 按客户端 IP 限流的中间件
//
// 被拒绝的请求在这里直接返回 429，不会触达校验、存储或邮件队列。
func RateLimit(limiter *ratelimit.Limiter, metrics *monitoring.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			metrics.RecordRateLimitBlock()
			log.Warn("request rejected by rate limiter",
				zap.String("ip", key),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}
