package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey 请求上下文中请求 ID 的键
const requestIDKey = "request_id"

// RequestIDHeader 请求 ID 的响应头名
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求分配 UUID，便于日志串联
//
// 客户端传入的 X-Request-ID 原样沿用，否则生成新的。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext 读取当前请求的请求 ID
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
