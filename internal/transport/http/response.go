package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 对外暴露的固定响应文案
//
// 前端与集成测试按字面匹配这些消息，修改时需同步。
const (
	MsgSubmitted     = "Contact submitted successfully"
	MsgInvalidJSON   = "Invalid JSON"
	MsgTooManyReqs   = "Too many requests"
	MsgInternalError = "Internal server error"
)

// Created 创建成功响应（201）
func Created(c *gin.Context, msg string) {
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": MsgInternalError})
}
