package httptransport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"adventai/backend/internal/domain"
	"adventai/backend/internal/service"
)

// ContactHandler 联系表单 HTTP 处理器
type ContactHandler struct {
	contacts *service.ContactService
}

// NewContactHandler 创建联系表单处理器
func NewContactHandler(contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// Submit 处理 POST /api/contact
//
// 蜜罐命中与正常提交返回完全相同的 201 响应，
// 自动化提交方观察不到任何差异。
func (h *ContactHandler) Submit(c *gin.Context) {
	var input domain.SubmissionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	_, _, err := h.contacts.Submit(input)
	if err != nil {
		if domain.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		// 存储失败：请求失败但进程继续
		InternalError(c)
		return
	}

	Created(c, MsgSubmitted)
}

// List 处理 GET /api/contacts
func (h *ContactHandler) List(c *gin.Context) {
	limit := 0
	if raw, ok := c.GetQuery("limit"); ok {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	contacts, err := h.contacts.List(limit)
	if err != nil {
		InternalError(c)
		return
	}

	// 空列表序列化为 [] 而不是 null
	if contacts == nil {
		contacts = []domain.ContactSubmission{}
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// Health 处理 GET /health
func (h *ContactHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
