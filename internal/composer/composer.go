package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"adventai/backend/internal/config"
	"adventai/backend/internal/domain"
)

// aiCallTimeout 单次 AI 调用的超时上限，保证 worker 不会被无限阻塞
const aiCallTimeout = 10 * time.Second

// Composer 根据提交内容生成邮件主题与正文
//
// 实现不写存储、不写审计日志，唯一允许的外部副作用是
// AI 策略的那一次出站调用。
type Composer interface {
	Compose(ctx context.Context, submission *domain.ContactSubmission) (subject, body string, err error)
}

// New 根据配置选择撰写策略
//
// 配置了 OPENAI_API_KEY 时使用 AI 策略（内部自带模板回退），
// 否则直接使用确定性模板。
func New(cfg config.OpenAIConfig, log *zap.Logger) Composer {
	if cfg.APIKey == "" {
		return NewTemplateComposer()
	}
	return NewAIComposer(openai.NewClient(cfg.APIKey), cfg.Model, log)
}

// TemplateComposer 确定性模板策略
type TemplateComposer struct{}

// NewTemplateComposer 创建确定性模板撰写器
func NewTemplateComposer() *TemplateComposer {
	return &TemplateComposer{}
}

// Compose 用固定模板生成主题与正文
func (c *TemplateComposer) Compose(_ context.Context, submission *domain.ContactSubmission) (string, string, error) {
	name := submission.Name
	if name == "" {
		name = "Someone"
	}

	subject := fmt.Sprintf("New contact from %s", name)
	body := fmt.Sprintf(
		"You received a new contact submission.\n\n"+
			"Name: %s\nEmail: %s\nReceived: %s\n\n"+
			"Message:\n%s\n",
		name,
		submission.Email,
		submission.CreatedAt.UTC().Format(time.RFC3339),
		submission.Message,
	)
	return subject, body, nil
}

// chatClient 抽象出 AI 补全调用，*openai.Client 天然满足该接口
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIComposer AI 撰写策略
//
// 任何失败（超时、响应格式错误、配额不足）都立即回退到
// 确定性模板，错误不向上传播。
type AIComposer struct {
	client   chatClient
	model    string
	fallback *TemplateComposer
	log      *zap.Logger
}

// NewAIComposer 创建 AI 撰写器
func NewAIComposer(client chatClient, model string, log *zap.Logger) *AIComposer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &AIComposer{
		client:   client,
		model:    model,
		fallback: NewTemplateComposer(),
		log:      log,
	}
}

// aiReply AI 返回的 JSON 结构
type aiReply struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose 调用 AI 生成主题与正文，失败时回退到模板
func (c *AIComposer) Compose(ctx context.Context, submission *domain.ContactSubmission) (string, string, error) {
	subject, body, err := c.tryAI(ctx, submission)
	if err != nil {
		c.log.Warn("ai compose failed, falling back to template",
			zap.Int64("contact_id", submission.ID),
			zap.Error(err),
		)
		return c.fallback.Compose(ctx, submission)
	}
	return subject, body, nil
}

// tryAI 执行一次带超时的 AI 补全调用
func (c *AIComposer) tryAI(ctx context.Context, submission *domain.ContactSubmission) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, aiCallTimeout)
	defer cancel()

	form, err := json.MarshalIndent(map[string]string{
		"name":    submission.Name,
		"email":   submission.Email,
		"message": submission.Message,
	}, "", "  ")
	if err != nil {
		return "", "", err
	}

	prompt := "You are an assistant that formats a professional email subject and body from form input.\n" +
		"Return ONLY JSON with keys: subject, body. Keep body concise and clear.\n\n" +
		"Form Input:\n" + string(form) + "\n"

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You format emails and respond in strict JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", "", err
	}
	if len(resp.Choices) == 0 {
		return "", "", fmt.Errorf("completion returned no choices")
	}

	var reply aiReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		return "", "", fmt.Errorf("malformed completion payload: %w", err)
	}

	subject := strings.TrimSpace(reply.Subject)
	body := strings.TrimSpace(reply.Body)
	if subject == "" || body == "" {
		return "", "", fmt.Errorf("completion missing subject or body")
	}

	return subject, body, nil
}
