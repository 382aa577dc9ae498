package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adventai/backend/internal/config"
	"adventai/backend/internal/domain"
)

// stubChatClient 可编程的 AI 客户端替身
type stubChatClient struct {
	content string
	err     error
	calls   int
}

func (s *stubChatClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func testSubmission() *domain.ContactSubmission {
	return &domain.ContactSubmission{
		ID:        1,
		Name:      "CI Tester",
		Email:     "ci@example.com",
		Message:   "Hello from tests",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestTemplateComposer(t *testing.T) {
	t.Run("模板输出包含全部字段", func(t *testing.T) {
		subject, body, err := NewTemplateComposer().Compose(context.Background(), testSubmission())

		require.NoError(t, err)
		assert.Equal(t, "New contact from CI Tester", subject)
		assert.Contains(t, body, "Name: CI Tester")
		assert.Contains(t, body, "Email: ci@example.com")
		assert.Contains(t, body, "Hello from tests")
		assert.Contains(t, body, "2026-01-02T03:04:05Z")
	})

	t.Run("相同输入输出确定", func(t *testing.T) {
		c := NewTemplateComposer()
		s1, b1, _ := c.Compose(context.Background(), testSubmission())
		s2, b2, _ := c.Compose(context.Background(), testSubmission())

		assert.Equal(t, s1, s2)
		assert.Equal(t, b1, b2)
	})
}

func TestAIComposer(t *testing.T) {
	t.Run("AI返回合法JSON时直接使用", func(t *testing.T) {
		stub := &stubChatClient{content: `{"subject":"Inquiry from CI Tester","body":"Formatted body."}`}
		c := NewAIComposer(stub, "gpt-4o-mini", zap.NewNop())

		subject, body, err := c.Compose(context.Background(), testSubmission())

		require.NoError(t, err)
		assert.Equal(t, "Inquiry from CI Tester", subject)
		assert.Equal(t, "Formatted body.", body)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("调用失败时回退到模板", func(t *testing.T) {
		stub := &stubChatClient{err: errors.New("quota exceeded")}
		c := NewAIComposer(stub, "gpt-4o-mini", zap.NewNop())

		subject, body, err := c.Compose(context.Background(), testSubmission())

		require.NoError(t, err)
		assert.Equal(t, "New contact from CI Tester", subject)
		assert.Contains(t, body, "ci@example.com")
	})

	t.Run("响应不是JSON时回退到模板", func(t *testing.T) {
		stub := &stubChatClient{content: "sorry, I can't do that"}
		c := NewAIComposer(stub, "gpt-4o-mini", zap.NewNop())

		subject, _, err := c.Compose(context.Background(), testSubmission())

		require.NoError(t, err)
		assert.Equal(t, "New contact from CI Tester", subject)
	})

	t.Run("响应缺少subject或body时回退到模板", func(t *testing.T) {
		stub := &stubChatClient{content: `{"subject":"   ","body":""}`}
		c := NewAIComposer(stub, "gpt-4o-mini", zap.NewNop())

		subject, _, err := c.Compose(context.Background(), testSubmission())

		require.NoError(t, err)
		assert.Equal(t, "New contact from CI Tester", subject)
	})
}

func TestNew(t *testing.T) {
	t.Run("无API密钥时选择模板策略", func(t *testing.T) {
		c := New(config.OpenAIConfig{}, zap.NewNop())
		_, ok := c.(*TemplateComposer)
		assert.True(t, ok)
	})

	t.Run("配置API密钥时选择AI策略", func(t *testing.T) {
		c := New(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, zap.NewNop())
		_, ok := c.(*AIComposer)
		assert.True(t, ok)
	})
}
