package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adventai/backend/internal/config"
)

func testEnvelope() Envelope {
	return Envelope{
		From:    "noreply@example.com",
		ReplyTo: "visitor@example.com",
		To:      []string{"team@example.com", "ops@example.com"},
		Subject: "New contact from CI Tester",
		Body:    "Hello from tests\n",
	}
}

func TestBuildMessage(t *testing.T) {
	raw, err := buildMessage(testEnvelope())
	require.NoError(t, err)

	msg := string(raw)
	assert.Contains(t, msg, "From: <noreply@example.com>")
	assert.Contains(t, msg, "Reply-To: <visitor@example.com>")
	assert.Contains(t, msg, "To: <team@example.com>, <ops@example.com>")
	assert.Contains(t, msg, "Subject: New contact from CI Tester")
	assert.Contains(t, msg, "Hello from tests")
}

func TestStdoutTransport(t *testing.T) {
	var buf bytes.Buffer
	transport := NewStdoutTransport(zap.NewNop())
	transport.out = &buf

	err := transport.Send(context.Background(), testEnvelope())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "=== EMAIL (dev fallback) ===")
	assert.Contains(t, out, "From: noreply@example.com")
	assert.Contains(t, out, "Reply-To: visitor@example.com")
	assert.Contains(t, out, "To: team@example.com, ops@example.com")
	assert.Contains(t, out, "Subject: New contact from CI Tester")
	assert.Contains(t, out, "=== END EMAIL ===")
}

func TestNewTransport(t *testing.T) {
	t.Run("无SMTP主机时选择标准输出传输", func(t *testing.T) {
		transport := NewTransport(config.SMTPConfig{}, zap.NewNop())
		_, ok := transport.(*StdoutTransport)
		assert.True(t, ok)
	})

	t.Run("配置SMTP主机时选择SMTP传输", func(t *testing.T) {
		transport := NewTransport(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, zap.NewNop())
		smtpTransport, ok := transport.(*SMTPTransport)
		require.True(t, ok)
		assert.Equal(t, "smtp.example.com:587", smtpTransport.addr)
	})
}
