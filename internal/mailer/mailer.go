package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"adventai/backend/internal/config"
)

// ErrDelivery 投递失败的哨兵错误，worker 据此进入重试状态机
var ErrDelivery = errors.New("delivery failure")

// smtpTimeout 单条 SMTP 命令及报文提交的超时上限
const smtpTimeout = 10 * time.Second

// Envelope 一封待发送邮件的完整描述
type Envelope struct {
	From    string
	ReplyTo string
	To      []string
	Subject string
	Body    string
}

// Transport 出站邮件传输能力
//
// 实现对调用方不透明：SMTP、标准输出或测试替身都走同一接口。
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

// NewTransport 根据配置选择传输实现
//
// 配置了 SMTP_HOST 时走真实 SMTP，否则降级为标准输出
// （本地开发路径，总是"成功"）。
func NewTransport(cfg config.SMTPConfig, log *zap.Logger) Transport {
	if cfg.Host == "" {
		return NewStdoutTransport(log)
	}
	return NewSMTPTransport(cfg, log)
}

// SMTPTransport 基于 SMTP 的邮件传输
type SMTPTransport struct {
	addr   string
	user   string
	pass   string
	host   string
	useTLS bool
	log    *zap.Logger
}

// NewSMTPTransport 创建 SMTP 传输
func NewSMTPTransport(cfg config.SMTPConfig, log *zap.Logger) *SMTPTransport {
	return &SMTPTransport{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		user:   cfg.User,
		pass:   cfg.Pass,
		host:   cfg.Host,
		useTLS: cfg.UseTLS,
		log:    log,
	}
}

// Send 构造 MIME 报文并通过 SMTP 发送
func (t *SMTPTransport) Send(_ context.Context, env Envelope) error {
	raw, err := buildMessage(env)
	if err != nil {
		return fmt.Errorf("%w: build message: %v", ErrDelivery, err)
	}

	if err := t.deliver(env, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// deliver 建立连接、认证并提交报文
//
// 默认走 STARTTLS；显式关闭 TLS 时退回明文连接（内网中继场景）。
func (t *SMTPTransport) deliver(env Envelope, raw []byte) error {
	var client *smtp.Client
	var err error
	if t.useTLS {
		client, err = smtp.DialStartTLS(t.addr, &tls.Config{ServerName: t.host})
	} else {
		client, err = smtp.Dial(t.addr)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	client.CommandTimeout = smtpTimeout
	client.SubmissionTimeout = smtpTimeout

	if t.user != "" && t.pass != "" {
		if err := client.Auth(sasl.NewPlainClient("", t.user, t.pass)); err != nil {
			return err
		}
	}

	if err := client.SendMail(env.From, env.To, bytes.NewReader(raw)); err != nil {
		return err
	}

	return client.Quit()
}

// buildMessage 用 go-message 构造 text/plain 的 MIME 报文
func buildMessage(env Envelope) ([]byte, error) {
	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now().UTC())
	header.SetSubject(env.Subject)
	header.SetAddressList("From", []*mail.Address{{Address: env.From}})

	toList := make([]*mail.Address, 0, len(env.To))
	for _, addr := range env.To {
		toList = append(toList, &mail.Address{Address: addr})
	}
	header.SetAddressList("To", toList)

	if env.ReplyTo != "" {
		header.SetAddressList("Reply-To", []*mail.Address{{Address: env.ReplyTo}})
	}

	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	writer, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(writer, env.Body); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// StdoutTransport 标准输出传输（本地开发回退）
type StdoutTransport struct {
	log *zap.Logger
	out io.Writer
}

// NewStdoutTransport 创建标准输出传输
func NewStdoutTransport(log *zap.Logger) *StdoutTransport {
	return &StdoutTransport{log: log}
}

// Send 把邮件内容打印到标准输出，总是成功
func (t *StdoutTransport) Send(_ context.Context, env Envelope) error {
	t.log.Info("delivering email to stdout (no SMTP host configured)",
		zap.String("subject", env.Subject),
	)

	out := t.out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintln(out, "=== EMAIL (dev fallback) ===")
	fmt.Fprintf(out, "From: %s\n", env.From)
	if env.ReplyTo != "" {
		fmt.Fprintf(out, "Reply-To: %s\n", env.ReplyTo)
	}
	fmt.Fprintf(out, "To: %s\n", strings.Join(env.To, ", "))
	fmt.Fprintf(out, "Subject: %s\n\n", env.Subject)
	fmt.Fprintln(out, env.Body)
	fmt.Fprintln(out, "=== END EMAIL ===")
	return nil
}
