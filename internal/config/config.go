package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// DatabaseConfig 定义嵌入式 SQLite 数据库配置
type DatabaseConfig struct {
	Path string // 数据库文件路径，默认 "contacts.db"
}

// MailConfig 定义出站邮件配置
type MailConfig struct {
	From                 string   // 发件人地址，真实投递时必填
	Recipients           []string // 收件人列表；为空时投递降级为 no-op
	AllowSubmitterAsFrom bool     // 允许用提交者邮箱作为 From，默认 false
}

// SMTPConfig 定义 SMTP 出站传输配置
//
// Host 为空时不走 SMTP，邮件内容打印到标准输出（本地开发用）。
type SMTPConfig struct {
	Host   string
	Port   int    // 默认 587
	User   string // 可选，与 Pass 同时设置时启用 PLAIN 认证
	Pass   string
	UseTLS bool // 是否使用 STARTTLS，默认 true
}

// OpenAIConfig 定义 AI 撰写能力配置
type OpenAIConfig struct {
	APIKey string // 为空时仅使用确定性模板
	Model  string // 默认 "gpt-4o-mini"
}

// RateLimitConfig 定义提交接口的限流配置
type RateLimitConfig struct {
	MaxRequests int           // 窗口内最大请求数，默认 10
	Window      time.Duration // 窗口长度，默认 60s
}

// QueueConfig 定义投递队列的重试策略配置
type QueueConfig struct {
	MaxAttempts int           // 最大投递尝试次数，默认 5
	BaseBackoff time.Duration // 退避基数，默认 1s
	MaxBackoff  time.Duration // 退避上限，默认 60s
	Capacity    int           // 队列容量上限，默认 1024
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，为空时仅输出到 stdout
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mail      MailConfig
	SMTP      SMTPConfig
	OpenAI    OpenAIConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
	Log       LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量不带前缀，与部署脚本保持一致：
// MAIL_FROM, MAIL_RECIPIENTS, SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS,
// SMTP_USE_TLS, OPENAI_API_KEY, OPENAI_MODEL, ALLOW_SUBMITTER_AS_FROM,
// RATE_LIMIT_MAX_REQUESTS, RATE_LIMIT_WINDOW_SECONDS, LOG_LEVEL, LOG_FILE,
// SERVER_HOST, SERVER_PORT, DB_PATH
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 点号键经替换器映射到下划线环境变量，如 "mail.from" -> MAIL_FROM
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", "contacts.db")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.recipients", "")
	v.SetDefault("allow.submitter.as.from", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.use.tls", true)
	v.SetDefault("openai.api.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("rate.limit.max.requests", 10)
	v.SetDefault("rate.limit.window.seconds", 60)
	v.SetDefault("queue.max.attempts", 5)
	v.SetDefault("queue.base.backoff", "1s")
	v.SetDefault("queue.max.backoff", "1m")
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	maxRequests := v.GetInt("rate.limit.max.requests")
	if maxRequests <= 0 {
		maxRequests = 10
	}

	windowSeconds := v.GetInt("rate.limit.window.seconds")
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	maxAttempts := v.GetInt("queue.max.attempts")
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	baseBackoff, err := time.ParseDuration(v.GetString("queue.base.backoff"))
	if err != nil || baseBackoff <= 0 {
		baseBackoff = time.Second
	}

	maxBackoff, err := time.ParseDuration(v.GetString("queue.max.backoff"))
	if err != nil || maxBackoff < baseBackoff {
		maxBackoff = time.Minute
	}

	capacity := v.GetInt("queue.capacity")
	if capacity <= 0 {
		capacity = 1024
	}

	smtpPort := v.GetInt("smtp.port")
	if smtpPort <= 0 {
		smtpPort = 587
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("db.path"),
		},
		Mail: MailConfig{
			From:                 v.GetString("mail.from"),
			Recipients:           parseList(v.GetString("mail.recipients")),
			AllowSubmitterAsFrom: v.GetBool("allow.submitter.as.from"),
		},
		SMTP: SMTPConfig{
			Host:   v.GetString("smtp.host"),
			Port:   smtpPort,
			User:   v.GetString("smtp.user"),
			Pass:   v.GetString("smtp.pass"),
			UseTLS: v.GetBool("smtp.use.tls"),
		},
		OpenAI: OpenAIConfig{
			APIKey: v.GetString("openai.api.key"),
			Model:  v.GetString("openai.model"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: maxRequests,
			Window:      time.Duration(windowSeconds) * time.Second,
		},
		Queue: QueueConfig{
			MaxAttempts: maxAttempts,
			BaseBackoff: baseBackoff,
			MaxBackoff:  maxBackoff,
			Capacity:    capacity,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
	}

	if cfg.SMTP.Host != "" && cfg.Mail.From == "" {
		return nil, fmt.Errorf("MAIL_FROM is required when SMTP_HOST is configured")
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "a@example.com,b@example.com"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
