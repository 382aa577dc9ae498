package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 提交指标
	SubmissionsAccepted prometheus.Counter
	SubmissionsRejected prometheus.Counter
	HoneypotDrops       prometheus.Counter

	// 投递指标
	EmailsQueued    prometheus.Counter
	EmailsSent      prometheus.Counter
	EmailsFailed    prometheus.Counter
	EmailsExhausted prometheus.Counter
	QueueDepth      prometheus.Gauge

	// 限流指标
	RateLimitBlocks prometheus.Counter
}

// NewMetrics 创建监控指标
//
// promauto 在创建时即向默认注册表注册，进程内只能调用一次。
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SubmissionsAccepted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_submissions_accepted_total",
				Help: "Total number of accepted contact submissions",
			},
		),

		SubmissionsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_submissions_rejected_total",
				Help: "Total number of submissions rejected by validation",
			},
		),

		HoneypotDrops: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_honeypot_drops_total",
				Help: "Total number of submissions silently dropped by the honeypot",
			},
		),

		EmailsQueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_emails_queued_total",
				Help: "Total number of email jobs enqueued",
			},
		),

		EmailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_emails_sent_total",
				Help: "Total number of emails delivered",
			},
		),

		EmailsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_emails_failed_total",
				Help: "Total number of failed delivery attempts",
			},
		),

		EmailsExhausted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_emails_retry_exhausted_total",
				Help: "Total number of email jobs dropped after exhausting retries",
			},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contact_email_queue_depth",
				Help: "Current number of jobs waiting in the delivery queue",
			},
		),

		RateLimitBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_rate_limit_blocks_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// 业务指标记录方法
//
// 接收者为 nil 时全部是空操作，测试里不需要构造真实指标。

// RecordSubmissionAccepted 记录一次通过校验并持久化的提交
func (m *Metrics) RecordSubmissionAccepted() {
	if m != nil {
		m.SubmissionsAccepted.Inc()
	}
}

// RecordSubmissionRejected 记录一次被校验拒绝的提交
func (m *Metrics) RecordSubmissionRejected() {
	if m != nil {
		m.SubmissionsRejected.Inc()
	}
}

// RecordHoneypotDrop 记录一次蜜罐静默丢弃
func (m *Metrics) RecordHoneypotDrop() {
	if m != nil {
		m.HoneypotDrops.Inc()
	}
}

// RecordEmailQueued 记录一次入队
func (m *Metrics) RecordEmailQueued() {
	if m != nil {
		m.EmailsQueued.Inc()
	}
}

// RecordEmailSent 记录一次投递成功
func (m *Metrics) RecordEmailSent() {
	if m != nil {
		m.EmailsSent.Inc()
	}
}

// RecordEmailFailed 记录一次投递失败
func (m *Metrics) RecordEmailFailed() {
	if m != nil {
		m.EmailsFailed.Inc()
	}
}

// RecordEmailExhausted 记录一次重试耗尽
func (m *Metrics) RecordEmailExhausted() {
	if m != nil {
		m.EmailsExhausted.Inc()
	}
}

// RecordRateLimitBlock 记录一次限流拒绝
func (m *Metrics) RecordRateLimitBlock() {
	if m != nil {
		m.RateLimitBlocks.Inc()
	}
}

// SetQueueDepth 更新队列深度
func (m *Metrics) SetQueueDepth(depth int) {
	if m != nil {
		m.QueueDepth.Set(float64(depth))
	}
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
