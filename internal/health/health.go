package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"

	"adventai/backend/internal/storage"
)

// maxGoroutines 泄漏告警阈值，正常负载下远低于此值
const maxGoroutines = 200

// Checker 健康检查器
//
// liveness 反映进程本身是否存活，readiness 额外要求存储可用。
type Checker struct {
	handler healthcheck.Handler
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store) *Checker {
	handler := healthcheck.NewHandler()

	handler.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(maxGoroutines))
	handler.AddReadinessCheck("database", func() error {
		return store.Health()
	})

	return &Checker{handler: handler}
}

// LiveEndpoint 存活检查处理器
func (c *Checker) LiveEndpoint() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyEndpoint 就绪检查处理器
func (c *Checker) ReadyEndpoint() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}
