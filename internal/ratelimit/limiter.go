package ratelimit

import (
	"sync"
	"time"
)

// bucket 单个来源的固定窗口计数
type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter 按来源地址限流的固定窗口限流器
//
// 窗口从某个来源第一次请求开始计时，到期后在下一次请求时重新开窗
// （不与日历时间对齐）。状态只存在于进程内存，进程重启即清零。
type Limiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	buckets     map[string]*bucket
	now         func() time.Time // 可注入时钟，测试用
}

// NewLimiter 创建固定窗口限流器
//
// 参数:
//   - maxRequests: 窗口内允许的最大请求数
//   - window: 窗口长度
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		buckets:     make(map[string]*bucket),
		now:         time.Now,
	}
}

// Allow 判断来自 key 的一次请求是否放行
//
// 放行时计数加一；拒绝时不产生任何其他副作用，
// 被拒绝的请求不会触达存储或邮件队列。
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		// 开新窗口（首次请求或旧窗口已过期）
		l.buckets[key] = &bucket{windowStart: now, count: 1}
		return true
	}

	if b.count < l.maxRequests {
		b.count++
		return true
	}

	return false
}

// Sweep 回收已过期的窗口，降低长时间运行下的内存占用
//
// 返回值:
//   - int: 回收的桶数量
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Size 当前跟踪的来源数量
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
