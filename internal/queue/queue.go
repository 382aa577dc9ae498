package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"adventai/backend/internal/composer"
	"adventai/backend/internal/config"
	"adventai/backend/internal/domain"
	"adventai/backend/internal/mailer"
	"adventai/backend/internal/monitoring"
	"adventai/backend/internal/storage"
)

// ErrQueueFull 队列达到容量上限时入队失败
//
// 提交记录此时已经落库，只是不会有邮件通知——接受的不一致。
var ErrQueueFull = errors.New("email queue is full")

// JobStatus 投递任务状态
type JobStatus string

// 任务状态机: pending -> in_flight -> {sent | pending(重试) | failed_permanently}
const (
	StatusPending           JobStatus = "pending"
	StatusInFlight          JobStatus = "in_flight"
	StatusSent              JobStatus = "sent"
	StatusFailedPermanently JobStatus = "failed_permanently"
)

// EmailJob 一次邮件投递任务（仅存在于内存，进程重启即丢失）
type EmailJob struct {
	Submission    *domain.ContactSubmission
	AttemptCount  int
	NextAttemptAt time.Time
	Status        JobStatus

	seq uint64 // 入队序号，同一时刻到期的任务按 FIFO 出队
}

// Policy 重试策略
type Policy struct {
	MaxAttempts int           // 最大尝试次数
	BaseBackoff time.Duration // 退避基数
	MaxBackoff  time.Duration // 退避上限
}

// Backoff 计算第 attempt 次失败后的退避时长（指数退避，带上限）
func (p Policy) Backoff(attempt int) time.Duration {
	backoff := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

// DeliveryQueue 邮件投递队列
//
// 入队是 O(1) 且不阻塞请求路径；出队由唯一的后台 worker 完成，
// 重试任务按 next_attempt_at 排序（延迟队列而非严格 FIFO）。
type DeliveryQueue struct {
	mu       sync.Mutex
	jobs     jobHeap
	capacity int
	seq      uint64
	wake     chan struct{}

	policy    Policy
	mail      config.MailConfig
	composer  composer.Composer
	transport mailer.Transport
	audit     storage.AuditRepository
	metrics   *monitoring.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// New 创建投递队列
func New(
	policy Policy,
	capacity int,
	mail config.MailConfig,
	comp composer.Composer,
	transport mailer.Transport,
	audit storage.AuditRepository,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *DeliveryQueue {
	return &DeliveryQueue{
		capacity:  capacity,
		wake:      make(chan struct{}, 1),
		policy:    policy,
		mail:      mail,
		composer:  comp,
		transport: transport,
		audit:     audit,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Enqueue 将一次已落库的提交加入投递队列
//
// 不阻塞：队列满时立即返回 ErrQueueFull。入队成功后
// 尽力而为地追加 email_queued 审计事件。
func (q *DeliveryQueue) Enqueue(submission *domain.ContactSubmission) error {
	q.mu.Lock()
	if q.capacity > 0 && q.jobs.Len() >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}

	q.seq++
	job := &EmailJob{
		Submission:    submission,
		Status:        StatusPending,
		NextAttemptAt: q.now(),
		seq:           q.seq,
	}
	heap.Push(&q.jobs, job)
	depth := q.jobs.Len()
	q.mu.Unlock()

	q.metrics.RecordEmailQueued()
	q.metrics.SetQueueDepth(depth)
	q.appendAudit(domain.EventEmailQueued, submission.ID, "")

	q.signal()
	return nil
}

// Len 当前排队中的任务数（不含正在投递的）
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs.Len()
}

// Run 启动 worker 循环，阻塞直到 ctx 取消
//
// 唯一的消费者：顺序处理到期任务，保证投递大致按入队顺序进行。
// 进程关闭时不做收尾，飞行中任务的结果丢失（尽力而为投递）。
func (q *DeliveryQueue) Run(ctx context.Context) {
	q.log.Info("email delivery worker started",
		zap.Int("max_attempts", q.policy.MaxAttempts),
		zap.Duration("base_backoff", q.policy.BaseBackoff),
	)

	for {
		job, wait := q.nextDue()
		if job != nil {
			q.process(ctx, job)
			continue
		}

		var timer <-chan time.Time
		if wait > 0 {
			t := time.NewTimer(wait)
			timer = t.C
			// 三路等待：下一个任务到期、新任务入队、进程关闭
			select {
			case <-ctx.Done():
				t.Stop()
				q.log.Info("email delivery worker stopped")
				return
			case <-q.wake:
				t.Stop()
			case <-timer:
			}
			continue
		}

		select {
		case <-ctx.Done():
			q.log.Info("email delivery worker stopped")
			return
		case <-q.wake:
		}
	}
}

// nextDue 弹出已到期的队首任务
//
// 返回值:
//   - *EmailJob: 到期任务，没有则为 nil
//   - time.Duration: 距下一个任务到期的时长，队列为空时为 0
func (q *DeliveryQueue) nextDue() (*EmailJob, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.jobs.Len() == 0 {
		return nil, 0
	}

	head := q.jobs[0]
	wait := head.NextAttemptAt.Sub(q.now())
	if wait > 0 {
		return nil, wait
	}

	job := heap.Pop(&q.jobs).(*EmailJob)
	job.Status = StatusInFlight
	job.AttemptCount++
	return job, 0
}

// process 执行一次投递尝试并推进任务状态机
func (q *DeliveryQueue) process(ctx context.Context, job *EmailJob) {
	defer q.metrics.SetQueueDepth(q.Len())

	subject, body, err := q.composer.Compose(ctx, job.Submission)
	if err == nil {
		err = q.send(ctx, job.Submission, subject, body)
	}

	if err == nil {
		job.Status = StatusSent
		q.metrics.RecordEmailSent()
		q.appendAudit(domain.EventEmailSent, job.Submission.ID, "")
		q.log.Info("email delivered",
			zap.Int64("contact_id", job.Submission.ID),
			zap.Int("attempt", job.AttemptCount),
		)
		return
	}

	q.metrics.RecordEmailFailed()

	if job.AttemptCount >= q.policy.MaxAttempts {
		job.Status = StatusFailedPermanently
		q.metrics.RecordEmailExhausted()
		q.appendAudit(domain.EventEmailRetryExhausted, job.Submission.ID, err.Error())
		q.log.Error("email delivery abandoned after exhausting retries",
			zap.Int64("contact_id", job.Submission.ID),
			zap.Int("attempts", job.AttemptCount),
			zap.Error(err),
		)
		return
	}

	backoff := q.policy.Backoff(job.AttemptCount)
	job.Status = StatusPending
	job.NextAttemptAt = q.now().Add(backoff)
	q.appendAudit(domain.EventEmailFailed, job.Submission.ID, err.Error())
	q.log.Warn("email delivery failed, will retry",
		zap.Int64("contact_id", job.Submission.ID),
		zap.Int("attempt", job.AttemptCount),
		zap.Int("max_attempts", q.policy.MaxAttempts),
		zap.Duration("retry_in", backoff),
		zap.Error(err),
	)

	// 重试不受容量限制：任务已被接收，不能在这里丢弃
	q.mu.Lock()
	q.seq++
	job.seq = q.seq
	heap.Push(&q.jobs, job)
	q.mu.Unlock()
	q.signal()
}

// send 构造信封并通过传输层发送
func (q *DeliveryQueue) send(ctx context.Context, submission *domain.ContactSubmission, subject, body string) error {
	if len(q.mail.Recipients) == 0 {
		// 未配置收件人视为 no-op 成功
		q.log.Info("no recipients configured, skipping delivery",
			zap.Int64("contact_id", submission.ID),
		)
		return nil
	}

	from := q.mail.From
	if q.mail.AllowSubmitterAsFrom {
		from = submission.Email
	}

	return q.transport.Send(ctx, mailer.Envelope{
		From:    from,
		ReplyTo: submission.Email,
		To:      q.mail.Recipients,
		Subject: subject,
		Body:    body,
	})
}

// appendAudit 尽力而为地写审计事件，失败只记日志
func (q *DeliveryQueue) appendAudit(eventType domain.AuditEventType, referenceID int64, detail string) {
	if err := q.audit.AppendAudit(eventType, &referenceID, detail); err != nil {
		q.log.Warn("failed to append audit event",
			zap.String("event_type", string(eventType)),
			zap.Int64("reference_id", referenceID),
			zap.Error(err),
		)
	}
}

// signal 唤醒 worker（非阻塞，重复唤醒合并）
func (q *DeliveryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// jobHeap 按 NextAttemptAt 排序的最小堆，时间相同按入队序号
type jobHeap []*EmailJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].NextAttemptAt.Equal(h[j].NextAttemptAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].NextAttemptAt.Before(h[j].NextAttemptAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*EmailJob))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
