package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adventai/backend/internal/composer"
	"adventai/backend/internal/config"
	"adventai/backend/internal/domain"
	"adventai/backend/internal/mailer"
	"adventai/backend/internal/storage/memory"
)

// fakeTransport 可编程的传输替身：先失败 failures 次，之后成功
type fakeTransport struct {
	mu        sync.Mutex
	failures  int
	sent      []mailer.Envelope
	attempts  []time.Time
	failedErr error
}

func (f *fakeTransport) Send(_ context.Context, env mailer.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts = append(f.attempts, time.Now())
	if f.failures > 0 {
		f.failures--
		if f.failedErr != nil {
			return f.failedErr
		}
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) attemptTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.attempts))
	copy(out, f.attempts)
	return out
}

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  200 * time.Millisecond,
	}
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		From:       "noreply@example.com",
		Recipients: []string{"team@example.com"},
	}
}

func newTestQueue(t *testing.T, policy Policy, mail config.MailConfig, transport mailer.Transport) (*DeliveryQueue, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	q := New(policy, 16, mail, composer.NewTemplateComposer(), transport, store, nil, zap.NewNop())
	return q, store
}

func runWorker(t *testing.T, q *DeliveryQueue) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// eventTypes 过滤出指定提交的事件类型序列
func eventTypes(t *testing.T, store *memory.Store) []domain.AuditEventType {
	t.Helper()

	events, err := store.ListAuditEvents(0)
	require.NoError(t, err)

	types := make([]domain.AuditEventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	return types
}

func submission(id int64) *domain.ContactSubmission {
	return &domain.ContactSubmission{
		ID:        id,
		Name:      "CI Tester",
		Email:     "ci@example.com",
		Message:   "Hello from tests",
		CreatedAt: time.Now().UTC(),
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseBackoff: time.Second, MaxBackoff: time.Minute}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))

	// 上限封顶
	assert.Equal(t, time.Minute, p.Backoff(10))
}

func TestDeliveryQueue_FirstAttemptSucceeds(t *testing.T) {
	transport := &fakeTransport{}
	q, store := newTestQueue(t, testPolicy(), testMailConfig(), transport)
	runWorker(t, q)

	require.NoError(t, q.Enqueue(submission(1)))

	require.Eventually(t, func() bool {
		return transport.sentCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	env := transport.sent[0]
	assert.Equal(t, "noreply@example.com", env.From)
	assert.Equal(t, "ci@example.com", env.ReplyTo)
	assert.Equal(t, []string{"team@example.com"}, env.To)
	assert.Equal(t, "New contact from CI Tester", env.Subject)

	require.Eventually(t, func() bool {
		return len(eventTypes(t, store)) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t,
		[]domain.AuditEventType{domain.EventEmailQueued, domain.EventEmailSent},
		eventTypes(t, store),
	)
}

func TestDeliveryQueue_RetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{failures: 2}
	q, store := newTestQueue(t, testPolicy(), testMailConfig(), transport)
	runWorker(t, q)

	require.NoError(t, q.Enqueue(submission(1)))

	require.Eventually(t, func() bool {
		return transport.sentCount() == 1
	}, 5*time.Second, 5*time.Millisecond)

	// N 次 email_failed 后跟随一次 email_sent
	require.Eventually(t, func() bool {
		return len(eventTypes(t, store)) == 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t,
		[]domain.AuditEventType{
			domain.EventEmailQueued,
			domain.EventEmailFailed,
			domain.EventEmailFailed,
			domain.EventEmailSent,
		},
		eventTypes(t, store),
	)

	// 重试不早于退避时刻
	attempts := transport.attemptTimes()
	require.Len(t, attempts, 3)
	policy := testPolicy()
	tolerance := 2 * time.Millisecond
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0])+tolerance, policy.Backoff(1))
	assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1])+tolerance, policy.Backoff(2))
}

func TestDeliveryQueue_RetriesExhausted(t *testing.T) {
	transport := &fakeTransport{failures: 1 << 30} // 永远失败
	policy := Policy{MaxAttempts: 3, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}
	q, store := newTestQueue(t, policy, testMailConfig(), transport)
	runWorker(t, q)

	require.NoError(t, q.Enqueue(submission(1)))

	require.Eventually(t, func() bool {
		types := eventTypes(t, store)
		return len(types) > 0 && types[len(types)-1] == domain.EventEmailRetryExhausted
	}, 5*time.Second, 5*time.Millisecond)

	// 耗尽后不再有任何尝试
	attemptsAfter := len(transport.attemptTimes())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, attemptsAfter, len(transport.attemptTimes()))
	assert.Equal(t, policy.MaxAttempts, attemptsAfter)

	// 恰好一次 email_retry_exhausted，前面是 MaxAttempts-1 次 email_failed
	types := eventTypes(t, store)
	exhausted := 0
	failed := 0
	for _, ty := range types {
		switch ty {
		case domain.EventEmailRetryExhausted:
			exhausted++
		case domain.EventEmailFailed:
			failed++
		}
	}
	assert.Equal(t, 1, exhausted)
	assert.Equal(t, policy.MaxAttempts-1, failed)
	assert.Equal(t, 0, q.Len())
}

func TestDeliveryQueue_NoRecipientsIsNoopSuccess(t *testing.T) {
	transport := &fakeTransport{}
	mail := config.MailConfig{From: "noreply@example.com"} // 无收件人
	q, store := newTestQueue(t, testPolicy(), mail, transport)
	runWorker(t, q)

	require.NoError(t, q.Enqueue(submission(1)))

	require.Eventually(t, func() bool {
		types := eventTypes(t, store)
		return len(types) == 2 && types[1] == domain.EventEmailSent
	}, 2*time.Second, 5*time.Millisecond)

	// 没有真实发送
	assert.Empty(t, transport.attemptTimes())
}

func TestDeliveryQueue_SubmitterAsFrom(t *testing.T) {
	transport := &fakeTransport{}
	mail := testMailConfig()
	mail.AllowSubmitterAsFrom = true
	q, _ := newTestQueue(t, testPolicy(), mail, transport)
	runWorker(t, q)

	require.NoError(t, q.Enqueue(submission(1)))

	require.Eventually(t, func() bool {
		return transport.sentCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "ci@example.com", transport.sent[0].From)
	assert.Equal(t, "ci@example.com", transport.sent[0].ReplyTo)
}

func TestDeliveryQueue_FIFOWhenDueTogether(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(t, testPolicy(), testMailConfig(), transport)

	// 先入队再启动 worker，两个任务同时到期
	require.NoError(t, q.Enqueue(submission(1)))
	require.NoError(t, q.Enqueue(submission(2)))
	runWorker(t, q)

	require.Eventually(t, func() bool {
		return transport.sentCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Contains(t, transport.sent[0].Body, "Name: CI Tester")
}

func TestDeliveryQueue_EnqueueRespectsCapacity(t *testing.T) {
	store := memory.NewStore()
	q := New(testPolicy(), 2, testMailConfig(), composer.NewTemplateComposer(), &fakeTransport{}, store, nil, zap.NewNop())

	require.NoError(t, q.Enqueue(submission(1)))
	require.NoError(t, q.Enqueue(submission(2)))
	assert.ErrorIs(t, q.Enqueue(submission(3)), ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestDeliveryQueue_StopsOnContextCancel(t *testing.T) {
	transport := &fakeTransport{failures: 1 << 30}
	q, _ := newTestQueue(t, testPolicy(), testMailConfig(), transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()

	require.NoError(t, q.Enqueue(submission(1)))
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
