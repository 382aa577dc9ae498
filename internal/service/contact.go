package service

import (
	"errors"

	"go.uber.org/zap"

	"adventai/backend/internal/domain"
	"adventai/backend/internal/monitoring"
	"adventai/backend/internal/queue"
	"adventai/backend/internal/storage"
)

// Enqueuer 投递队列的入队能力
type Enqueuer interface {
	Enqueue(submission *domain.ContactSubmission) error
}

// ContactService 封装联系表单的业务流程
//
// 编排顺序：校验 -> 落库 -> 审计 -> 入队。HTTP 处理器只负责
// 协议映射，不直接接触存储和队列。
type ContactService struct {
	store   storage.Store
	queue   Enqueuer
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewContactService 创建联系表单业务服务
func NewContactService(store storage.Store, q Enqueuer, metrics *monitoring.Metrics, log *zap.Logger) *ContactService {
	return &ContactService{
		store:   store,
		queue:   q,
		metrics: metrics,
		log:     log,
	}
}

// Submit 处理一次联系表单提交
//
// 返回值:
//   - *domain.ContactSubmission: 落库后的记录，蜜罐命中时为 nil
//   - honeypot: 蜜罐是否命中（调用方仍需对外返回成功）
//   - error: 校验错误或存储错误
//
// 蜜罐命中时不落库、不入队，只追加 submission_rejected_honeypot
// 审计事件——对提交方表现为成功，实际静默丢弃。
func (s *ContactService) Submit(input domain.SubmissionInput) (*domain.ContactSubmission, bool, error) {
	validated, honeypot, err := domain.Validate(input)
	if honeypot {
		s.metrics.RecordHoneypotDrop()
		s.appendAudit(domain.EventSubmissionRejectedHoneypot, nil, "honeypot field was filled")
		s.log.Info("submission silently dropped by honeypot")
		return nil, true, nil
	}
	if err != nil {
		s.metrics.RecordSubmissionRejected()
		return nil, false, err
	}

	contact, err := s.store.InsertContact(validated.Name, validated.Email, validated.Message)
	if err != nil {
		s.log.Error("failed to store contact submission", zap.Error(err))
		return nil, false, err
	}

	s.metrics.RecordSubmissionAccepted()
	s.appendAudit(domain.EventSubmissionReceived, &contact.ID, "")

	// 落库先于入队提交，没有跨两者的事务：入队失败时记录仍然保留，
	// 只是不会有邮件通知（接受的不一致）。
	if err := s.queue.Enqueue(contact); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			s.log.Warn("email queue full, submission stored without notification",
				zap.Int64("contact_id", contact.ID),
			)
		} else {
			s.log.Error("failed to enqueue email job",
				zap.Int64("contact_id", contact.ID),
				zap.Error(err),
			)
		}
	}

	return contact, false, nil
}

// List 按时间倒序返回联系记录
func (s *ContactService) List(limit int) ([]domain.ContactSubmission, error) {
	return s.store.ListContacts(limit)
}

// appendAudit 尽力而为地写审计事件，失败只记日志
func (s *ContactService) appendAudit(eventType domain.AuditEventType, referenceID *int64, detail string) {
	if err := s.store.AppendAudit(eventType, referenceID, detail); err != nil {
		s.log.Warn("failed to append audit event",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}
