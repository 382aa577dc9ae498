package domain

import "time"

// AuditEventType 审计事件类型
type AuditEventType string

// 审计事件类型枚举，覆盖一次提交从接收到投递的完整生命周期
const (
	EventSubmissionReceived         AuditEventType = "submission_received"
	EventSubmissionRejectedHoneypot AuditEventType = "submission_rejected_honeypot"
	EventEmailQueued                AuditEventType = "email_queued"
	EventEmailSent                  AuditEventType = "email_sent"
	EventEmailFailed                AuditEventType = "email_failed"
	EventEmailRetryExhausted        AuditEventType = "email_retry_exhausted"
)

// MaxAuditDetailLength 审计详情最大长度，超出部分截断
const MaxAuditDetailLength = 1000

// AuditEvent 表示一条只追加的审计日志行。
//
// ReferenceID 可选地关联到触发该事件的 ContactSubmission；
// 范围内的任何操作都不会修改或删除已写入的事件。
type AuditEvent struct {
	ID          int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	EventType   AuditEventType `json:"event_type" gorm:"type:varchar(64);not null;index"`
	ReferenceID *int64         `json:"reference_id,omitempty" gorm:"index"`
	Detail      string         `json:"detail" gorm:"type:varchar(1000)"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定 GORM 表名
func (AuditEvent) TableName() string {
	return "audit_events"
}

// TruncateDetail 将详情文本截断到允许的最大长度
func TruncateDetail(detail string) string {
	if len(detail) > MaxAuditDetailLength {
		return detail[:MaxAuditDetailLength]
	}
	return detail
}
