package storage

import (
	"errors"

	"adventai/backend/internal/domain"
)

// ErrStorage 存储层 I/O 失败的哨兵错误，具体实现用 %w 包装它
var ErrStorage = errors.New("storage failure")

// ContactRepository 联系记录仓储接口
type ContactRepository interface {
	// InsertContact 插入一条联系记录，返回带自增 ID 和时间戳的完整记录
	InsertContact(name, email, message string) (*domain.ContactSubmission, error)

	// ListContacts 按 created_at 倒序返回联系记录；limit <= 0 表示不限制
	ListContacts(limit int) ([]domain.ContactSubmission, error)
}

// AuditRepository 审计日志仓储接口
//
// 审计写入是尽力而为的：调用方收到错误时只记录日志，
// 不把它升级为触发操作的失败。
type AuditRepository interface {
	// AppendAudit 追加一条审计事件
	AppendAudit(eventType domain.AuditEventType, referenceID *int64, detail string) error

	// ListAuditEvents 按写入顺序返回审计事件；limit <= 0 表示不限制
	ListAuditEvents(limit int) ([]domain.AuditEvent, error)
}

// Store 聚合存储接口
type Store interface {
	ContactRepository
	AuditRepository

	// Health 检查底层存储是否可用
	Health() error

	// Close 关闭底层连接
	Close() error
}
