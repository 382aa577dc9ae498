package memory

import (
	"sort"
	"sync"
	"time"

	"adventai/backend/internal/domain"
)

// Store 内存存储实现
//
// 用于测试与本地开发，进程重启后数据丢失。
// 实现与 SQLite 存储相同的仓储接口。
type Store struct {
	mu          sync.Mutex
	contacts    []domain.ContactSubmission
	events      []domain.AuditEvent
	nextContact int64
	nextEvent   int64
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		nextContact: 1,
		nextEvent:   1,
	}
}

// InsertContact 插入一条联系记录
func (s *Store) InsertContact(name, email, message string) (*domain.ContactSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact := domain.ContactSubmission{
		ID:        s.nextContact,
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	s.nextContact++
	s.contacts = append(s.contacts, contact)

	// 返回副本，调用方拿不到内部切片元素的引用
	out := contact
	return &out, nil
}

// ListContacts 按 created_at 倒序返回联系记录
func (s *Store) ListContacts(limit int) ([]domain.ContactSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ContactSubmission, len(s.contacts))
	copy(out, s.contacts)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendAudit 追加一条审计事件
func (s *Store) AppendAudit(eventType domain.AuditEventType, referenceID *int64, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := domain.AuditEvent{
		ID:          s.nextEvent,
		EventType:   eventType,
		ReferenceID: referenceID,
		Detail:      domain.TruncateDetail(detail),
		CreatedAt:   time.Now().UTC(),
	}
	s.nextEvent++
	s.events = append(s.events, event)
	return nil
}

// ListAuditEvents 按写入顺序返回审计事件
func (s *Store) ListAuditEvents(limit int) ([]domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AuditEvent, len(s.events))
	copy(out, s.events)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Health 内存存储总是健康的
func (s *Store) Health() error {
	return nil
}

// Close 关闭存储（内存实现为空操作）
func (s *Store) Close() error {
	return nil
}
